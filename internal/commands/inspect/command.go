// Copyright 2025 Rowboat Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowboatlabs/rowboat/internal/commands/completion"
	"github.com/rowboatlabs/rowboat/internal/commands/shared"
	"github.com/rowboatlabs/rowboat/internal/jq"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// QueryResult is the JSON result of inspect --query.
type QueryResult struct {
	shared.JSONResponse
	Query   string `json:"query"`
	Results []any  `json:"results"`
}

// NewCommand creates the inspect command
func NewCommand() *cobra.Command {
	var (
		query   string
		raw     bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "inspect <workflow>",
		Short: "Show or query a workflow",
		Annotations: map[string]string{
			"group": "workflows",
		},
		Long: `Inspect prints an overview of a workflow's agents, tools, prompts and
pipelines. With --query it evaluates a jq expression against the
document's JSON form instead.`,
		Example: `  # Overview
  rowboat inspect support.yaml

  # Names of internal agents
  rowboat inspect support.yaml -e '.agents[] | select(.outputVisibility == "internal") | .name' --raw`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteWorkflowRefs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			exec := jq.NewExecutor(timeout)
			if query != "" {
				if err := exec.Validate(query); err != nil {
					return shared.NewFailure("", err)
				}
			}

			env, err := shared.Setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			session, err := env.OpenWorkflow(ctx, args[0])
			if err != nil {
				return err
			}
			defer session.Close()
			doc := session.Document

			if query == "" {
				if shared.GetJSON() {
					return shared.EmitJSON(out, doc)
				}
				printOverview(out, shared.Printer{Styled: shared.IsStyled(out)}, doc)
				return nil
			}

			results, err := exec.Query(ctx, query, doc)
			if err != nil {
				return shared.NewFailure("", err)
			}
			if shared.GetJSON() {
				return shared.EmitJSON(out, QueryResult{
					JSONResponse: shared.NewJSONResponse("inspect", true),
					Query:        query,
					Results:      results,
				})
			}
			return printResults(out, results, raw)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "e", "", "jq expression to evaluate")
	cmd.Flags().BoolVarP(&raw, "raw", "r", false, "Print string results without quotes")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Query timeout")
	return cmd
}

func printResults(out io.Writer, results []any, raw bool) error {
	for _, r := range results {
		if s, ok := r.(string); ok && raw {
			fmt.Fprintln(out, s)
			continue
		}
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(out, string(data))
	}
	return nil
}

func printOverview(out io.Writer, p shared.Printer, doc *workflow.Document) {
	title := doc.Name
	if title == "" {
		title = "(unnamed workflow)"
	}
	fmt.Fprintln(out, p.Heading(title))
	if doc.ID != "" {
		fmt.Fprintln(out, p.Dim("id: "+doc.ID))
	}

	fmt.Fprintf(out, "\n%s\n", p.Heading(fmt.Sprintf("Agents (%d)", len(doc.Agents))))
	for _, a := range doc.Agents {
		var flags []string
		if a.Name == doc.StartAgent {
			flags = append(flags, "start")
		}
		if a.Disabled {
			flags = append(flags, "disabled")
		}
		if a.Locked {
			flags = append(flags, "locked")
		}
		line := fmt.Sprintf("%s  %s, %s, %s", a.Name, a.Type, a.OutputVisibility, a.ControlType)
		if a.Model != "" {
			line += ", " + a.Model
		}
		if len(flags) > 0 {
			line += "  " + p.Dim("["+strings.Join(flags, " ")+"]")
		}
		fmt.Fprintln(out, p.Info(line))
	}

	if len(doc.Tools) > 0 {
		fmt.Fprintf(out, "\n%s\n", p.Heading(fmt.Sprintf("Tools (%d)", len(doc.Tools))))
		for _, t := range doc.Tools {
			line := t.Name
			if t.Description != "" {
				line += "  " + p.Dim(t.Description)
			}
			if t.External() {
				line += "  " + p.Dim("[external]")
			}
			fmt.Fprintln(out, p.Info(line))
		}
	}

	if len(doc.Prompts) > 0 {
		fmt.Fprintf(out, "\n%s\n", p.Heading(fmt.Sprintf("Prompts (%d)", len(doc.Prompts))))
		for _, pr := range doc.Prompts {
			fmt.Fprintln(out, p.Info(fmt.Sprintf("%s  %s", pr.Name, pr.Type)))
		}
	}

	if len(doc.Pipelines) > 0 {
		fmt.Fprintf(out, "\n%s\n", p.Heading(fmt.Sprintf("Pipelines (%d)", len(doc.Pipelines))))
		for _, pl := range doc.Pipelines {
			fmt.Fprintln(out, p.Info(fmt.Sprintf("%s  %s", pl.Name, strings.Join(pl.Agents, " -> "))))
		}
	}

	if dangling := doc.InvalidMentions(); len(dangling) > 0 {
		fmt.Fprintln(out)
		for _, m := range dangling {
			fmt.Fprintln(out, p.Warn(m.String()))
		}
	}
}
