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

package validate

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowboatlabs/rowboat/internal/commands/completion"
	"github.com/rowboatlabs/rowboat/internal/commands/shared"
	"github.com/rowboatlabs/rowboat/internal/metrics"
	pkgerrors "github.com/rowboatlabs/rowboat/pkg/errors"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// NewCommand creates the validate command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow>",
		Short: "Validate a workflow document",
		Annotations: map[string]string{
			"group": "workflows",
		},
		Long: `Validate parses a workflow document and checks its invariants: unique
names per kind, a shared agent/pipeline namespace, known enum values, pipeline
references and an enabled start agent.

Mentions of unknown entities inside instructions and prompts are reported as
warnings; they do not fail validation.

<workflow> is a file path, or a document ID in the configured backend.`,
		Example: `  # Validate a workflow file
  rowboat validate support.yaml

  # Validate a stored document with JSON output
  rowboat validate 4f1c2a9e --json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteWorkflowRefs,
		SilenceUsage:      true,
		SilenceErrors: true,
		RunE:          runValidate,
	}
	return cmd
}

// Report is the JSON result of a successful validation.
type Report struct {
	shared.JSONResponse
	Workflow Summary  `json:"workflow"`
	Warnings []string `json:"warnings,omitempty"`
}

// Summary describes the validated document.
type Summary struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Agents     int    `json:"agents"`
	Tools      int    `json:"tools"`
	Prompts    int    `json:"prompts"`
	Pipelines  int    `json:"pipelines"`
	StartAgent string `json:"start_agent,omitempty"`
}

// Check validates doc and returns the dangling mention warnings.
func Check(doc *workflow.Document) ([]string, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	var warnings []string
	for _, m := range doc.InvalidMentions() {
		warnings = append(warnings, m.String())
	}
	return warnings, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	ref := args[0]
	useJSON := shared.GetJSON()
	out := cmd.OutOrStdout()

	env, err := shared.Setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close(cmd.Context())

	session, err := env.OpenWorkflow(cmd.Context(), ref)
	if err != nil {
		if shared.ExitCode(err) == shared.ExitInvalidWorkflow {
			metrics.RecordValidation("error")
		}
		if useJSON {
			shared.EmitJSONError(out, "validate", []shared.JSONError{{
				Code:    shared.ErrorCodeFor(err),
				Message: err.Error(),
			}})
			return shared.Silent(shared.ExitCode(err))
		}
		return err
	}
	defer session.Close()
	doc := session.Document

	warnings, err := Check(doc)
	if err != nil {
		metrics.RecordValidation("invalid")
		jsonErr := shared.JSONError{Code: shared.ErrorCodeSchemaViolation, Message: err.Error()}
		var verr *pkgerrors.ValidationError
		if errors.As(err, &verr) {
			jsonErr.Field = verr.Field
			jsonErr.Suggestion = verr.Suggestion
		}
		if useJSON {
			shared.EmitJSONError(out, "validate", []shared.JSONError{jsonErr})
			return shared.Silent(shared.ExitInvalidWorkflow)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: error: %s\n", ref, err)
		if jsonErr.Suggestion != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "  Suggestion: %s\n", jsonErr.Suggestion)
		}
		return shared.NewInvalidWorkflowError("validation failed", nil)
	}

	metrics.RecordValidation("valid")
	summary := Summary{
		ID:         doc.ID,
		Name:       doc.Name,
		Agents:     len(doc.Agents),
		Tools:      len(doc.Tools),
		Prompts:    len(doc.Prompts),
		Pipelines:  len(doc.Pipelines),
		StartAgent: doc.StartAgent,
	}

	if useJSON {
		return shared.EmitJSON(out, Report{
			JSONResponse: shared.NewJSONResponse("validate", true),
			Workflow:     summary,
			Warnings:     warnings,
		})
	}

	if shared.GetQuiet() {
		return nil
	}

	p := shared.Printer{Styled: shared.IsStyled(out)}
	fmt.Fprintf(out, "%s %s\n", p.Status(true, "OK"), ref)
	fmt.Fprintf(out, "  %d agents, %d tools, %d prompts, %d pipelines\n",
		summary.Agents, summary.Tools, summary.Prompts, summary.Pipelines)
	if summary.StartAgent != "" {
		fmt.Fprintf(out, "  start agent: %s\n", summary.StartAgent)
	}
	for _, w := range warnings {
		fmt.Fprintln(out, p.Warn(w))
	}
	return nil
}
