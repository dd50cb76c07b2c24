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

package copilot

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rowboatlabs/rowboat/internal/commands/shared"
	"github.com/rowboatlabs/rowboat/pkg/copilot"
	"github.com/rowboatlabs/rowboat/pkg/copilot/stream"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// PartView is the JSON form of one classified part.
type PartView struct {
	Type       copilot.PartType `json:"type"`
	Text       string           `json:"text,omitempty"`
	Action     *copilot.Action  `json:"action,omitempty"`
	Incomplete bool             `json:"incomplete,omitempty"`
}

// ParseResult is the JSON result of copilot parse.
type ParseResult struct {
	shared.JSONResponse
	Parts []PartView `json:"parts"`
}

func newParseCommand() *cobra.Command {
	var (
		sf          streamFlags
		workflowRef string
	)

	cmd := &cobra.Command{
		Use:   "parse <response|->",
		Short: "Split a copilot response into text and proposed changes",
		Long: `Parse tokenizes a copilot response and classifies each block as text,
a finished change, or an incomplete change.

Changes are checked against the per-kind schemas. With --workflow they are
also checked against that document, so edits of unknown entities and name
collisions are reported.`,
		Example: `  # Parse a saved response
  rowboat copilot parse response.md

  # Replay a response as a stream and show parser events
  cat response.md | rowboat copilot parse - --stream --chunk-size 8`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := shared.Setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close(cmd.Context())

			text, err := readResponse(args[0], cmd.InOrStdin())
			if err != nil {
				return shared.NewFailure("", err)
			}

			var doc *workflow.Document
			if workflowRef != "" {
				session, err := env.OpenWorkflow(cmd.Context(), workflowRef)
				if err != nil {
					return err
				}
				defer session.Close()
				doc = session.Document
			}

			out := cmd.OutOrStdout()
			useJSON := shared.GetJSON()
			p := shared.Printer{Styled: shared.IsStyled(out)}

			var onEvent func(stream.Event)
			if !useJSON && !shared.GetQuiet() {
				onEvent = func(ev stream.Event) {
					fmt.Fprintln(out, p.Dim(formatEvent(ev)))
				}
			}

			conv := copilot.NewConversation()
			idx, err := loadResponse(cmd.Context(), conv, text, sf, copilot.NewDocumentValidator(doc), env.Logger, onEvent)
			if err != nil {
				return shared.NewFailure("stream ended early", err)
			}
			m, _ := conv.Message(idx)

			if useJSON {
				result := ParseResult{JSONResponse: shared.NewJSONResponse("copilot parse", true)}
				for _, part := range m.Parts {
					result.Parts = append(result.Parts, PartView{
						Type:       part.Type,
						Text:       part.Text,
						Action:     part.Action,
						Incomplete: part.Incomplete(),
					})
				}
				return shared.EmitJSON(out, result)
			}

			printParts(out, p, m.Parts)
			return nil
		},
	}

	sf.register(cmd.Flags())
	cmd.Flags().StringVarP(&workflowRef, "workflow", "w", "", "Check changes against this workflow (path or document ID)")
	return cmd
}

func printParts(out io.Writer, p shared.Printer, parts []copilot.Part) {
	action := 0
	for i, part := range parts {
		switch {
		case part.Type == copilot.PartText:
			fmt.Fprintf(out, "%s text\n", p.Heading(fmt.Sprintf("[%d]", i+1)))
			for _, line := range strings.Split(strings.TrimRight(part.Text, "\n"), "\n") {
				fmt.Fprintf(out, "    %s\n", line)
			}
		case part.Incomplete():
			action++
			fmt.Fprintf(out, "%s action %d\n", p.Heading(fmt.Sprintf("[%d]", i+1)), action)
			fmt.Fprintf(out, "    %s\n", p.Warn(describe(part.Action)+" (incomplete)"))
		case part.Type == copilot.PartStreamingAction:
			action++
			fmt.Fprintf(out, "%s action %d\n", p.Heading(fmt.Sprintf("[%d]", i+1)), action)
			fmt.Fprintf(out, "    %s\n", p.Info(describe(part.Action)+" (streaming)"))
		case part.Action.Error != "":
			action++
			fmt.Fprintf(out, "%s action %d\n", p.Heading(fmt.Sprintf("[%d]", i+1)), action)
			fmt.Fprintf(out, "    %s\n", p.Error(describe(part.Action)))
			fmt.Fprintf(out, "    invalid: %s\n", part.Action.Error)
		default:
			action++
			fmt.Fprintf(out, "%s action %d\n", p.Heading(fmt.Sprintf("[%d]", i+1)), action)
			fmt.Fprintf(out, "    %s\n", p.OK(describe(part.Action)))
			fmt.Fprintf(out, "    fields: %s\n", strings.Join(part.Action.Fields(), ", "))
		}
	}
}

func formatEvent(ev stream.Event) string {
	switch ev.Type {
	case stream.EventBlockAdded, stream.EventBlockUpdated:
		state := "open"
		if ev.Block.Closed {
			state = "closed"
		}
		return fmt.Sprintf("%s #%d %s (%s, %d bytes)", ev.Type, ev.Index, ev.Block.Kind, state, len(ev.Block.Content))
	case stream.EventBlockRemoved:
		return fmt.Sprintf("%s #%d", ev.Type, ev.Index)
	case stream.EventError:
		return fmt.Sprintf("%s: %v", ev.Type, ev.Err)
	}
	return fmt.Sprintf("%s (%d blocks)", ev.Type, len(ev.Blocks))
}
