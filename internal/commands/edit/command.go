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

// Package edit implements "rowboat edit", which applies editor commands to
// a workflow and saves it.
package edit

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rowboatlabs/rowboat/internal/commands/completion"
	"github.com/rowboatlabs/rowboat/internal/commands/shared"
	"github.com/rowboatlabs/rowboat/internal/metrics"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// StepResult reports one executed edit.
type StepResult struct {
	Line    int    `json:"line,omitempty"`
	Source  string `json:"source"`
	Command string `json:"command,omitempty"`
	Changed bool   `json:"changed"`
	Error   string `json:"error,omitempty"`
}

// Result is the JSON result of an edit command.
type Result struct {
	shared.JSONResponse
	WorkflowID string       `json:"workflow_id"`
	Steps      []StepResult `json:"steps"`
	Revision   uint64       `json:"revision"`
	UndoDepth  int          `json:"undo_depth"`
	RedoDepth  int          `json:"redo_depth"`
	Saved      bool         `json:"saved"`
}

// NewCommand creates the edit command group
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit a workflow",
		Annotations: map[string]string{
			"group": "editing",
		},
		Long: `Edit applies changes to a workflow document and saves it.

Renaming an agent, tool or prompt also rewrites mentions of it in
instructions and prompts. Renaming an agent updates pipelines, connected
agents and the start agent.

<workflow> is a file path, or a document ID in the configured backend.`,
	}

	cmd.AddCommand(
		newVerbCommand("set <workflow> <kind> <name> <field> <value>", "Set one field of an entity", 5, "set",
			completion.Positional(completion.CompleteWorkflowRefs, completion.CompleteKinds, completion.CompleteEntityNames, completion.CompleteFields)),
		newVerbCommand("rename <workflow> <kind> <old> <new>", "Rename an entity", 4, "rename",
			completion.Positional(completion.CompleteWorkflowRefs, completion.CompleteKinds, completion.CompleteEntityNames)),
		newVerbCommand("delete <workflow> <kind> <name>", "Delete an entity", 3, "delete",
			completion.Positional(completion.CompleteWorkflowRefs, completion.CompleteKinds, completion.CompleteEntityNames)),
		newVerbCommand("toggle <workflow> <agent>", "Enable or disable an agent", 2, "toggle",
			completion.Positional(completion.CompleteWorkflowRefs, completion.CompleteAgentNames)),
		newVerbCommand("set-start <workflow> <agent>", "Set the start agent", 2, "set-start",
			completion.Positional(completion.CompleteWorkflowRefs, completion.CompleteAgentNames)),
		newScriptCommand(),
	)
	return cmd
}

func newVerbCommand(use, short string, nargs int, verb string, complete cobra.CompletionFunc) *cobra.Command {
	return &cobra.Command{
		Use:               use,
		Short:             short,
		Args:              cobra.ExactArgs(nargs),
		ValidArgsFunction: complete,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			line := verb
			for _, a := range args[1:] {
				line += " " + a
			}
			return run(cmd, args[0], []Step{{Source: line}}, true)
		},
	}
}

func newScriptCommand() *cobra.Command {
	var keepGoing bool

	cmd := &cobra.Command{
		Use:   "script <workflow> <script|->",
		Short: "Run a script of edits",
		Long: `Script runs one edit per line and saves the result once.

  set <kind> <name> <field> <json value>
  rename <kind> <old> <new>
  delete <kind> <name>
  toggle <agent>
  set-start <agent>
  rename-workflow <name>
  move-agent <from> <to>
  move-tool <from> <to>
  undo
  redo

Blank lines and lines starting with # are ignored. Values that are not
valid JSON are taken as strings.`,
		Example: `  rowboat edit script support.yaml - <<'EOS'
  rename agent Router Dispatcher
  set agent Billing model "gpt-4.1-mini"
  undo
  EOS`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completion.Positional(completion.CompleteWorkflowRefs),
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return shared.NewFailure("failed to open script", err)
				}
				defer f.Close()
				r = f
			}
			steps, err := ParseScript(r)
			if err != nil {
				return shared.NewFailure("", err)
			}
			return run(cmd, args[0], steps, !keepGoing)
		},
	}

	cmd.Flags().BoolVarP(&keepGoing, "keep-going", "k", false, "Continue after a failed line")
	return cmd
}

func run(cmd *cobra.Command, ref string, steps []Step, stopOnError bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	useJSON := shared.GetJSON()
	p := shared.Printer{Styled: shared.IsStyled(out)}

	env, err := shared.Setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close(ctx)

	session, err := env.OpenWorkflow(ctx, ref)
	if err != nil {
		return err
	}
	defer session.Close()

	store := env.NewStore(session.Document)
	if store.State().Live() {
		return shared.NewFailure(fmt.Sprintf("workflow %s is live and cannot be edited", session.Document.ID), nil)
	}
	saver := env.NewAutoSaver(store, session.Saver())
	defer saver.Close()

	builder := NewBuilder(store.Document)
	result := Result{
		JSONResponse: shared.NewJSONResponse("edit", true),
		WorkflowID:   session.Document.ID,
		Steps:        []StepResult{},
	}

	var failed error
	for _, step := range steps {
		sr := StepResult{Line: step.Line, Source: step.Source}
		c, err := builder.Parse(step.Source)
		if err == nil && c == nil {
			continue
		}
		if err != nil {
			sr.Error = err.Error()
			result.Steps = append(result.Steps, sr)
			if failed == nil {
				failed = fmt.Errorf("%s: %w", step.Source, err)
			}
			if stopOnError {
				break
			}
			continue
		}
		sr.Command = c.CommandType()
		sr.Changed = store.Dispatch(c)
		result.Steps = append(result.Steps, sr)
	}

	entries, cursor := store.History()
	metrics.RecordHistory(cursor, len(entries)-cursor)
	result.UndoDepth = cursor
	result.RedoDepth = len(entries) - cursor

	state := store.State()
	result.Revision = state.Revision
	if state.PendingChanges {
		if err := saver.Flush(ctx); err != nil {
			return shared.NewFailure("", err)
		}
	}
	result.Saved = !store.State().PendingChanges

	if failed != nil {
		result.Success = false
	}
	if useJSON {
		if err := shared.EmitJSON(out, result); err != nil {
			return err
		}
		if failed != nil {
			return shared.Silent(shared.ExitFailed)
		}
		return nil
	}

	if !shared.GetQuiet() {
		printSteps(out, p, result.Steps)
		summary := summarize(store.Document())
		fmt.Fprintf(out, "%s %s (%s, undo %d, redo %d)\n",
			p.Status(failed == nil, "SAVED"), ref, summary, result.UndoDepth, result.RedoDepth)
	}
	if failed != nil {
		return shared.NewFailure("edit failed", failed)
	}
	return nil
}

func printSteps(out io.Writer, p shared.Printer, steps []StepResult) {
	for _, s := range steps {
		switch {
		case s.Error != "":
			fmt.Fprintln(out, p.Error(fmt.Sprintf("%s: %s", s.Source, s.Error)))
		case s.Changed:
			fmt.Fprintln(out, p.OK(s.Source))
		default:
			fmt.Fprintln(out, p.Warn(s.Source+" (no change)"))
		}
	}
}

func summarize(doc *workflow.Document) string {
	return fmt.Sprintf("%d agents, %d tools, %d prompts, %d pipelines",
		len(doc.Agents), len(doc.Tools), len(doc.Prompts), len(doc.Pipelines))
}
