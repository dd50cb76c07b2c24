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
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/rowboatlabs/rowboat/internal/commands/completion"
	"github.com/rowboatlabs/rowboat/internal/commands/shared"
	"github.com/rowboatlabs/rowboat/internal/metrics"
	"github.com/rowboatlabs/rowboat/pkg/copilot"
	"github.com/rowboatlabs/rowboat/pkg/workflow/diff"
	"github.com/rowboatlabs/rowboat/pkg/workflow/editor"
)

// Prompting hooks, replaced in tests.
var (
	confirm          = shared.Confirm
	isNonInteractive = shared.IsNonInteractive
)

// AppliedView describes the fields applied from one action.
type AppliedView struct {
	Action     int      `json:"action"`
	ConfigType string   `json:"config_type"`
	Name       string   `json:"name"`
	Fields     []string `json:"fields"`
}

// SkippedView describes an action that was not applied.
type SkippedView struct {
	Action int    `json:"action"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// ApplyResult is the JSON result of copilot apply.
type ApplyResult struct {
	shared.JSONResponse
	WorkflowID string        `json:"workflow_id"`
	Applied    []AppliedView `json:"applied"`
	Skipped    []SkippedView `json:"skipped,omitempty"`
	Saved      bool          `json:"saved"`
	DryRun     bool          `json:"dry_run,omitempty"`
}

type applyOptions struct {
	sf          streamFlags
	action      int
	field       string
	interactive bool
	dryRun      bool
}

func newApplyCommand() *cobra.Command {
	var opts applyOptions

	cmd := &cobra.Command{
		Use:   "apply <workflow> <response|->",
		Short: "Apply the changes proposed by a copilot response",
		Long: `Apply parses a copilot response and applies its proposed changes to a
workflow, then saves the workflow.

Without --action every valid change is applied. Invalid and incomplete
changes are skipped and reported. --action selects one change by its
1-based position in the response, and --field narrows an edit to a
single field.

<workflow> is a file path, or a document ID in the configured backend.`,
		Example: `  # Apply every change
  rowboat copilot apply support.yaml response.md

  # Preview without saving
  rowboat copilot apply support.yaml response.md --dry-run

  # Apply only the instructions of the second change
  rowboat copilot apply support.yaml response.md --action 2 --field instructions

  # Review each change
  rowboat copilot apply support.yaml response.md --interactive`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completion.Positional(completion.CompleteWorkflowRefs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, args[0], args[1], opts)
		},
	}

	opts.sf.register(cmd.Flags())
	cmd.Flags().IntVarP(&opts.action, "action", "a", 0, "Apply only this change (1-based)")
	cmd.Flags().StringVarP(&opts.field, "field", "f", "", "Apply only this field of the selected change (requires --action)")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "Confirm each change before applying it")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show what would change without applying")
	return cmd
}

func runApply(cmd *cobra.Command, workflowRef, responseRef string, opts applyOptions) error {
	if opts.field != "" && opts.action == 0 {
		return shared.NewFailure("--field requires --action", nil)
	}
	if opts.action < 0 {
		return shared.NewFailure("--action must be positive", nil)
	}
	if opts.interactive && isNonInteractive() {
		return shared.NewFailure("--interactive needs a terminal", nil)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	useJSON := shared.GetJSON()
	p := shared.Printer{Styled: shared.IsStyled(out)}

	env, err := shared.Setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close(ctx)

	text, err := readResponse(responseRef, cmd.InOrStdin())
	if err != nil {
		return shared.NewFailure("", err)
	}

	session, err := env.OpenWorkflow(ctx, workflowRef)
	if err != nil {
		return err
	}
	defer session.Close()

	store := env.NewStore(session.Document)
	if store.State().Live() {
		return shared.NewFailure(fmt.Sprintf("workflow %s is live and cannot be edited", session.Document.ID), nil)
	}

	conv := copilot.NewConversation()
	msgIdx, err := loadResponse(ctx, conv, text, opts.sf, copilot.NewDocumentValidator(store.Document()), env.Logger, nil)
	if err != nil {
		return shared.NewFailure("stream ended early", err)
	}
	m, _ := conv.Message(msgIdx)
	parts := actionParts(m)

	targets := make([]int, 0, len(parts))
	if opts.action > 0 {
		if opts.action > len(parts) {
			return shared.NewFailure(fmt.Sprintf("response has %d changes, cannot select change %d", len(parts), opts.action), nil)
		}
		targets = append(targets, opts.action-1)
	} else {
		for i := range parts {
			targets = append(targets, i)
		}
	}

	result := ApplyResult{
		JSONResponse: shared.NewJSONResponse("copilot apply", true),
		WorkflowID:   session.Document.ID,
		DryRun:       opts.dryRun,
		Applied:      []AppliedView{},
	}

	if opts.dryRun {
		plan := planChanges(conv, msgIdx, parts, targets, opts.field, &result)
		if useJSON {
			return shared.EmitJSON(out, result)
		}
		printPreviews(out, p, store, parts, targets)
		fmt.Fprint(out, plan.String())
		return nil
	}

	saver := env.NewAutoSaver(store, session.Saver())
	defer saver.Close()

	applier := copilot.NewApplier(conv, store, copilot.ApplierOptions{
		Logger: env.Logger,
		Tracer: env.Tracing.Tracer("github.com/rowboatlabs/rowboat/pkg/copilot"),
		OnApply: func(a *copilot.Action, fields []string) {
			metrics.RecordApplied(string(a.ConfigType), len(fields))
		},
	})

	if !useJSON && !shared.GetQuiet() && !opts.interactive {
		printPreviews(out, p, store, parts, targets)
	}

	if opts.action == 0 && !opts.interactive {
		before := pendingByAction(conv, msgIdx, len(parts))
		if _, err := applier.ApplyAll(ctx, msgIdx); err != nil {
			return shared.NewFailure("failed to apply changes", err)
		}
		for i, part := range parts {
			applied := slices.DeleteFunc(before[i], func(f string) bool {
				return slices.Contains(conv.Pending(msgIdx, i), f)
			})
			if len(applied) > 0 {
				result.Applied = append(result.Applied, appliedView(i, part.Action, applied))
				continue
			}
			result.Skipped = append(result.Skipped, skippedView(i, part))
		}
	} else {
		for _, i := range targets {
			part := parts[i]
			if reason := unusable(part); reason != "" {
				result.Skipped = append(result.Skipped, SkippedView{Action: i + 1, Name: nameOf(part), Reason: reason})
				continue
			}
			if opts.interactive {
				fmt.Fprintf(out, "%s %s\n", p.Heading(fmt.Sprintf("Change %d:", i+1)), describe(part.Action))
				fmt.Fprint(out, diff.Render(part.Action.Preview(store.Document()), p.Styled))
				ok, err := confirm(fmt.Sprintf("Apply change %d?", i+1), describe(part.Action))
				if err != nil {
					return shared.NewFailure("", err)
				}
				if !ok {
					result.Skipped = append(result.Skipped, SkippedView{Action: i + 1, Name: part.Action.Name, Reason: "declined"})
					continue
				}
			}

			pending := conv.Pending(msgIdx, i)
			cmds, err := applier.Apply(ctx, msgIdx, i, opts.field)
			if err != nil {
				if errors.Is(err, copilot.ErrActionInvalid) || errors.Is(err, copilot.ErrActionIncomplete) {
					result.Skipped = append(result.Skipped, SkippedView{Action: i + 1, Name: part.Action.Name, Reason: err.Error()})
					continue
				}
				return shared.NewFailure(fmt.Sprintf("failed to apply change %d", i+1), err)
			}
			if len(cmds) == 0 {
				result.Skipped = append(result.Skipped, SkippedView{Action: i + 1, Name: part.Action.Name, Reason: "nothing to apply"})
				continue
			}
			applied := pending
			if opts.field != "" && part.Action.Action != copilot.ActionCreate {
				applied = []string{opts.field}
			}
			result.Applied = append(result.Applied, appliedView(i, part.Action, applied))
		}
	}

	entries, cursor := store.History()
	metrics.RecordHistory(cursor, len(entries)-cursor)

	if len(result.Applied) > 0 {
		if err := saver.Flush(ctx); err != nil {
			if useJSON {
				shared.EmitJSONError(out, "copilot apply", []shared.JSONError{{
					Code:       shared.ErrorCodeFor(err),
					Message:    err.Error(),
					Suggestion: "Fix the storage problem and apply the response again",
				}})
				return shared.Silent(shared.ExitFailed)
			}
			return shared.NewFailure("", err)
		}
		result.Saved = store.State().LastSaveError == nil
	}

	if useJSON {
		return shared.EmitJSON(out, result)
	}
	printApplyResult(out, p, workflowRef, &result)
	return nil
}

// planChanges fills result and returns the dry-run plan for targets.
func planChanges(conv *copilot.Conversation, msgIdx int, parts []copilot.Part, targets []int, field string, result *ApplyResult) *shared.DryRunPlan {
	plan := shared.NewDryRunPlan()
	for _, i := range targets {
		part := parts[i]
		if reason := unusable(part); reason != "" {
			plan.Skip(kindOf(part), nameOf(part), reason)
			result.Skipped = append(result.Skipped, SkippedView{Action: i + 1, Name: nameOf(part), Reason: reason})
			continue
		}
		act := part.Action
		fields := conv.Pending(msgIdx, i)
		if field != "" && act.Action != copilot.ActionCreate {
			if !slices.Contains(act.Fields(), field) {
				plan.Skip(string(act.ConfigType), act.Name, "no field "+field)
				result.Skipped = append(result.Skipped, SkippedView{Action: i + 1, Name: act.Name, Reason: "no field " + field})
				continue
			}
			fields = []string{field}
		}
		if act.Action == copilot.ActionCreate {
			plan.Create(string(act.ConfigType), act.Name)
		} else {
			plan.Modify(string(act.ConfigType), act.Name, fields)
		}
		result.Applied = append(result.Applied, appliedView(i, act, fields))
	}
	return plan
}

func printPreviews(out io.Writer, p shared.Printer, store *editor.Store, parts []copilot.Part, targets []int) {
	doc := store.Document()
	for _, i := range targets {
		part := parts[i]
		fmt.Fprintf(out, "%s %s\n", p.Heading(fmt.Sprintf("Change %d:", i+1)), describe(part.Action))
		if reason := unusable(part); reason != "" {
			fmt.Fprintln(out, p.Warn("skipped: "+reason))
			continue
		}
		fmt.Fprint(out, diff.Render(part.Action.Preview(doc), p.Styled))
		fmt.Fprintln(out)
	}
}

func printApplyResult(out io.Writer, p shared.Printer, ref string, result *ApplyResult) {
	if shared.GetQuiet() {
		return
	}
	for _, s := range result.Skipped {
		fmt.Fprintln(out, p.Warn(fmt.Sprintf("change %d skipped: %s", s.Action, s.Reason)))
	}
	if len(result.Applied) == 0 {
		fmt.Fprintln(out, p.Info("no changes applied"))
		return
	}
	for _, a := range result.Applied {
		fmt.Fprintln(out, p.OK(fmt.Sprintf("change %d: %s %s (%d fields)", a.Action, a.ConfigType, a.Name, len(a.Fields))))
	}
	fmt.Fprintf(out, "%s saved %s\n", p.Status(result.Saved, "OK"), ref)
}

// unusable explains why part cannot be applied, or returns "".
func unusable(part copilot.Part) string {
	switch {
	case part.Type != copilot.PartAction:
		return "incomplete change"
	case part.Action.Error != "":
		return "invalid: " + part.Action.Error
	}
	return ""
}

func pendingByAction(conv *copilot.Conversation, msgIdx, n int) [][]string {
	out := make([][]string, n)
	for i := range n {
		out[i] = conv.Pending(msgIdx, i)
	}
	return out
}

func appliedView(i int, a *copilot.Action, fields []string) AppliedView {
	return AppliedView{Action: i + 1, ConfigType: string(a.ConfigType), Name: a.Name, Fields: fields}
}

func skippedView(i int, part copilot.Part) SkippedView {
	reason := unusable(part)
	if reason == "" {
		reason = "nothing to apply"
	}
	return SkippedView{Action: i + 1, Name: nameOf(part), Reason: reason}
}

func nameOf(part copilot.Part) string {
	if part.Action == nil {
		return ""
	}
	return part.Action.Name
}

func kindOf(part copilot.Part) string {
	if part.Action == nil || part.Action.ConfigType == "" {
		return "change"
	}
	return string(part.Action.ConfigType)
}
