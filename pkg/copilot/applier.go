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
	"context"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rowboatlabs/rowboat/pkg/errors"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
	"github.com/rowboatlabs/rowboat/pkg/workflow/editor"
)

var (
	// ErrActionInvalid is returned for actions that failed validation.
	ErrActionInvalid = errors.New("action failed validation")

	// ErrActionStale is returned for actions superseded by a later message.
	ErrActionStale = errors.New("action is stale")

	// ErrActionIncomplete is returned for actions still streaming or left
	// unfinished by their response.
	ErrActionIncomplete = errors.New("action is incomplete")
)

// ApplierOptions configures an Applier.
type ApplierOptions struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer

	// OnApply, when set, is called for every dispatched command.
	OnApply func(action *Action, fields []string)
}

// Applier turns conversation actions into editor commands and dispatches
// them.
type Applier struct {
	conv    *Conversation
	target  editor.Dispatcher
	logger  *slog.Logger
	tracer  trace.Tracer
	onApply func(*Action, []string)
}

// NewApplier creates an Applier dispatching into target.
func NewApplier(conv *Conversation, target editor.Dispatcher, opts ApplierOptions) *Applier {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/rowboatlabs/rowboat/pkg/copilot")
	}
	return &Applier{
		conv:    conv,
		target:  target,
		logger:  opts.Logger.With(slog.String("component", "copilot-applier")),
		tracer:  opts.Tracer,
		onApply: opts.OnApply,
	}
}

// Apply applies one action of message msgIdx. An empty field applies every
// field not applied yet; otherwise only that field is applied. Create
// actions are always applied whole. Fields already applied are skipped, so
// a fully applied action yields no commands.
func (a *Applier) Apply(ctx context.Context, msgIdx, actIdx int, field string) ([]editor.Command, error) {
	ctx, span := a.tracer.Start(ctx, "copilot.apply", trace.WithAttributes(
		attribute.Int("message_index", msgIdx),
		attribute.Int("action_index", actIdx),
		attribute.String("field", field),
	))
	defer span.End()

	cmds, err := a.apply(ctx, msgIdx, actIdx, field)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int("commands", len(cmds)))
	return cmds, err
}

// ApplyAll applies every applicable action of message msgIdx in message
// order. Fully applied and invalid actions are skipped.
func (a *Applier) ApplyAll(ctx context.Context, msgIdx int) ([]editor.Command, error) {
	ctx, span := a.tracer.Start(ctx, "copilot.apply_all", trace.WithAttributes(
		attribute.Int("message_index", msgIdx),
	))
	defer span.End()

	m, ok := a.conv.Message(msgIdx)
	if !ok {
		return nil, &errors.NotFoundError{Resource: "message", ID: fmt.Sprint(msgIdx)}
	}
	if a.conv.Stale(msgIdx) {
		return nil, ErrActionStale
	}

	var all []editor.Command
	for i, act := range m.Actions() {
		if act.Error != "" {
			continue
		}
		cmds, err := a.apply(ctx, msgIdx, i, "")
		if errors.Is(err, ErrActionIncomplete) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return all, err
		}
		all = append(all, cmds...)
	}
	span.SetAttributes(attribute.Int("commands", len(all)))
	return all, nil
}

func (a *Applier) apply(_ context.Context, msgIdx, actIdx int, field string) ([]editor.Command, error) {
	a.conv.mu.Lock()
	defer a.conv.mu.Unlock()

	m, ok := a.conv.message(msgIdx)
	if !ok {
		return nil, &errors.NotFoundError{Resource: "message", ID: fmt.Sprint(msgIdx)}
	}
	part, ok := m.actionPart(actIdx)
	if !ok {
		return nil, &errors.NotFoundError{Resource: "action", ID: fmt.Sprintf("%d/%d", msgIdx, actIdx)}
	}
	if part.Type != PartAction {
		return nil, ErrActionIncomplete
	}
	act := part.Action
	if act.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrActionInvalid, act.Error)
	}
	if a.conv.stale(msgIdx) {
		return nil, ErrActionStale
	}

	pending := a.conv.pending(msgIdx, actIdx, act)
	var fields []string
	switch {
	case act.Action == ActionCreate:
		if !slices.Contains(pending, "name") {
			return nil, nil
		}
		fields = trackedFields(act)
	case field == "":
		fields = pending
	default:
		if !slices.Contains(act.Fields(), field) {
			return nil, &errors.NotFoundError{Resource: "field", ID: field}
		}
		if slices.Contains(pending, field) {
			fields = []string{field}
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}

	var cmd editor.Command
	if act.Action == ActionCreate {
		cmd = editor.AddCommand(act.Name, act.ConfigChanges)
	} else {
		cmd = editor.UpdateCommand(a.targetName(msgIdx, actIdx, act), act.ConfigChanges.Select(fields...))
	}
	if cmd == nil {
		return nil, &errors.ValidationError{Field: MetaConfigType, Message: fmt.Sprintf("unsupported config type %q", act.ConfigType)}
	}

	changed := a.target.Dispatch(cmd)
	a.conv.markApplied(msgIdx, actIdx, fields)

	a.logger.Debug("applied copilot action",
		slog.Int("message_index", msgIdx),
		slog.Int("action_index", actIdx),
		slog.String("command", cmd.CommandType()),
		slog.Any("fields", fields),
		slog.Bool("changed", changed))
	if a.onApply != nil {
		a.onApply(act, fields)
	}
	return []editor.Command{cmd}, nil
}

// targetName is the entity an edit addresses. Once the action's rename has
// been applied, later fields address the new name.
func (a *Applier) targetName(msgIdx, actIdx int, act *Action) string {
	if _, ok := a.conv.applied[fieldKey{msgIdx, actIdx, "name"}]; ok {
		if n, ok := workflow.NewName(act.ConfigChanges); ok {
			return n
		}
	}
	return act.Name
}
