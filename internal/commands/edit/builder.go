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

package edit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rowboatlabs/rowboat/pkg/copilot"
	pkgerrors "github.com/rowboatlabs/rowboat/pkg/errors"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
	"github.com/rowboatlabs/rowboat/pkg/workflow/editor"
)

// Step is one script line.
type Step struct {
	Line   int
	Source string
}

// Builder turns edit verbs into editor commands, checking field changes
// against the document they will be applied to.
type Builder struct {
	doc func() *workflow.Document
}

// NewBuilder creates a Builder reading the current document from doc.
func NewBuilder(doc func() *workflow.Document) *Builder {
	return &Builder{doc: doc}
}

// Set builds an update of one field. value is JSON; anything that does
// not parse as JSON is taken as a string.
func (b *Builder) Set(kind workflow.Kind, name, field, value string) (editor.Command, error) {
	var v any
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		v = value
	}
	return b.update(kind, name, map[string]any{field: v})
}

// Rename builds a rename of an entity.
func (b *Builder) Rename(kind workflow.Kind, oldName, newName string) (editor.Command, error) {
	return b.update(kind, oldName, map[string]any{"name": newName})
}

// Delete builds a delete command.
func (b *Builder) Delete(kind workflow.Kind, name string) (editor.Command, error) {
	if !b.doc().Has(kind, name) {
		return nil, &pkgerrors.NotFoundError{Resource: string(kind), ID: name}
	}
	switch kind {
	case workflow.KindAgent:
		return editor.DeleteAgent{Name: name}, nil
	case workflow.KindTool:
		return editor.DeleteTool{Name: name}, nil
	case workflow.KindPrompt:
		return editor.DeletePrompt{Name: name}, nil
	case workflow.KindPipeline:
		return editor.DeletePipeline{Name: name}, nil
	}
	return nil, unknownKind(kind)
}

func (b *Builder) update(kind workflow.Kind, name string, raw map[string]any) (editor.Command, error) {
	doc := b.doc()
	var (
		changes workflow.Changes
		err     error
	)
	if kind == workflow.KindPipeline {
		if !doc.Has(kind, name) {
			return nil, &pkgerrors.NotFoundError{Resource: string(kind), ID: name}
		}
		changes, err = decodePipelineChanges(raw)
	} else {
		changes, err = copilot.NewDocumentValidator(doc).Validate(copilot.ActionEdit, kind, name, raw)
	}
	if err != nil {
		return nil, err
	}
	cmd := editor.UpdateCommand(name, changes)
	if cmd == nil {
		return nil, unknownKind(kind)
	}
	return cmd, nil
}

func decodePipelineChanges(raw map[string]any) (workflow.Changes, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var c workflow.PipelineChanges
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, &pkgerrors.ValidationError{Field: "pipeline", Message: err.Error()}
	}
	return &c, nil
}

// ParseKind checks an entity kind argument.
func ParseKind(s string) (workflow.Kind, error) {
	kind := workflow.Kind(s)
	if workflow.NewChanges(kind) == nil {
		return "", unknownKind(kind)
	}
	return kind, nil
}

func unknownKind(kind workflow.Kind) error {
	return &pkgerrors.ValidationError{
		Field:      "kind",
		Message:    fmt.Sprintf("unknown entity kind %q", kind),
		Suggestion: "Use agent, tool, prompt or pipeline",
	}
}

// Parse builds the command for one script line. Blank lines and lines
// starting with '#' yield nil.
//
//	set <kind> <name> <field> <json value>
//	rename <kind> <old> <new>
//	delete <kind> <name>
//	toggle <agent>
//	set-start <agent>
//	rename-workflow <name>
//	move-agent <from> <to>
//	move-tool <from> <to>
//	undo
//	redo
func (b *Builder) Parse(line string) (editor.Command, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}
	verb, rest := cut(line)

	args := func(n int) ([]string, error) {
		out := make([]string, 0, n)
		for i := 0; i < n-1; i++ {
			var f string
			f, rest = cut(rest)
			out = append(out, f)
		}
		out = append(out, rest)
		for _, a := range out {
			if a == "" {
				return nil, fmt.Errorf("%s: expected %d arguments", verb, n)
			}
		}
		return out, nil
	}

	switch verb {
	case "set":
		a, err := args(4)
		if err != nil {
			return nil, err
		}
		kind, err := ParseKind(a[0])
		if err != nil {
			return nil, err
		}
		return b.Set(kind, a[1], a[2], a[3])
	case "rename":
		a, err := args(3)
		if err != nil {
			return nil, err
		}
		kind, err := ParseKind(a[0])
		if err != nil {
			return nil, err
		}
		return b.Rename(kind, a[1], a[2])
	case "delete":
		a, err := args(2)
		if err != nil {
			return nil, err
		}
		kind, err := ParseKind(a[0])
		if err != nil {
			return nil, err
		}
		return b.Delete(kind, a[1])
	case "toggle":
		a, err := args(1)
		if err != nil {
			return nil, err
		}
		return editor.ToggleAgent{Name: a[0]}, nil
	case "set-start":
		a, err := args(1)
		if err != nil {
			return nil, err
		}
		return editor.SetMainAgent{Name: a[0]}, nil
	case "rename-workflow":
		a, err := args(1)
		if err != nil {
			return nil, err
		}
		return editor.RenameDocument{Name: a[0]}, nil
	case "move-agent", "move-tool":
		a, err := args(2)
		if err != nil {
			return nil, err
		}
		var from, to int
		if _, err := fmt.Sscanf(a[0]+" "+a[1], "%d %d", &from, &to); err != nil {
			return nil, fmt.Errorf("%s: positions must be integers", verb)
		}
		if verb == "move-agent" {
			return editor.ReorderAgents{From: from, To: to}, nil
		}
		return editor.ReorderTools{From: from, To: to}, nil
	case "undo":
		return editor.Undo{}, nil
	case "redo":
		return editor.Redo{}, nil
	}
	return nil, fmt.Errorf("unknown edit %q", verb)
}

// ParseScript reads the non-blank, non-comment lines of r. Commands are
// built when the step runs, against the document left by earlier steps.
func ParseScript(r io.Reader) ([]Step, error) {
	var steps []Step
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		steps = append(steps, Step{Line: n, Source: text})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return steps, nil
}

func cut(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}
