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

// Package copilot turns streamed copilot responses into typed actions and
// applies them to a workflow editor store.
package copilot

import (
	"encoding/json"
	"strings"

	"github.com/rowboatlabs/rowboat/pkg/copilot/stream"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
	"github.com/rowboatlabs/rowboat/pkg/workflow/diff"
)

// PartType classifies a message part.
type PartType string

const (
	PartText            PartType = "text"
	PartStreamingAction PartType = "streaming_action"
	PartAction          PartType = "action"
)

// ActionType is the operation a directive requests.
type ActionType string

const (
	ActionCreate ActionType = "create_new"
	ActionEdit   ActionType = "edit"
)

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	return t == ActionCreate || t == ActionEdit
}

// Metadata keys recognized in directive headers.
const (
	MetaAction     = "action"
	MetaConfigType = "config_type"
	MetaName       = "name"
)

// Action is a copilot request to create or edit one entity.
//
// For streaming actions only the metadata parsed so far is set. For
// finished actions exactly one of ConfigChanges and Error is set.
type Action struct {
	Action            ActionType    `json:"action"`
	ConfigType        workflow.Kind `json:"config_type"`
	Name              string        `json:"name"`
	ChangeDescription string        `json:"change_description,omitempty"`

	ConfigChanges workflow.Changes `json:"config_changes,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// Fields lists the fields the action changes in declaration order.
func (a *Action) Fields() []string {
	if a == nil || a.ConfigChanges == nil {
		return nil
	}
	return a.ConfigChanges.Fields()
}

// Preview diffs the action's changes against the current entity in doc.
func (a *Action) Preview(doc *workflow.Document) []diff.FieldDiff {
	if a == nil {
		return nil
	}
	return diff.Preview(doc, a.ConfigType, a.Name, a.ConfigChanges)
}

// Part is one classified segment of an assistant message.
type Part struct {
	Type   PartType
	Text   string
	Action *Action

	// Closed is copied from the source block.
	Closed bool
}

// Incomplete reports a directive that ended without resolving into an
// action. It is shown as an incomplete change and never applied.
func (p Part) Incomplete() bool {
	return p.Type == PartStreamingAction && p.Closed
}

// IsAction reports whether p is a streaming or finished action.
func (p Part) IsAction() bool {
	return p.Type == PartStreamingAction || p.Type == PartAction
}

// body is the JSON payload that follows the metadata lines.
type body struct {
	ChangeDescription string         `json:"change_description"`
	ConfigChanges     map[string]any `json:"config_changes"`
}

// Classify interprets one block. Text blocks pass through. A directive
// whose JSON body does not parse yet, or whose metadata is incomplete,
// becomes a streaming action. Otherwise the changes are checked by v and
// the result is a finished action carrying either changes or an error.
//
// Classify never fails; malformed input degrades to a display state.
func Classify(block stream.Block, v Validator) Part {
	if block.Kind != stream.KindDirective {
		return Part{Type: PartText, Text: block.Content, Closed: true}
	}

	content := strings.TrimPrefix(block.Content, stream.Marker)
	content = strings.TrimLeft(content, " \t\r\n")
	if !strings.HasPrefix(content, "//") {
		// A bare marker or a lone slash may still grow into metadata.
		if !block.Closed && strings.HasPrefix("//", content) {
			return Part{Type: PartStreamingAction, Action: &Action{}}
		}
		return Part{Type: PartText, Text: block.Content, Closed: true}
	}

	meta, rest := parseMetadata(content)
	action := &Action{
		Action:     ActionType(meta[MetaAction]),
		ConfigType: workflow.Kind(meta[MetaConfigType]),
		Name:       meta[MetaName],
	}
	streaming := Part{Type: PartStreamingAction, Action: action, Closed: block.Closed}

	var b body
	if err := json.Unmarshal([]byte(rest), &b); err != nil {
		return streaming
	}
	if action.Action == "" || action.ConfigType == "" || action.Name == "" {
		return streaming
	}
	action.ChangeDescription = b.ChangeDescription
	if b.ConfigChanges == nil {
		b.ConfigChanges = map[string]any{}
	}

	if v == nil {
		v = NewDocumentValidator(nil)
	}
	changes, err := v.Validate(action.Action, action.ConfigType, action.Name, b.ConfigChanges)
	if err != nil {
		action.Error = validationMessage(err)
	} else {
		action.ConfigChanges = changes
	}
	return Part{Type: PartAction, Action: action, Closed: block.Closed}
}

// ParseMessage tokenizes text and classifies every block.
func ParseMessage(text string, v Validator) []Part {
	blocks := stream.Tokenize(text)
	parts := make([]Part, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, Classify(b, v))
	}
	return parts
}

// parseMetadata reads leading "// key: value" lines and returns them with
// the remaining text. Unknown keys are kept; lines without a colon are
// skipped.
func parseMetadata(content string) (map[string]string, string) {
	meta := make(map[string]string)
	rest := content
	for rest != "" {
		trimmed := strings.TrimLeft(rest, " \t")
		if !strings.HasPrefix(trimmed, "//") {
			break
		}
		line, next, _ := strings.Cut(trimmed, "\n")
		rest = next

		key, value, ok := strings.Cut(strings.TrimPrefix(line, "//"), ":")
		if !ok {
			continue
		}
		meta[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return meta, rest
}
