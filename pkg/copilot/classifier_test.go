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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowboatlabs/rowboat/pkg/copilot/stream"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

func testDoc() *workflow.Document {
	return &workflow.Document{
		ID:   "wf-1",
		Name: "support",
		Agents: []workflow.Agent{
			{Name: "Router", Type: workflow.AgentTypeConversation, OutputVisibility: workflow.VisibilityUserFacing, ControlType: workflow.ControlRetain, Instructions: "Hand off to [@agent:Billing](#mention)"},
			{Name: "Billing", Type: workflow.AgentTypeConversation, OutputVisibility: workflow.VisibilityInternal, ControlType: workflow.ControlRelinquishToParent},
			{Name: "Vault", Type: workflow.AgentTypeConversation, OutputVisibility: workflow.VisibilityInternal, ControlType: workflow.ControlRetain, Locked: true},
		},
		Tools: []workflow.Tool{
			{Name: "lookup", Description: "Look up an invoice", Parameters: workflow.ToolParameters{Type: "object"}},
			{Name: "github_search", Parameters: workflow.ToolParameters{Type: "object"}, IsMCP: true, MCPServerName: "github"},
		},
		Prompts: []workflow.Prompt{
			{Name: "style", Type: workflow.PromptTypeStyle, Prompt: "Be brief."},
		},
		StartAgent: "Router",
	}
}

// directive renders a copilot_change fence.
func directive(meta, body string, closed bool) string {
	s := "```copilot_change\n" + meta + body
	if closed {
		s += "\n```\n"
	}
	return s
}

const sendEmailMeta = "// action: create_new\n// config_type: tool\n// name: send_email\n"

func TestClassifyStreamingMetadata(t *testing.T) {
	parts := ParseMessage("Sure.\n"+directive(sendEmailMeta, "", false), NewDocumentValidator(testDoc()))
	require.Len(t, parts, 2)

	assert.Equal(t, PartText, parts[0].Type)
	p := parts[1]
	assert.Equal(t, PartStreamingAction, p.Type)
	assert.Equal(t, ActionCreate, p.Action.Action)
	assert.Equal(t, workflow.KindTool, p.Action.ConfigType)
	assert.Equal(t, "send_email", p.Action.Name)
	assert.False(t, p.Incomplete())
}

func TestClassifyFinishedAction(t *testing.T) {
	text := directive(sendEmailMeta, `{"change_description":"add email tool","config_changes":{"description":"Sends an email"}}`, true)
	parts := ParseMessage(text, NewDocumentValidator(testDoc()))
	require.Len(t, parts, 1)

	p := parts[0]
	require.Equal(t, PartAction, p.Type)
	assert.Empty(t, p.Action.Error)
	assert.Equal(t, "add email tool", p.Action.ChangeDescription)
	assert.Equal(t, []string{"description"}, p.Action.Fields())
	assert.Equal(t, &workflow.ToolChanges{Description: ptr("Sends an email")}, p.Action.ConfigChanges)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		block    stream.Block
		want     PartType
		wantErr  string
		wantName string
	}{
		{
			name:  "text passes through",
			block: stream.Block{Kind: stream.KindText, Content: "hello", Closed: true},
			want:  PartText,
		},
		{
			name:  "bare marker while streaming",
			block: stream.Block{Kind: stream.KindDirective, Content: stream.Marker + "\n"},
			want:  PartStreamingAction,
		},
		{
			name:  "closed directive without metadata is text",
			block: stream.Block{Kind: stream.KindDirective, Content: stream.Marker + "\n{}", Closed: true},
			want:  PartText,
		},
		{
			name:     "partial json",
			block:    stream.Block{Kind: stream.KindDirective, Content: stream.Marker + "\n" + sendEmailMeta + `{"config_changes": {"desc`},
			want:     PartStreamingAction,
			wantName: "send_email",
		},
		{
			name:  "missing name metadata",
			block: stream.Block{Kind: stream.KindDirective, Content: stream.Marker + "\n// action: edit\n// config_type: agent\n{}", Closed: true},
			want:  PartStreamingAction,
		},
		{
			name:     "missing config_changes defaults to empty",
			block:    stream.Block{Kind: stream.KindDirective, Content: stream.Marker + "\n// action: edit\n// config_type: agent\n// name: Billing\n{}", Closed: true},
			want:     PartAction,
			wantName: "Billing",
		},
		{
			name:    "unknown action",
			block:   stream.Block{Kind: stream.KindDirective, Content: stream.Marker + "\n// action: delete\n// config_type: agent\n// name: Billing\n{}", Closed: true},
			want:    PartAction,
			wantErr: `unknown action "delete"`,
		},
		{
			name:    "pipelines are not copilot targets",
			block:   stream.Block{Kind: stream.KindDirective, Content: stream.Marker + "\n// action: edit\n// config_type: pipeline\n// name: flow\n{}", Closed: true},
			want:    PartAction,
			wantErr: `unsupported config type "pipeline"`,
		},
	}

	v := NewDocumentValidator(testDoc())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Classify(tt.block, v)
			assert.Equal(t, tt.want, p.Type)
			if tt.want == PartText {
				assert.Equal(t, tt.block.Content, p.Text)
				return
			}
			require.NotNil(t, p.Action)
			assert.Equal(t, tt.wantErr, p.Action.Error)
			if tt.wantName != "" {
				assert.Equal(t, tt.wantName, p.Action.Name)
			}
			if tt.wantErr != "" {
				assert.Nil(t, p.Action.ConfigChanges)
			}
		})
	}
}

func TestClassifyIncompleteAfterClose(t *testing.T) {
	p := Classify(stream.Block{
		Kind:    stream.KindDirective,
		Content: stream.Marker + "\n" + sendEmailMeta + `{"config_changes": `,
		Closed:  true,
	}, nil)
	assert.Equal(t, PartStreamingAction, p.Type)
	assert.True(t, p.Incomplete())
}

func TestDocumentValidator(t *testing.T) {
	tests := []struct {
		name    string
		action  ActionType
		kind    workflow.Kind
		entity  string
		raw     map[string]any
		wantErr string
	}{
		{
			name: "edit instructions", action: ActionEdit, kind: workflow.KindAgent, entity: "Billing",
			raw: map[string]any{"instructions": "Mention [@agent:Ghost](#mention) freely"},
		},
		{
			name: "rename locked agent", action: ActionEdit, kind: workflow.KindAgent, entity: "Vault",
			raw:     map[string]any{"name": "Safe"},
			wantErr: "cannot rename locked agent",
		},
		{
			name: "locked agent keeps other edits", action: ActionEdit, kind: workflow.KindAgent, entity: "Vault",
			raw: map[string]any{"name": "Vault", "description": "d"},
		},
		{
			name: "rename onto existing agent", action: ActionEdit, kind: workflow.KindAgent, entity: "Billing",
			raw:     map[string]any{"name": "Router"},
			wantErr: "agent Router already exists",
		},
		{
			name: "create existing", action: ActionCreate, kind: workflow.KindPrompt, entity: "style",
			raw:     map[string]any{"prompt": "x"},
			wantErr: "prompt style already exists",
		},
		{
			name: "edit missing", action: ActionEdit, kind: workflow.KindTool, entity: "ghost",
			raw:     map[string]any{"description": "x"},
			wantErr: "tool ghost not found",
		},
		{
			name: "disable start agent", action: ActionEdit, kind: workflow.KindAgent, entity: "Router",
			raw:     map[string]any{"disabled": true},
			wantErr: "cannot disable the start agent",
		},
		{
			name: "external tool parameters", action: ActionEdit, kind: workflow.KindTool, entity: "github_search",
			raw:     map[string]any{"parameters": map[string]any{"properties": map[string]any{}}},
			wantErr: "cannot change parameters of external tool github_search",
		},
		{
			name: "external tool mock settings", action: ActionEdit, kind: workflow.KindTool, entity: "github_search",
			raw: map[string]any{"mockTool": true},
		},
		{
			name: "unknown field", action: ActionEdit, kind: workflow.KindAgent, entity: "Billing",
			raw:     map[string]any{"color": "red"},
			wantErr: "color: unknown field: color",
		},
		{
			name: "enum", action: ActionCreate, kind: workflow.KindAgent, entity: "New",
			raw:     map[string]any{"controlType": "wander"},
			wantErr: "controlType",
		},
		{
			name: "minimum", action: ActionEdit, kind: workflow.KindAgent, entity: "Billing",
			raw:     map[string]any{"ragK": float64(0)},
			wantErr: "ragK",
		},
	}

	v := NewDocumentValidator(testDoc())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes, err := v.Validate(tt.action, tt.kind, tt.entity, tt.raw)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.kind, changes.Kind())
				return
			}
			require.Error(t, err)
			assert.Contains(t, validationMessage(err), tt.wantErr)
		})
	}
}

func TestValidatorDecodesTypedChanges(t *testing.T) {
	changes, err := NewDocumentValidator(nil).Validate(ActionEdit, workflow.KindAgent, "Billing", map[string]any{
		"ragK":           float64(4),
		"ragDataSources": []any{"kb", "faq"},
		"type":           "escalation",
	})
	require.NoError(t, err)
	assert.Equal(t, &workflow.AgentChanges{
		Type:           ptr(workflow.AgentTypeEscalation),
		RagDataSources: &[]string{"kb", "faq"},
		RagK:           ptr(4),
	}, changes)
}

func TestValidatorFunc(t *testing.T) {
	v := ValidatorFunc(func(ActionType, workflow.Kind, string, map[string]any) (workflow.Changes, error) {
		return &workflow.PromptChanges{Prompt: ptr("fixed")}, nil
	})
	p := Classify(stream.Block{
		Kind:    stream.KindDirective,
		Content: stream.Marker + "\n// action: edit\n// config_type: prompt\n// name: style\n{\"config_changes\":{}}",
		Closed:  true,
	}, v)
	require.Equal(t, PartAction, p.Type)
	assert.Equal(t, []string{"prompt"}, p.Action.Fields())
}

func ptr[T any](v T) *T { return &v }

func TestActionPreview(t *testing.T) {
	doc := testDoc()
	p := Classify(stream.Block{
		Kind:    stream.KindDirective,
		Content: stream.Marker + "\n// action: edit\n// config_type: prompt\n// name: style\n{\"config_changes\":{\"prompt\":\"Be very brief.\"}}",
		Closed:  true,
	}, NewDocumentValidator(doc))
	require.Equal(t, PartAction, p.Type)

	diffs := p.Action.Preview(doc)
	require.Len(t, diffs, 1)
	assert.Equal(t, "Be brief.", diffs[0].Old)
	assert.Equal(t, "Be very brief.", diffs[0].New)

	var nilAction *Action
	assert.Nil(t, nilAction.Preview(doc))
}
