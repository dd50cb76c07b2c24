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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowboatlabs/rowboat/internal/backend/file"
	"github.com/rowboatlabs/rowboat/internal/commands/shared"
	"github.com/rowboatlabs/rowboat/pkg/copilot"
)

const testWorkflow = `id: wf-support
name: support
agents:
  - name: Router
    instructions: Route questions
    model: gpt-4.1
  - name: Billing
    instructions: Answer billing questions
    outputVisibility: internal
    controlType: relinquish_to_parent
tools: []
prompts: []
startAgent: Router
`

const testResponse = "I'll sharpen the router and add an email tool.\n" +
	"```copilot_change\n" +
	"// action: edit\n// config_type: agent\n// name: Router\n" +
	`{"change_description":"Sharper routing","config_changes":{"instructions":"Send billing to [@agent:Billing](#mention)","model":"gpt-4.1-mini"}}` +
	"\n```\n" +
	"```copilot_change\n" +
	"// action: create_new\n// config_type: tool\n// name: send_email\n" +
	`{"change_description":"Add email tool","config_changes":{"description":"Sends an email"}}` +
	"\n```\n" +
	"```copilot_change\n" +
	"// action: edit\n// config_type: agent\n// name: Ghost\n" +
	`{"config_changes":{"description":"boo"}}` +
	"\n```\n" +
	"Let me know if you want more.\n"

type fixture struct {
	workflow string
	response string
}

func setup(t *testing.T) fixture {
	t.Helper()
	shared.ResetFlagsForTest()
	t.Cleanup(shared.ResetFlagsForTest)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ROWBOAT_WORKFLOWS_DIR", t.TempDir())
	t.Setenv("ROWBOAT_SAVE_DEBOUNCE", "1ms")

	dir := t.TempDir()
	f := fixture{
		workflow: filepath.Join(dir, "support.yaml"),
		response: filepath.Join(dir, "response.md"),
	}
	require.NoError(t, os.WriteFile(f.workflow, []byte(testWorkflow), 0o644))
	require.NoError(t, os.WriteFile(f.response, []byte(testResponse), 0o644))
	return f
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func actionsOf(t *testing.T, out string) []*copilot.Action {
	t.Helper()
	var result struct {
		Parts []struct {
			Type       copilot.PartType `json:"type"`
			Incomplete bool             `json:"incomplete"`
			Action     *struct {
				Action     copilot.ActionType `json:"action"`
				ConfigType string             `json:"config_type"`
				Name       string             `json:"name"`
				Error      string             `json:"error"`
			} `json:"action"`
		} `json:"parts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)

	var actions []*copilot.Action
	for _, p := range result.Parts {
		if p.Action == nil {
			continue
		}
		actions = append(actions, &copilot.Action{
			Action: p.Action.Action,
			Name:   p.Action.Name,
			Error:  p.Action.Error,
		})
	}
	return actions
}

func TestParseText(t *testing.T) {
	f := setup(t)

	out, err := execute(t, "", "parse", f.response, "--workflow", f.workflow)
	require.NoError(t, err)
	assert.Contains(t, out, `edit agent "Router": Sharper routing`)
	assert.Contains(t, out, "fields: instructions, model")
	assert.Contains(t, out, "invalid: agent Ghost not found")
}

func TestParseJSON(t *testing.T) {
	f := setup(t)
	shared.SetJSONForTest(true)

	out, err := execute(t, "", "parse", f.response)
	require.NoError(t, err)

	actions := actionsOf(t, out)
	require.Len(t, actions, 3)
	assert.Equal(t, "Router", actions[0].Name)
	assert.Equal(t, copilot.ActionCreate, actions[1].Action)
	assert.Empty(t, actions[2].Error, "without a workflow only the schema is checked")
}

func TestParseStreamMatchesWhole(t *testing.T) {
	f := setup(t)
	shared.SetJSONForTest(true)

	whole, err := execute(t, "", "parse", f.response, "--workflow", f.workflow)
	require.NoError(t, err)

	for _, size := range []string{"1", "7", "64"} {
		streamed, err := execute(t, "", "parse", f.response, "--workflow", f.workflow, "--stream", "--chunk-size", size)
		require.NoError(t, err)
		assert.Equal(t, actionsOf(t, whole), actionsOf(t, streamed), "chunk size %s", size)
	}
}

func TestParseStreamEvents(t *testing.T) {
	f := setup(t)

	out, err := execute(t, "", "parse", f.response, "--stream", "--chunk-size", "32")
	require.NoError(t, err)
	assert.Contains(t, out, "block_added #0 text")
	assert.Contains(t, out, "block_updated")
	assert.Contains(t, out, "done")
}

func TestParseIncompleteDirective(t *testing.T) {
	setup(t)
	shared.SetJSONForTest(true)
	truncated := "Working on it.\n```copilot_change\n// action: edit\n// config_type: agent\n// name: Router\n{\"config_changes\":"

	out, err := execute(t, truncated, "parse", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"incomplete": true`)
}

func TestApplyAll(t *testing.T) {
	f := setup(t)
	shared.SetJSONForTest(true)

	out, err := execute(t, "", "apply", f.workflow, f.response)
	require.NoError(t, err)

	var result ApplyResult
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.True(t, result.Saved)
	require.Len(t, result.Applied, 2)
	assert.Equal(t, []string{"instructions", "model"}, result.Applied[0].Fields)
	assert.Equal(t, "send_email", result.Applied[1].Name)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, 3, result.Skipped[0].Action)

	doc, err := file.ReadFile(f.workflow)
	require.NoError(t, err)
	router, ok := doc.Agent("Router")
	require.True(t, ok)
	assert.Equal(t, "gpt-4.1-mini", router.Model)
	assert.Contains(t, router.Instructions, "[@agent:Billing](#mention)")
	_, ok = doc.Tool("send_email")
	assert.True(t, ok)
}

func TestApplySingleField(t *testing.T) {
	f := setup(t)

	out, err := execute(t, "", "apply", f.workflow, f.response, "--action", "1", "--field", "model")
	require.NoError(t, err)
	assert.Contains(t, out, "change 1: agent Router (1 fields)")

	doc, err := file.ReadFile(f.workflow)
	require.NoError(t, err)
	router, _ := doc.Agent("Router")
	assert.Equal(t, "gpt-4.1-mini", router.Model)
	assert.Equal(t, "Route questions", router.Instructions)
	_, ok := doc.Tool("send_email")
	assert.False(t, ok)
}

func TestApplyDryRun(t *testing.T) {
	f := setup(t)

	out, err := execute(t, "", "apply", f.workflow, f.response, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "MODIFY: agent Router (instructions, model)")
	assert.Contains(t, out, "CREATE: tool send_email")
	assert.Contains(t, out, "SKIP: agent Ghost (invalid: agent Ghost not found)")
	assert.Contains(t, out, "+ gpt-4.1-mini")

	data, err := os.ReadFile(f.workflow)
	require.NoError(t, err)
	assert.Equal(t, testWorkflow, string(data))
}

func TestApplyFromStdinStreamed(t *testing.T) {
	f := setup(t)

	_, err := execute(t, testResponse, "apply", f.workflow, "-", "--stream", "--chunk-size", "5")
	require.NoError(t, err)

	doc, err := file.ReadFile(f.workflow)
	require.NoError(t, err)
	_, ok := doc.Tool("send_email")
	assert.True(t, ok)
}

func TestApplyInteractive(t *testing.T) {
	f := setup(t)
	t.Cleanup(func() {
		confirm = shared.Confirm
		isNonInteractive = shared.IsNonInteractive
	})
	isNonInteractive = func() bool { return false }
	var asked []string
	confirm = func(title, _ string) (bool, error) {
		asked = append(asked, title)
		return len(asked) == 2, nil
	}

	out, err := execute(t, "", "apply", f.workflow, f.response, "--interactive")
	require.NoError(t, err)
	assert.Equal(t, []string{"Apply change 1?", "Apply change 2?"}, asked, "invalid changes are not offered")
	assert.Contains(t, out, "change 1 skipped: declined")

	doc, err := file.ReadFile(f.workflow)
	require.NoError(t, err)
	router, _ := doc.Agent("Router")
	assert.Equal(t, "gpt-4.1", router.Model)
	_, ok := doc.Tool("send_email")
	assert.True(t, ok)
}

func TestApplyFlagErrors(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "field without action", args: []string{"--field", "model"}, want: "--field requires --action"},
		{name: "action out of range", args: []string{"--action", "9"}, want: "response has 3 changes"},
		{name: "unknown field", args: []string{"--action", "1", "--field", "ragK"}, want: "field not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"apply", f.workflow, f.response}, tt.args...)
			_, err := execute(t, "", args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, shared.ExitFailed, shared.ExitCode(err))
		})
	}
}

func TestApplyLiveWorkflow(t *testing.T) {
	f := setup(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("editor:\n  published_id: wf-support\n"), 0o644))
	shared.SetConfigPathForTest(cfgPath)

	_, err := execute(t, "", "apply", f.workflow, f.response)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is live")
}
