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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowboatlabs/rowboat/internal/commands/shared"
)

const testWorkflow = `id: wf-support
name: support
agents:
  - name: Router
    instructions: Ask [@agent:Ghost](#mention)
    model: gpt-4.1
  - name: Billing
    outputVisibility: internal
    controlType: relinquish_to_parent
    disabled: true
tools:
  - name: lookup
    description: Look up an invoice
    parameters:
      type: object
prompts:
  - name: tone
    type: style_prompt
    prompt: Be brief.
pipelines:
  - name: triage
    agents: [Router, Billing]
startAgent: Router
`

func setup(t *testing.T) string {
	t.Helper()
	shared.ResetFlagsForTest()
	t.Cleanup(shared.ResetFlagsForTest)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ROWBOAT_WORKFLOWS_DIR", t.TempDir())

	path := filepath.Join(t.TempDir(), "support.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testWorkflow), 0o644))
	return path
}

func execute(args ...string) (string, error) {
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestOverview(t *testing.T) {
	path := setup(t)

	out, err := execute(path)
	require.NoError(t, err)
	assert.Contains(t, out, "Agents (2)")
	assert.Contains(t, out, "Router  conversation, user_facing, retain, gpt-4.1  [start]")
	assert.Contains(t, out, "[disabled]")
	assert.Contains(t, out, "triage  Router -> Billing")
	assert.Contains(t, out, `agent "Router" mentions unknown agent "Ghost"`)
}

func TestQueryRaw(t *testing.T) {
	path := setup(t)

	out, err := execute(path, "-e", `.agents[] | select(.outputVisibility == "internal") | .name`, "--raw")
	require.NoError(t, err)
	assert.Equal(t, "Billing\n", out)
}

func TestQueryJSON(t *testing.T) {
	path := setup(t)
	shared.SetJSONForTest(true)

	out, err := execute(path, "--query", "[.tools[].name]")
	require.NoError(t, err)

	var result QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []any{[]any{"lookup"}}, result.Results)
}

func TestQueryInvalid(t *testing.T) {
	path := setup(t)

	_, err := execute(path, "-e", ".agents[")
	require.Error(t, err)
	assert.Equal(t, shared.ExitFailed, shared.ExitCode(err))
}
