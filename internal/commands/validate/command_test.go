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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowboatlabs/rowboat/internal/commands/shared"
)

const validWorkflow = `name: support
agents:
  - name: Router
    instructions: Send billing questions to [@agent:Billing](#mention) or [@agent:Ghost](#mention)
  - name: Billing
    instructions: Answer billing questions
tools: []
prompts: []
startAgent: Router
`

func setupEnv(t *testing.T) {
	t.Helper()
	shared.ResetFlagsForTest()
	t.Cleanup(shared.ResetFlagsForTest)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ROWBOAT_WORKFLOWS_DIR", t.TempDir())
}

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(args ...string) (string, string, error) {
	cmd := NewCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand()
	assert.Equal(t, "validate <workflow>", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
}

func TestValidateValidWorkflow(t *testing.T) {
	setupEnv(t)
	path := writeWorkflow(t, validWorkflow)

	out, _, err := execute(path)
	require.NoError(t, err)
	assert.Contains(t, out, "[OK]")
	assert.Contains(t, out, "2 agents, 0 tools, 0 prompts, 0 pipelines")
	assert.Contains(t, out, `agent "Router" mentions unknown agent "Ghost"`)
}

func TestValidateJSON(t *testing.T) {
	setupEnv(t)
	shared.SetJSONForTest(true)
	path := writeWorkflow(t, validWorkflow)

	out, _, err := execute(path)
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Success)
	assert.Equal(t, "Router", report.Workflow.StartAgent)
	assert.Len(t, report.Warnings, 1)
}

func TestValidateInvariantViolation(t *testing.T) {
	setupEnv(t)
	path := writeWorkflow(t, `agents:
  - name: A
  - name: A
tools: []
prompts: []
`)

	_, errOut, err := execute(path)
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidWorkflow, shared.ExitCode(err))
	assert.Contains(t, errOut, "error:")
}

func TestValidateUnparseable(t *testing.T) {
	setupEnv(t)
	shared.SetJSONForTest(true)
	path := writeWorkflow(t, "agents: [unterminated")

	out, _, err := execute(path)
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidWorkflow, shared.ExitCode(err))

	var resp struct {
		Success bool               `json:"success"`
		Errors  []shared.JSONError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, shared.ErrorCodeInvalidYAML, resp.Errors[0].Code)
}

func TestValidateUnknownReference(t *testing.T) {
	setupEnv(t)

	_, _, err := execute("no-such-document")
	require.Error(t, err)
	assert.Equal(t, shared.ExitFailed, shared.ExitCode(err))
}
