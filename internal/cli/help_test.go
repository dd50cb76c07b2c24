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

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "rowboat",
		Short: "Test command",
	}
	root.PersistentFlags().Bool("verbose", false, "Verbose output")

	apply := &cobra.Command{
		Use:   "apply <workflow> <response>",
		Short: "Apply copilot changes",
		Long:  "Apply copilot changes to a workflow",
		Example: `  rowboat apply support.yaml response.md
  rowboat apply support.yaml - --stream`,
		Annotations: map[string]string{
			"group": "copilot",
		},
		Run: func(*cobra.Command, []string) {},
	}
	apply.Flags().Int("action", 0, "Apply only this change")
	apply.Flags().String("workflow", "", "Workflow to validate against")
	_ = apply.MarkFlagRequired("workflow")
	root.AddCommand(apply)

	root.SetHelpCommand(NewHelpCommand(root))
	return root
}

func runHelp(t *testing.T, root *cobra.Command, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"help"}, args...))
	require.NoError(t, root.Execute())
	return buf.String()
}

func TestHelpCommandJSON(t *testing.T) {
	t.Run("lists all commands", func(t *testing.T) {
		var resp HelpResponse
		require.NoError(t, json.Unmarshal([]byte(runHelp(t, newTestRoot(), "--json")), &resp))

		assert.Equal(t, "1.0", resp.Version)
		assert.True(t, resp.Success)
		assert.NotEmpty(t, resp.DocsURL)
		assert.Nil(t, resp.Command)
		require.NotEmpty(t, resp.Commands)
		assert.Equal(t, "apply", resp.Commands[0].Name)
		assert.Empty(t, resp.Groups)
		require.Len(t, resp.GlobalFlags, 1)
		assert.Equal(t, "verbose", resp.GlobalFlags[0].Name)
	})

	t.Run("shows specific command", func(t *testing.T) {
		var resp HelpResponse
		require.NoError(t, json.Unmarshal([]byte(runHelp(t, newTestRoot(), "apply", "--json")), &resp))

		require.NotNil(t, resp.Command)
		assert.Equal(t, "help apply", resp.JSONResponse.Command)
		assert.Equal(t, "apply", resp.Command.Name)
		assert.Equal(t, "copilot", resp.Command.Group)
		assert.NotEmpty(t, resp.Command.Examples)
		assert.Empty(t, resp.Commands)
	})
}

func TestHelpCommandHumanOutput(t *testing.T) {
	out := runHelp(t, newTestRoot())
	assert.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"), "expected human output, got JSON")
	assert.Contains(t, out, "apply")
}

func TestHelpUnknownCommand(t *testing.T) {
	root := newTestRoot()
	root.SilenceErrors = true
	root.SilenceUsage = true
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"help", "frobnicate", "--json"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `command "frobnicate" not found`)
}

func TestExtractCommandMetadata(t *testing.T) {
	root := newTestRoot()
	apply, _, err := root.Find([]string{"apply"})
	require.NoError(t, err)

	metadata := extractCommandMetadata(apply)

	assert.Equal(t, "apply", metadata.Name)
	assert.Equal(t, "Apply copilot changes", metadata.Short)
	assert.Equal(t, "copilot", metadata.Group)
	require.Len(t, metadata.Flags, 2)

	byName := map[string]FlagMetadata{}
	for _, f := range metadata.Flags {
		byName[f.Name] = f
	}
	assert.True(t, byName["workflow"].Required)
	assert.False(t, byName["action"].Required)
	assert.Equal(t, "0", byName["action"].Default)
}

func TestHelpListsGroups(t *testing.T) {
	root := NewRootCommand()
	AddCommands(root, &cobra.Command{Use: "apply", Run: func(*cobra.Command, []string) {}, Annotations: map[string]string{"group": "copilot"}})
	root.SetHelpCommand(NewHelpCommand(root))

	var resp HelpResponse
	require.NoError(t, json.Unmarshal([]byte(runHelp(t, root, "--json")), &resp))

	require.Len(t, resp.Groups, len(commandGroups))
	assert.Equal(t, GroupMetadata{ID: "copilot", Title: "Copilot Commands"}, resp.Groups[0])
	for _, c := range resp.Commands {
		if c.Name == "apply" {
			assert.Equal(t, "copilot", c.Group)
		}
	}
}

func TestExtractGlobalFlags(t *testing.T) {
	root := NewRootCommand()
	flags := extractGlobalFlags(root)

	names := make([]string, 0, len(flags))
	for _, f := range flags {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"verbose", "quiet", "json", "config"}, names)
}
