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
	"github.com/spf13/cobra"

	"github.com/rowboatlabs/rowboat/internal/commands/shared"
)

// commandGroups are the help sections, keyed by the "group" annotation.
var commandGroups = []*cobra.Group{
	{ID: "copilot", Title: "Copilot Commands:"},
	{ID: "editing", Title: "Editing Commands:"},
	{ID: "workflows", Title: "Workflow Commands:"},
	{ID: "other", Title: "Other Commands:"},
}

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for rowboat
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rowboat",
		Short: "Rowboat - multi-agent workflow editor",
		Long: `Rowboat edits multi-agent workflow documents: agents, tools, prompts and
pipelines. It applies the change blocks a copilot streams back, keeps an
undo/redo history of every edit and saves documents to the configured
backend.

Run 'rowboat validate <workflow>' to check a document.
Run 'rowboat copilot apply <workflow> <response>' to apply copilot changes.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	verbose, quiet, json, config := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.config/rowboat/config.yaml)")

	cmd.AddGroup(commandGroups...)

	return cmd
}

// AddCommands adds subcommands to root, placing each under the help
// section named by its "group" annotation.
func AddCommands(root *cobra.Command, cmds ...*cobra.Command) {
	for _, c := range cmds {
		if group := c.Annotations["group"]; group != "" && root.ContainsGroup(group) {
			c.GroupID = group
		}
		root.AddCommand(c)
	}
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
