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

package completion

import (
	"github.com/spf13/cobra"
)

// NewCommand creates the completion command for generating shell completion scripts.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use: "completion [bash|zsh|fish|powershell]",
		Annotations: map[string]string{
			"group": "other",
		},
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for rowboat.

To load completions:

Bash:
  $ source <(rowboat completion bash)

  # For each session (Linux, user-local):
  $ mkdir -p ~/.local/share/bash-completion/completions
  $ rowboat completion bash > ~/.local/share/bash-completion/completions/rowboat

Zsh:
  # If shell completion is not already enabled, execute once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  $ rowboat completion zsh > "${fpath[1]}/_rowboat"

Fish:
  $ rowboat completion fish | source
  $ rowboat completion fish > ~/.config/fish/completions/rowboat.fish

PowerShell:
  rowboat completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE:                  runCompletion,
	}

	return cmd
}

func runCompletion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	switch args[0] {
	case "bash":
		return cmd.Root().GenBashCompletion(out)
	case "zsh":
		return cmd.Root().GenZshCompletion(out)
	case "fish":
		return cmd.Root().GenFishCompletion(out, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletion(out)
	}
	return nil
}
