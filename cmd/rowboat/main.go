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

package main

import (
	"github.com/rowboatlabs/rowboat/internal/cli"
	"github.com/rowboatlabs/rowboat/internal/commands/completion"
	"github.com/rowboatlabs/rowboat/internal/commands/copilot"
	"github.com/rowboatlabs/rowboat/internal/commands/edit"
	"github.com/rowboatlabs/rowboat/internal/commands/inspect"
	"github.com/rowboatlabs/rowboat/internal/commands/schema"
	"github.com/rowboatlabs/rowboat/internal/commands/validate"
	versioncmd "github.com/rowboatlabs/rowboat/internal/commands/version"
	"github.com/rowboatlabs/rowboat/internal/commands/watch"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	cli.AddCommands(rootCmd,
		// Copilot
		copilot.NewCommand(),
		schema.NewCommand(),

		// Editing
		edit.NewCommand(),

		// Workflows
		validate.NewCommand(),
		inspect.NewCommand(),
		watch.NewCommand(),

		// Other
		completion.NewCommand(),
		versioncmd.NewVersionCommand(),
	)

	// Custom help command with JSON support
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))
	rootCmd.SetHelpCommandGroupID("other")

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
