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

package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rowboatlabs/rowboat/internal/commands/shared"
	"github.com/rowboatlabs/rowboat/pkg/workflow/schema"
	"github.com/rowboatlabs/rowboat/schemas"
)

// NewCommand creates the schema command
func NewCommand() *cobra.Command {
	var (
		outputFormat string
		writeToFile  bool
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "schema [kind]",
		Short: "Output the JSON Schema of copilot changes",
		Annotations: map[string]string{
			"group": "copilot",
		},
		Long: `Output the embedded JSON Schema that copilot change blocks are checked
against, one per entity kind: agent, tool, prompt and pipeline.

Without a kind, all schemas are printed as one object keyed by kind.

Use the --write flag to save the schemas to ./schemas/<kind>.changes.schema.json
in the current directory.`,
		Example: `  # Print the agent changes schema
  rowboat schema agent

  # Print every schema as YAML
  rowboat schema --output yaml

  # Save the schemas for IDE integration
  rowboat schema --write`,
		Args:          cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs:     schemas.Kinds(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := schemas.Kinds()
			if len(args) == 1 {
				kinds = args
			}

			if writeToFile {
				return writeSchemas(cmd, kinds, force)
			}

			var doc any
			if len(args) == 1 {
				s, err := schema.ChangesSchema(args[0])
				if err != nil {
					return shared.NewFailure("", err)
				}
				doc = s
			} else {
				all := make(map[string]any, len(kinds))
				for _, k := range kinds {
					s, err := schema.ChangesSchema(k)
					if err != nil {
						return shared.NewFailure("", err)
					}
					all[k] = s
				}
				doc = all
			}

			var (
				output []byte
				err    error
			)
			switch outputFormat {
			case "json":
				output, err = json.MarshalIndent(doc, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format JSON: %w", err)
				}
			case "yaml":
				output, err = yaml.Marshal(doc)
				if err != nil {
					return fmt.Errorf("failed to convert to YAML: %w", err)
				}
			default:
				return &shared.ExitError{
					Code:    shared.ExitInvalidWorkflow,
					Message: fmt.Sprintf("invalid output format: %s (must be 'json' or 'yaml')", outputFormat),
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "Output format: json (default), yaml")
	cmd.Flags().BoolVarP(&writeToFile, "write", "w", false, "Write to ./schemas/<kind>.changes.schema.json in current directory")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files (only with --write)")

	return cmd
}

// writeSchemas writes the raw embedded schemas. Existing files are only
// replaced with force, and nothing is written if any would be refused.
func writeSchemas(cmd *cobra.Command, kinds []string, force bool) error {
	destDir := filepath.Join(".", "schemas")
	paths := make([]string, 0, len(kinds))
	for _, k := range kinds {
		destPath := filepath.Join(destDir, k+".changes.schema.json")
		if _, err := os.Stat(destPath); err == nil && !force {
			return shared.NewFailure(fmt.Sprintf("file already exists: %s (use --force to overwrite)", destPath), nil)
		}
		paths = append(paths, destPath)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return shared.NewFailure(fmt.Sprintf("failed to create directory: %s", destDir), err)
	}

	p := shared.Printer{Styled: shared.IsStyled(cmd.OutOrStdout())}
	for i, k := range kinds {
		raw, err := schemas.GetChangesSchema(k)
		if err != nil {
			return shared.NewFailure("", err)
		}
		if err := os.WriteFile(paths[i], raw, 0o644); err != nil {
			return shared.NewFailure(fmt.Sprintf("failed to write file: %s", paths[i]), err)
		}
		if !shared.GetQuiet() {
			fmt.Fprintln(cmd.OutOrStdout(), p.OK("Schema written to "+paths[i]))
		}
	}
	return nil
}
