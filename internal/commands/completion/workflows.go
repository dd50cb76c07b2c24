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
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowboatlabs/rowboat/internal/backend"
	"github.com/rowboatlabs/rowboat/internal/backend/file"
	"github.com/rowboatlabs/rowboat/internal/commands/shared"
	"github.com/rowboatlabs/rowboat/internal/config"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

const (
	maxWorkflowFiles = 100
	maxSearchDepth   = 2
	backendTimeout   = 2 * time.Second
)

// workflowFile represents a discovered workflow file with metadata.
type workflowFile struct {
	path    string
	modTime int64
}

// CompleteWorkflowRefs completes the <workflow> argument: workflow files
// under the current directory (max 2 levels deep, newest first) followed
// by document IDs from the configured backend.
func CompleteWorkflowRefs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		var out []string
		files, _ := discoverWorkflowFiles(".", maxSearchDepth)
		sort.Slice(files, func(i, j int) bool {
			return files[i].modTime > files[j].modTime
		})
		if len(files) > maxWorkflowFiles {
			files = files[:maxWorkflowFiles]
		}
		for _, f := range files {
			out = append(out, f.path)
		}
		out = append(out, storedDocuments()...)
		return out, cobra.ShellCompDirectiveDefault
	})
}

// CompleteKinds completes an entity kind.
func CompleteKinds(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		return []string{
			"agent\tConversation, post-process or escalation agent",
			"tool\tTool callable by agents",
			"prompt\tReusable prompt",
			"pipeline\tOrdered agent sequence",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteEntityNames completes names of entities of the kind in args[1]
// from the workflow in args[0].
func CompleteEntityNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) < 2 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		doc := loadDocument(args[0])
		if doc == nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return doc.Names(workflow.Kind(args[1])), cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteAgentNames completes agent names from the workflow in args[0].
func CompleteAgentNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) < 1 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		doc := loadDocument(args[0])
		if doc == nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return doc.Names(workflow.KindAgent), cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteFields completes editable field names of the kind in args[1].
func CompleteFields(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) < 2 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return workflow.FieldNames(workflow.Kind(args[1])), cobra.ShellCompDirectiveNoFileComp
	})
}

// Positional chains per-position completers.
func Positional(fns ...cobra.CompletionFunc) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) >= len(fns) || fns[len(args)] == nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return fns[len(args)](cmd, args, toComplete)
	}
}

// SafeCompletionWrapper wraps a completion function with panic recovery.
// Returns empty completion list on panic or error.
func SafeCompletionWrapper(fn func() ([]string, cobra.ShellCompDirective)) (results []string, directive cobra.ShellCompDirective) {
	results = []string{}
	directive = cobra.ShellCompDirectiveNoFileComp

	defer func() {
		if r := recover(); r != nil {
			results = []string{}
			directive = cobra.ShellCompDirectiveNoFileComp
		}
	}()

	results, directive = fn()
	if results == nil {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}
	return results, directive
}

func loadDocument(ref string) *workflow.Document {
	if isSafeFile(ref) {
		if doc, err := file.ReadFile(ref); err == nil {
			return doc
		}
	}
	be, err := openBackend()
	if err != nil {
		return nil
	}
	defer be.Close()
	ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
	defer cancel()
	doc, err := be.GetDocument(ctx, ref)
	if err != nil {
		return nil
	}
	return doc
}

func storedDocuments() []string {
	be, err := openBackend()
	if err != nil {
		return nil
	}
	defer be.Close()
	ctx, cancel := context.WithTimeout(context.Background(), backendTimeout)
	defer cancel()
	summaries, err := be.ListDocuments(ctx, backend.Filter{Limit: maxWorkflowFiles})
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, s.ID+"\t"+s.Name)
	}
	return out
}

func openBackend() (backend.Backend, error) {
	cfg, err := config.Load(config.ResolvePath(shared.GetConfigPath()))
	if err != nil {
		return nil, err
	}
	return shared.OpenBackend(cfg.Backend)
}

// discoverWorkflowFiles searches for workflow files up to maxDepth levels.
func discoverWorkflowFiles(root string, maxDepth int) ([]workflowFile, error) {
	var files []workflowFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, _ := filepath.Rel(root, path)
		depth := strings.Count(relPath, string(filepath.Separator))
		if depth > maxDepth {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() && strings.HasPrefix(d.Name(), ".") && path != root {
			return fs.SkipDir
		}

		if d.IsDir() || !hasWorkflowExt(path) {
			return nil
		}

		if !isSafeFile(path) || !isWorkflowFile(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, workflowFile{path: path, modTime: info.ModTime().Unix()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func hasWorkflowExt(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// isSafeFile reports whether path is a regular file and not a symlink.
func isSafeFile(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// isWorkflowFile reports whether a file parses as a workflow with at
// least one agent.
func isWorkflowFile(path string) bool {
	doc, err := file.ReadFile(path)
	if err != nil {
		return false
	}
	return len(doc.Agents) > 0
}
