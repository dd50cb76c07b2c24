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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// ValidateWorkflowsDir checks every workflow document in the file backend
// directory. It returns an error listing the documents that do not parse
// or violate document invariants. Other backends are not checked.
func ValidateWorkflowsDir(cfg *Config) error {
	if cfg.Backend.Type != BackendFile || cfg.Backend.File.Dir == "" {
		return nil
	}

	var problems []string
	err := filepath.Walk(cfg.Backend.File.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		doc, err := workflow.ParseDocument(data)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			return nil
		}
		if err := doc.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", filepath.Base(path), err))
		}
		return nil
	})
	if err != nil {
		// A missing directory is created on first save.
		return nil
	}

	if len(problems) > 0 {
		return fmt.Errorf(
			"the workflows directory %s contains invalid documents:\n  %s\n\n"+
				"Run 'rowboat validate <file>' for details on each document.",
			cfg.Backend.File.Dir,
			strings.Join(problems, "\n  "),
		)
	}
	return nil
}
