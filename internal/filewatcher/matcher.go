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

package filewatcher

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher applies include and exclude glob patterns to file paths.
// Patterns use doublestar syntax, so ** matches across directories.
type Matcher struct {
	include []string
	exclude []string
}

// NewMatcher validates the patterns and returns a Matcher. An empty
// include list matches everything; excludes are applied afterwards.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	for _, p := range include {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include pattern %q", p)
		}
	}
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return &Matcher{include: include, exclude: exclude}, nil
}

// Match reports whether name is included and not excluded. Each pattern is
// tried against name and its base name; callers pass paths relative to the
// watched root.
func (m *Matcher) Match(name string) bool {
	included := len(m.include) == 0
	for _, p := range m.include {
		if matchPattern(p, name) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, p := range m.exclude {
		if matchPattern(p, name) {
			return false
		}
	}
	return true
}

// Excluded reports whether a directory should be skipped entirely, that
// is whether any file below it would be excluded.
func (m *Matcher) Excluded(dir string) bool {
	for _, p := range m.exclude {
		if matchPattern(p, path.Join(filepath.ToSlash(dir), "x")) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, name string) bool {
	name = filepath.ToSlash(name)
	if ok, _ := doublestar.Match(pattern, name); ok {
		return true
	}
	ok, _ := doublestar.Match(pattern, path.Base(name))
	return ok
}

// WorkflowPatterns matches workflow document files.
func WorkflowPatterns() []string {
	return []string{"*.yaml", "*.yml", "*.json"}
}

// DefaultExcludePatterns skips editor swap files, revision snapshots and
// hidden temp files written during atomic saves.
func DefaultExcludePatterns() []string {
	return []string{
		"*.swp",
		"*~",
		".#*",
		".*.yaml.*",
		"**/.revisions/**",
		"**/.git/**",
		"**/.idea/**",
		"**/.vscode/**",
	}
}
