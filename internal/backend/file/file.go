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

// Package file provides a backend that keeps one YAML file per document.
//
// Layout under the root directory:
//
//	<id>.yaml                    current snapshot
//	.revisions/<id>/<n>.yaml     every saved snapshot, numbered from 1
package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rowboatlabs/rowboat/internal/backend"
	"github.com/rowboatlabs/rowboat/pkg/errors"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// Compile-time interface assertions.
var (
	_ backend.DocumentStore  = (*Backend)(nil)
	_ backend.DocumentLister = (*Backend)(nil)
	_ backend.RevisionStore  = (*Backend)(nil)
	_ backend.Backend        = (*Backend)(nil)
)

const (
	ext         = ".yaml"
	revisionDir = ".revisions"
)

// Backend stores documents as YAML files in a directory.
type Backend struct {
	mu  sync.Mutex
	dir string
}

// New creates a file backend rooted at dir, creating it if needed.
func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workflows directory: %w", err)
	}
	return &Backend{dir: dir}, nil
}

// Dir returns the root directory.
func (b *Backend) Dir() string {
	return b.dir
}

// SaveDocument writes the current snapshot and a new revision.
func (b *Backend) SaveDocument(ctx context.Context, doc *workflow.Document) error {
	if err := backend.CheckID(doc); err != nil {
		return err
	}
	if err := checkName(doc.ID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := WriteFile(b.path(doc.ID), doc); err != nil {
		return err
	}

	revs := filepath.Join(b.dir, revisionDir, doc.ID)
	if err := os.MkdirAll(revs, 0o755); err != nil {
		return fmt.Errorf("failed to create revisions directory: %w", err)
	}
	numbers, err := revisionNumbers(revs)
	if err != nil {
		return err
	}
	next := 1
	if len(numbers) > 0 {
		next = numbers[len(numbers)-1] + 1
	}
	return WriteFile(filepath.Join(revs, strconv.Itoa(next)+ext), doc)
}

// GetDocument reads a document by ID.
func (b *Backend) GetDocument(ctx context.Context, id string) (*workflow.Document, error) {
	if err := checkName(id); err != nil {
		return nil, err
	}
	doc, err := ReadFile(b.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &errors.NotFoundError{Resource: "document", ID: id}
	}
	return doc, err
}

// ListDocuments summarizes every document in the directory, newest first.
// Files that fail to parse are skipped.
func (b *Backend) ListDocuments(ctx context.Context, filter backend.Filter) ([]backend.Summary, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflows directory: %w", err)
	}

	var result []backend.Summary
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		doc, err := ReadFile(filepath.Join(b.dir, e.Name()))
		if err != nil {
			continue
		}
		if doc.ID == "" {
			doc.ID = strings.TrimSuffix(e.Name(), ext)
		}
		if filter.ProjectID != "" && doc.ProjectID != filter.ProjectID {
			continue
		}
		result = append(result, backend.Summarize(doc))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// DeleteDocument removes a document and its revisions.
func (b *Backend) DeleteDocument(ctx context.Context, id string) error {
	if err := checkName(id); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.path(id)); err != nil {
		if os.IsNotExist(err) {
			return &errors.NotFoundError{Resource: "document", ID: id}
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return os.RemoveAll(filepath.Join(b.dir, revisionDir, id))
}

// ListRevisions reads every saved revision of a document, oldest first.
func (b *Backend) ListRevisions(ctx context.Context, id string) ([]backend.Revision, error) {
	if err := checkName(id); err != nil {
		return nil, err
	}
	dir := filepath.Join(b.dir, revisionDir, id)
	numbers, err := revisionNumbers(dir)
	if err != nil {
		return nil, err
	}
	if len(numbers) == 0 {
		return nil, &errors.NotFoundError{Resource: "document", ID: id}
	}

	out := make([]backend.Revision, 0, len(numbers))
	for _, n := range numbers {
		path := filepath.Join(dir, strconv.Itoa(n)+ext)
		doc, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat revision: %w", err)
		}
		out = append(out, backend.Revision{DocumentID: id, Number: n, Document: doc, SavedAt: info.ModTime()})
	}
	return out, nil
}

// Close is a no-op for the file backend.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) path(id string) string {
	return filepath.Join(b.dir, id+ext)
}

// ReadFile parses a workflow document from a YAML or JSON file.
func ReadFile(path string) (*workflow.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read workflow file")
	}
	doc, err := workflow.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// WriteFile encodes doc as YAML and replaces path atomically.
func WriteFile(path string, doc *workflow.Document) error {
	data, err := workflow.MarshalDocument(doc)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func revisionNumbers(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read revisions: %w", err)
	}
	var out []int
	for _, e := range entries {
		n, err := strconv.Atoi(strings.TrimSuffix(e.Name(), ext))
		if err != nil || e.IsDir() {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// checkName rejects IDs that would escape the directory.
func checkName(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return &errors.ValidationError{
			Field:   "id",
			Message: fmt.Sprintf("invalid document id %q", id),
		}
	}
	return nil
}
