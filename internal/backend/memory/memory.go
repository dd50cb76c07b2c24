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

// Package memory provides an in-memory backend implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

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

// Backend is an in-memory storage backend. Documents are copied on the way
// in and out so callers never share state with the store.
type Backend struct {
	mu        sync.RWMutex
	docs      map[string]*workflow.Document
	revisions map[string][]backend.Revision
	now       func() time.Time
}

// New creates a new in-memory backend.
func New() *Backend {
	return &Backend{
		docs:      make(map[string]*workflow.Document),
		revisions: make(map[string][]backend.Revision),
		now:       time.Now,
	}
}

// SaveDocument stores a copy of doc.
func (b *Backend) SaveDocument(ctx context.Context, doc *workflow.Document) error {
	if err := backend.CheckID(doc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	stored := doc.Clone()
	b.docs[doc.ID] = stored
	revs := b.revisions[doc.ID]
	b.revisions[doc.ID] = append(revs, backend.Revision{
		DocumentID: doc.ID,
		Number:     len(revs) + 1,
		Document:   stored.Clone(),
		SavedAt:    b.now(),
	})
	return nil
}

// GetDocument retrieves a copy of a document by ID.
func (b *Backend) GetDocument(ctx context.Context, id string) (*workflow.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	doc, ok := b.docs[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "document", ID: id}
	}
	return doc.Clone(), nil
}

// ListDocuments lists document summaries, newest first.
func (b *Backend) ListDocuments(ctx context.Context, filter backend.Filter) ([]backend.Summary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []backend.Summary
	for _, doc := range b.docs {
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

// DeleteDocument deletes a document and its revisions.
func (b *Backend) DeleteDocument(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.docs[id]; !ok {
		return &errors.NotFoundError{Resource: "document", ID: id}
	}
	delete(b.docs, id)
	delete(b.revisions, id)
	return nil
}

// ListRevisions returns copies of the saved revisions, oldest first.
func (b *Backend) ListRevisions(ctx context.Context, id string) ([]backend.Revision, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	revs, ok := b.revisions[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "document", ID: id}
	}
	out := make([]backend.Revision, len(revs))
	for i, r := range revs {
		r.Document = r.Document.Clone()
		out[i] = r
	}
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (b *Backend) Close() error {
	return nil
}
