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

// Package backend provides storage backends for workflow documents.
//
// # Interface Hierarchy
//
// The backend package uses interface segregation to allow minimal implementations:
//
//   - DocumentStore (core, required): SaveDocument, GetDocument
//   - DocumentLister (optional): ListDocuments, DeleteDocument
//   - RevisionStore (optional): ListRevisions
//   - io.Closer (optional): Close
//
// The Backend interface composes all of these for full-featured implementations.
// The editor only needs a DocumentStore, adapted to editor.Saver by Saver.
package backend

import (
	"context"
	"io"
	"time"

	"github.com/rowboatlabs/rowboat/pkg/errors"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
	"github.com/rowboatlabs/rowboat/pkg/workflow/editor"
)

// DocumentStore is the core interface for document storage.
type DocumentStore interface {
	// SaveDocument creates or replaces a document. The document must have
	// an ID.
	SaveDocument(ctx context.Context, doc *workflow.Document) error

	// GetDocument retrieves a document by ID. Missing documents return a
	// *errors.NotFoundError.
	GetDocument(ctx context.Context, id string) (*workflow.Document, error)
}

// DocumentLister is an optional interface for listing and deleting documents.
// Use type assertion to detect if a backend supports this capability:
//
//	if lister, ok := store.(DocumentLister); ok {
//	    docs, err := lister.ListDocuments(ctx, filter)
//	}
type DocumentLister interface {
	// ListDocuments lists document summaries ordered by last update,
	// newest first.
	ListDocuments(ctx context.Context, filter Filter) ([]Summary, error)

	// DeleteDocument deletes a document by ID.
	DeleteDocument(ctx context.Context, id string) error
}

// RevisionStore is an optional interface for backends that keep every
// saved snapshot.
type RevisionStore interface {
	// ListRevisions returns the saved revisions of a document, oldest first.
	ListRevisions(ctx context.Context, id string) ([]Revision, error)
}

// Backend defines the full interface for document storage.
type Backend interface {
	DocumentStore
	DocumentLister
	RevisionStore
	io.Closer
}

// Summary describes a stored document without its entities.
type Summary struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id,omitempty"`
	Name      string    `json:"name"`
	Agents    int       `json:"agents"`
	Tools     int       `json:"tools"`
	Prompts   int       `json:"prompts"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filter contains filtering options for listing documents.
type Filter struct {
	ProjectID string
	Limit     int
}

// Revision is one saved snapshot of a document.
type Revision struct {
	DocumentID string             `json:"document_id"`
	Number     int                `json:"number"`
	Document   *workflow.Document `json:"document"`
	SavedAt    time.Time          `json:"saved_at"`
}

// Summarize builds the summary of doc.
func Summarize(doc *workflow.Document) Summary {
	updated := doc.LastUpdatedAt
	if updated.IsZero() {
		updated = doc.CreatedAt
	}
	return Summary{
		ID:        doc.ID,
		ProjectID: doc.ProjectID,
		Name:      doc.Name,
		Agents:    len(doc.Agents),
		Tools:     len(doc.Tools),
		Prompts:   len(doc.Prompts),
		UpdatedAt: updated,
	}
}

// CheckID rejects documents without an identity.
func CheckID(doc *workflow.Document) error {
	if doc == nil || doc.ID == "" {
		return &errors.ValidationError{
			Field:      "id",
			Message:    "document has no id",
			Suggestion: "assign an id before saving",
		}
	}
	return nil
}

// Saver adapts a DocumentStore to the editor's autosave interface.
func Saver(store DocumentStore) editor.Saver {
	return editor.SaverFunc(func(ctx context.Context, doc *workflow.Document) error {
		return store.SaveDocument(ctx, doc)
	})
}
