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

// Package sqlite provides a SQLite backend implementation for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

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

// Backend is a SQLite storage backend. The current snapshot of each
// document lives in documents; every save is also appended to
// document_revisions.
type Backend struct {
	db  *sql.DB
	now func() time.Time
}

// Config contains SQLite connection configuration.
type Config struct {
	// Path is the database file path.
	Path string

	// WAL enables Write-Ahead Logging mode for concurrent reads.
	WAL bool
}

// New creates a new SQLite backend.
func New(cfg Config) (*Backend, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes, so only 1 connection for writes
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	b := &Backend{db: db, now: time.Now}

	if err := b.configurePragmas(ctx, cfg.WAL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure pragmas: %w", err)
	}

	if err := b.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return b, nil
}

// configurePragmas sets SQLite configuration options.
func (b *Backend) configurePragmas(ctx context.Context, enableWAL bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}

	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}

	for _, pragma := range pragmas {
		if _, err := b.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// migrate runs database migrations.
func (b *Backend) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			project_id TEXT,
			name TEXT NOT NULL DEFAULT '',
			agents INTEGER NOT NULL DEFAULT 0,
			tools INTEGER NOT NULL DEFAULT 0,
			prompts INTEGER NOT NULL DEFAULT 0,
			body TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_project_id ON documents(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at)`,
		`CREATE TABLE IF NOT EXISTS document_revisions (
			document_id TEXT NOT NULL,
			number INTEGER NOT NULL,
			body TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (document_id, number),
			FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
		)`,
	}

	for _, migration := range migrations {
		if _, err := b.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// SaveDocument upserts the current snapshot and appends a revision in one
// transaction.
func (b *Backend) SaveDocument(ctx context.Context, doc *workflow.Document) error {
	if err := backend.CheckID(doc); err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	sum := backend.Summarize(doc)
	savedAt := b.now().UTC()
	if sum.UpdatedAt.IsZero() {
		sum.UpdatedAt = savedAt
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, project_id, name, agents, tools, prompts, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			name = excluded.name,
			agents = excluded.agents,
			tools = excluded.tools,
			prompts = excluded.prompts,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, sum.ID, nullString(sum.ProjectID), sum.Name, sum.Agents, sum.Tools, sum.Prompts,
		string(body), sum.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_revisions (document_id, number, body, saved_at)
		SELECT ?, COALESCE(MAX(number), 0) + 1, ?, ?
		FROM document_revisions WHERE document_id = ?
	`, doc.ID, string(body), savedAt.Format(time.RFC3339Nano), doc.ID)
	if err != nil {
		return fmt.Errorf("failed to save revision: %w", err)
	}

	return tx.Commit()
}

// GetDocument retrieves a document by ID.
func (b *Backend) GetDocument(ctx context.Context, id string) (*workflow.Document, error) {
	var body string
	err := b.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE id = ?`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "document", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return decode(body)
}

// ListDocuments lists document summaries, newest first.
func (b *Backend) ListDocuments(ctx context.Context, filter backend.Filter) ([]backend.Summary, error) {
	query := `SELECT id, project_id, name, agents, tools, prompts, updated_at FROM documents`
	var args []any
	if filter.ProjectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, filter.ProjectID)
	}
	query += ` ORDER BY updated_at DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var result []backend.Summary
	for rows.Next() {
		var s backend.Summary
		var projectID sql.NullString
		var updatedAt string
		if err := rows.Scan(&s.ID, &projectID, &s.Name, &s.Agents, &s.Tools, &s.Prompts, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		s.ProjectID = projectID.String
		s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		result = append(result, s)
	}
	return result, rows.Err()
}

// DeleteDocument deletes a document and, by cascade, its revisions.
func (b *Backend) DeleteDocument(ctx context.Context, id string) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return &errors.NotFoundError{Resource: "document", ID: id}
	}
	return nil
}

// ListRevisions returns the saved revisions of a document, oldest first.
func (b *Backend) ListRevisions(ctx context.Context, id string) ([]backend.Revision, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT number, body, saved_at FROM document_revisions
		WHERE document_id = ? ORDER BY number ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer rows.Close()

	var result []backend.Revision
	for rows.Next() {
		var number int
		var body, savedAt string
		if err := rows.Scan(&number, &body, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		doc, err := decode(body)
		if err != nil {
			return nil, err
		}
		t, _ := time.Parse(time.RFC3339Nano, savedAt)
		result = append(result, backend.Revision{DocumentID: id, Number: number, Document: doc, SavedAt: t})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, &errors.NotFoundError{Resource: "document", ID: id}
	}
	return result, nil
}

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

func decode(body string) (*workflow.Document, error) {
	var doc workflow.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &doc, nil
}

// nullString converts an empty string to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
