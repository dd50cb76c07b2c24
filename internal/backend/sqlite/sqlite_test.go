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

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rowboatlabs/rowboat/internal/backend"
	"github.com/rowboatlabs/rowboat/pkg/errors"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// createTestBackend creates a SQLite backend for testing in a temporary directory.
func createTestBackend(t *testing.T) (*Backend, string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	be, err := New(Config{Path: dbPath, WAL: true})
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	return be, dbPath
}

func testDocument(id, project string) *workflow.Document {
	return &workflow.Document{
		ID:        id,
		ProjectID: project,
		Name:      "support",
		Agents: []workflow.Agent{
			{Name: "Router", Type: workflow.AgentTypeConversation, OutputVisibility: workflow.VisibilityUserFacing, ControlType: workflow.ControlRetain},
		},
		Tools: []workflow.Tool{
			{Name: "lookup", Parameters: workflow.ToolParameters{Type: "object", Properties: map[string]workflow.ToolProperty{"id": {Type: "string"}}}},
		},
		Prompts:    []workflow.Prompt{{Name: "tone", Type: workflow.PromptTypeStyle, Prompt: "Be brief."}},
		StartAgent: "Router",
	}
}

func TestSQLiteBackend_SaveAndGet(t *testing.T) {
	be, _ := createTestBackend(t)
	defer be.Close()

	ctx := context.Background()
	doc := testDocument("wf-1", "proj")

	if err := be.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("failed to save document: %v", err)
	}

	got, err := be.GetDocument(ctx, "wf-1")
	if err != nil {
		t.Fatalf("failed to get document: %v", err)
	}
	if got.Name != "support" {
		t.Errorf("expected name support, got %s", got.Name)
	}
	if len(got.Agents) != 1 || got.Agents[0].Name != "Router" {
		t.Errorf("unexpected agents: %+v", got.Agents)
	}
	if got.Tools[0].Parameters.Properties["id"].Type != "string" {
		t.Errorf("tool parameters not preserved: %+v", got.Tools[0].Parameters)
	}
}

func TestSQLiteBackend_GetMissing(t *testing.T) {
	be, _ := createTestBackend(t)
	defer be.Close()

	_, err := be.GetDocument(context.Background(), "missing")
	var nf *errors.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSQLiteBackend_SaveRequiresID(t *testing.T) {
	be, _ := createTestBackend(t)
	defer be.Close()

	err := be.SaveDocument(context.Background(), testDocument("", ""))
	var verr *errors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSQLiteBackend_Revisions(t *testing.T) {
	be, _ := createTestBackend(t)
	defer be.Close()

	ctx := context.Background()
	doc := testDocument("wf-1", "")
	if err := be.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("first save: %v", err)
	}
	doc.Prompts[0].Prompt = "Be thorough."
	if err := be.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("second save: %v", err)
	}

	revs, err := be.ListRevisions(ctx, "wf-1")
	if err != nil {
		t.Fatalf("failed to list revisions: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(revs))
	}
	if revs[0].Number != 1 || revs[1].Number != 2 {
		t.Errorf("unexpected revision numbers %d, %d", revs[0].Number, revs[1].Number)
	}
	if revs[0].Document.Prompts[0].Prompt != "Be brief." {
		t.Errorf("first revision changed: %q", revs[0].Document.Prompts[0].Prompt)
	}

	current, err := be.GetDocument(ctx, "wf-1")
	if err != nil {
		t.Fatalf("failed to get document: %v", err)
	}
	if current.Prompts[0].Prompt != "Be thorough." {
		t.Errorf("expected latest snapshot, got %q", current.Prompts[0].Prompt)
	}
}

func TestSQLiteBackend_ListDocuments(t *testing.T) {
	be, _ := createTestBackend(t)
	defer be.Close()

	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		doc := testDocument(id, "proj")
		if id == "c" {
			doc.ProjectID = "other"
		}
		doc.LastUpdatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := be.SaveDocument(ctx, doc); err != nil {
			t.Fatalf("failed to save %s: %v", id, err)
		}
	}

	all, err := be.ListDocuments(ctx, backend.Filter{})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[0].Agents != 1 || all[0].Tools != 1 || all[0].Prompts != 1 {
		t.Errorf("unexpected counts: %+v", all[0])
	}

	filtered, err := be.ListDocuments(ctx, backend.Filter{ProjectID: "proj", Limit: 1})
	if err != nil {
		t.Fatalf("failed to list filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "b" {
		t.Errorf("expected [b], got %+v", filtered)
	}
}

func TestSQLiteBackend_DeleteCascades(t *testing.T) {
	be, _ := createTestBackend(t)
	defer be.Close()

	ctx := context.Background()
	if err := be.SaveDocument(ctx, testDocument("wf-1", "")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if err := be.DeleteDocument(ctx, "wf-1"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	var nf *errors.NotFoundError
	if _, err := be.ListRevisions(ctx, "wf-1"); !errors.As(err, &nf) {
		t.Errorf("expected revisions to be gone, got %v", err)
	}
	if err := be.DeleteDocument(ctx, "wf-1"); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError on second delete, got %v", err)
	}
}

func TestSQLiteBackend_Persistence(t *testing.T) {
	be, dbPath := createTestBackend(t)

	ctx := context.Background()
	if err := be.SaveDocument(ctx, testDocument("wf-1", "")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	be.Close()

	reopened, err := New(Config{Path: dbPath, WAL: true})
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.GetDocument(ctx, "wf-1"); err != nil {
		t.Errorf("document lost after reopen: %v", err)
	}
}
