package editor

import "github.com/rowboatlabs/rowboat/pkg/workflow"

// Selection points at the entity open in the editor. The zero value
// selects nothing.
type Selection struct {
	Kind workflow.Kind
	Name string
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool { return s.Kind == "" }

// State is the present editor state.
type State struct {
	// Document is the current workflow. It is shared, never modified in
	// place; clone it before making changes.
	Document *workflow.Document

	Selection Selection

	Saving     bool
	Publishing bool

	// PendingChanges is set while the latest revision has not been saved.
	PendingChanges bool

	// LastSaveError holds the most recent save failure, cleared by the
	// next successful save.
	LastSaveError error

	// PublishedID identifies the live document. A document whose ID
	// matches it is read-only.
	PublishedID string

	// Revision counts committed document changes.
	Revision uint64

	// SavedRevision is the newest revision known to be persisted.
	SavedRevision uint64
}

// Live reports whether the document is the published, read-only version.
func (s State) Live() bool {
	return s.Document != nil && s.Document.ID != "" && s.Document.ID == s.PublishedID
}
