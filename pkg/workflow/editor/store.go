// Package editor implements the command-sourced workflow editor store:
// a present state plus a bounded linear undo/redo history of field-level
// patches.
package editor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// DefaultHistoryLimit bounds the undo history when Options leaves it unset.
const DefaultHistoryLimit = 100

// Dispatcher accepts commands.
type Dispatcher interface {
	Dispatch(cmd Command) bool
}

// Options configures a Store.
type Options struct {
	// HistoryLimit bounds the number of undoable entries. Oldest entries
	// are dropped first. Defaults to DefaultHistoryLimit.
	HistoryLimit int

	// PublishedID marks the live document identity.
	PublishedID string

	// DefaultModel is assigned to new agents without a model.
	DefaultModel string

	// Clock returns the time stamped on committed mutations.
	// Defaults to time.Now.
	Clock func() time.Time

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OnDispatch, when set, is called after every dispatch with the
	// command type and whether the state changed.
	OnDispatch func(command string, changed bool)
}

// Store owns the workflow document. It is the only place the document is
// mutated. Store is safe for concurrent use; commands are applied one at a
// time in arrival order.
type Store struct {
	mu      sync.Mutex
	present State
	history []Entry
	cursor  int

	limit      int
	now        func() time.Time
	reducer    reducer
	logger     *slog.Logger
	onDispatch func(string, bool)

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// NewStore creates a store holding doc. The store keeps its own copy.
func NewStore(doc *workflow.Document, opts Options) *Store {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if doc == nil {
		doc = &workflow.Document{}
	}
	return &Store{
		present: State{
			Document:    doc.Clone(),
			PublishedID: opts.PublishedID,
		},
		limit:      opts.HistoryLimit,
		now:        opts.Clock,
		reducer:    reducer{defaultModel: opts.DefaultModel},
		logger:     opts.Logger.With(slog.String("component", "editor")),
		onDispatch: opts.OnDispatch,
		subs:       make(map[int]func(State)),
	}
}

// State returns the present state. The document must not be modified.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present
}

// Document returns a copy of the present document.
func (s *Store) Document() *workflow.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present.Document.Clone()
}

// CanUndo reports whether an undo would change the document.
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor > 0 && !s.present.Live()
}

// CanRedo reports whether a redo would change the document.
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor < len(s.history) && !s.present.Live()
}

// History returns a copy of the history entries and the cursor.
func (s *Store) History() ([]Entry, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.history))
	copy(out, s.history)
	return out, s.cursor
}

// Subscribe registers fn to receive the state after every change and
// returns a function that removes it. fn runs on the dispatching goroutine
// and may dispatch further commands.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Dispatch applies cmd and reports whether the present state changed.
// Commands that cannot apply are silent no-ops.
func (s *Store) Dispatch(cmd Command) bool {
	s.mu.Lock()
	changed := s.apply(cmd)
	state := s.present
	s.mu.Unlock()

	if s.onDispatch != nil {
		s.onDispatch(cmd.CommandType(), changed)
	}
	if !changed {
		s.logger.Debug("command ignored", slog.String("command", cmd.CommandType()))
		return false
	}
	s.notify(state)
	return true
}

func (s *Store) notify(state State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

// apply runs with s.mu held.
func (s *Store) apply(cmd Command) bool {
	switch c := cmd.(type) {
	case SelectAgent:
		return s.selectEntity(workflow.KindAgent, c.Name)
	case SelectTool:
		return s.selectEntity(workflow.KindTool, c.Name)
	case SelectPrompt:
		return s.selectEntity(workflow.KindPrompt, c.Name)
	case SelectPipeline:
		return s.selectEntity(workflow.KindPipeline, c.Name)
	case Unselect:
		if s.present.Selection.Empty() {
			return false
		}
		s.present.Selection = Selection{}
		return true

	case SetSaving:
		if s.present.Saving == c.Saving {
			return false
		}
		s.present.Saving = c.Saving
		return true
	case SetPublishing:
		if s.present.Publishing == c.Publishing {
			return false
		}
		s.present.Publishing = c.Publishing
		return true
	case SaveFinished:
		s.present.Saving = false
		s.present.LastSaveError = c.Err
		if c.Err == nil && c.Revision > s.present.SavedRevision {
			s.present.SavedRevision = c.Revision
		}
		s.present.PendingChanges = s.present.Revision > s.present.SavedRevision
		return true
	}

	if s.present.Live() {
		return false
	}

	switch c := cmd.(type) {
	case Undo:
		if s.cursor <= 0 {
			return false
		}
		s.cursor--
		s.commit(s.history[s.cursor].Inverse.apply(s.present.Document))
		return true
	case Redo:
		if s.cursor >= len(s.history) {
			return false
		}
		s.commit(s.history[s.cursor].Forward.apply(s.present.Document))
		s.cursor++
		return true
	case RestoreState:
		restored := c.State
		if restored.Document == nil {
			return false
		}
		restored.Document = restored.Document.Clone()
		restored.Revision = s.present.Revision + 1
		restored.SavedRevision = s.present.SavedRevision
		restored.PendingChanges = true
		s.present = restored
		s.history = nil
		s.cursor = 0
		return true
	}

	prev := s.present.Document
	next, rn := s.reducer.reduce(prev, cmd)
	if next == nil {
		return false
	}
	next.LastUpdatedAt = s.now()

	forward, inverse := diff(prev, next)
	if len(forward) == 0 || onlyTimestamp(forward) {
		return false
	}

	s.history = append(s.history[:s.cursor], Entry{Command: cmd.CommandType(), Forward: forward, Inverse: inverse})
	if len(s.history) > s.limit {
		s.history = s.history[len(s.history)-s.limit:]
	}
	s.cursor = len(s.history)

	if rn != nil && s.present.Selection == (Selection{Kind: rn.kind, Name: rn.from}) {
		s.present.Selection.Name = rn.to
	}
	s.commit(next)
	s.logger.Debug("command applied",
		slog.String("command", cmd.CommandType()),
		slog.String("document_id", next.ID),
		slog.Any("paths", forward.Paths()))
	return true
}

// commit installs doc as the present document.
func (s *Store) commit(doc *workflow.Document) {
	s.present.Document = doc
	s.present.Revision++
	s.present.PendingChanges = true
	if !s.present.Selection.Empty() && !doc.Has(s.present.Selection.Kind, s.present.Selection.Name) {
		s.present.Selection = Selection{}
	}
}

func (s *Store) selectEntity(kind workflow.Kind, name string) bool {
	sel := Selection{Kind: kind, Name: name}
	if s.present.Selection == sel || !s.present.Document.Has(kind, name) {
		return false
	}
	s.present.Selection = sel
	return true
}

func onlyTimestamp(p Patch) bool {
	return len(p) == 1 && p[0].Path == PathLastUpdatedAt
}
