package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rowboatlabs/rowboat/pkg/errors"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// DefaultSaveDebounce is the quiet period before an automatic save.
const DefaultSaveDebounce = time.Second

// Saver persists a document snapshot.
type Saver interface {
	Save(ctx context.Context, doc *workflow.Document) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, doc *workflow.Document) error

// Save implements Saver.
func (f SaverFunc) Save(ctx context.Context, doc *workflow.Document) error {
	return f(ctx, doc)
}

// AutoSaverOptions configures an AutoSaver.
type AutoSaverOptions struct {
	// Debounce is the quiet period after the last change before saving.
	// Defaults to DefaultSaveDebounce.
	Debounce time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer

	// OnSave, when set, is called after every save attempt.
	OnSave func(elapsed time.Duration, err error)
}

// AutoSaver saves the store's document after changes settle.
//
// Rapid edits coalesce into one save of the latest snapshot. At most one
// save is in flight; a change made during a save triggers another save
// right after it succeeds. A failed save is recorded on the store as
// LastSaveError and is not retried until the next change or Flush.
type AutoSaver struct {
	store  *Store
	saver  Saver
	window time.Duration
	logger *slog.Logger
	tracer trace.Tracer
	onSave func(time.Duration, error)

	mu       sync.Mutex
	timer    *time.Timer
	seen     uint64
	inFlight bool
	queued   bool
	idle     chan struct{}
	closed   bool

	unsubscribe func()
}

// NewAutoSaver attaches an AutoSaver to store.
func NewAutoSaver(store *Store, saver Saver, opts AutoSaverOptions) *AutoSaver {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultSaveDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/rowboatlabs/rowboat/pkg/workflow/editor")
	}
	a := &AutoSaver{
		store:  store,
		saver:  saver,
		window: opts.Debounce,
		logger: opts.Logger.With(slog.String("component", "autosave")),
		tracer: opts.Tracer,
		onSave: opts.OnSave,
		seen:   store.State().Revision,
	}
	a.unsubscribe = store.Subscribe(a.observe)
	return a
}

// observe schedules a save when the document revision moves.
func (a *AutoSaver) observe(state State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || state.Revision <= a.seen {
		return
	}
	a.seen = state.Revision

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.window, a.fire)
}

// fire runs when the debounce window expires.
func (a *AutoSaver) fire() {
	a.mu.Lock()
	a.timer = nil
	if a.inFlight {
		a.queued = true
		a.mu.Unlock()
		return
	}
	a.begin()
	a.mu.Unlock()

	_ = a.saveLoop(context.Background())
}

// begin marks a save in flight. Called with a.mu held.
func (a *AutoSaver) begin() {
	a.inFlight = true
	a.queued = false
	a.idle = make(chan struct{})
}

// saveLoop saves until no newer snapshot is queued or a save fails.
func (a *AutoSaver) saveLoop(ctx context.Context) error {
	for {
		err := a.saveOnce(ctx)

		a.mu.Lock()
		if err == nil && a.queued {
			a.queued = false
			a.mu.Unlock()
			continue
		}
		a.inFlight = false
		a.queued = false
		close(a.idle)
		a.mu.Unlock()
		return err
	}
}

func (a *AutoSaver) saveOnce(ctx context.Context) error {
	state := a.store.State()
	if !state.PendingChanges {
		return nil
	}
	doc := state.Document.Clone()

	ctx, span := a.tracer.Start(ctx, "editor.autosave", trace.WithAttributes(
		attribute.String("document_id", doc.ID),
		attribute.Int64("revision", int64(state.Revision)),
	))
	defer span.End()

	a.store.Dispatch(SetSaving{Saving: true})
	start := time.Now()
	err := a.saver.Save(ctx, doc)
	elapsed := time.Since(start)

	if err != nil {
		err = errors.Persist("save", doc.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		a.logger.Warn("autosave failed",
			slog.String("document_id", doc.ID),
			slog.Uint64("revision", state.Revision),
			slog.Any("error", err))
	} else {
		a.logger.Debug("autosave complete",
			slog.String("document_id", doc.ID),
			slog.Uint64("revision", state.Revision),
			slog.Duration("elapsed", elapsed))
	}

	a.store.Dispatch(SaveFinished{Revision: state.Revision, Err: err})
	if a.onSave != nil {
		a.onSave(elapsed, err)
	}
	return err
}

// Flush cancels the debounce timer and saves pending changes now, waiting
// for any in-flight save first. It returns the save error, if any.
func (a *AutoSaver) Flush(ctx context.Context) error {
	for {
		a.mu.Lock()
		if a.timer != nil {
			a.timer.Stop()
			a.timer = nil
		}
		if !a.inFlight {
			a.begin()
			a.mu.Unlock()
			return a.saveLoop(ctx)
		}
		idle := a.idle
		a.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops watching the store. Pending changes are not saved; call
// Flush first.
func (a *AutoSaver) Close() {
	a.unsubscribe()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
