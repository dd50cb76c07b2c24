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

package shared

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rowboatlabs/rowboat/internal/backend"
	"github.com/rowboatlabs/rowboat/internal/backend/file"
	"github.com/rowboatlabs/rowboat/internal/backend/memory"
	"github.com/rowboatlabs/rowboat/internal/backend/sqlite"
	"github.com/rowboatlabs/rowboat/internal/config"
	internallog "github.com/rowboatlabs/rowboat/internal/log"
	"github.com/rowboatlabs/rowboat/internal/metrics"
	"github.com/rowboatlabs/rowboat/internal/tracing"
	pkgerrors "github.com/rowboatlabs/rowboat/pkg/errors"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
	"github.com/rowboatlabs/rowboat/pkg/workflow/editor"
)

// Env is the per-invocation environment of a command: configuration,
// logger and tracer provider.
type Env struct {
	Config  *config.Config
	Logger  *slog.Logger
	Tracing *tracing.Provider
}

// Setup loads configuration and builds the logger and tracer for cmd.
// Logs and spans go to the command's stderr.
func Setup(cmd *cobra.Command) (*Env, error) {
	cfg, err := config.Load(config.ResolvePath(GetConfigPath()))
	if err != nil {
		return nil, NewFailure("", err)
	}

	logCfg := internallog.FromEnv()
	if os.Getenv("LOG_LEVEL") == "" && os.Getenv("ROWBOAT_LOG_LEVEL") == "" && os.Getenv("ROWBOAT_DEBUG") == "" {
		logCfg.Level = cfg.Log.Level
	}
	if os.Getenv("LOG_FORMAT") == "" {
		logCfg.Format = internallog.Format(cfg.Log.Format)
	}
	logCfg.AddSource = logCfg.AddSource || cfg.Log.AddSource
	switch {
	case GetVerbose():
		logCfg.Level = "debug"
	case GetQuiet():
		logCfg.Level = "error"
	}
	logCfg.Output = cmd.ErrOrStderr()
	logger := internallog.WithComponent(internallog.New(logCfg), "cli")

	v, _, _ := GetVersion()
	tp, err := tracing.NewProvider(tracing.Config{
		Enabled:        cfg.Observability.Tracing.Enabled,
		Exporter:       cfg.Observability.Tracing.Exporter,
		ServiceName:    cfg.Observability.Tracing.ServiceName,
		ServiceVersion: v,
		Output:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, NewFailure("failed to set up tracing", err)
	}

	return &Env{Config: cfg, Logger: logger, Tracing: tp}, nil
}

// Close flushes pending spans.
func (e *Env) Close(ctx context.Context) error {
	return e.Tracing.Shutdown(ctx)
}

// OpenBackend creates the configured document backend.
func OpenBackend(cfg config.BackendConfig) (backend.Backend, error) {
	switch cfg.Type {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSQLite:
		be, err := sqlite.New(sqlite.Config{Path: cfg.SQLite.Path, WAL: cfg.SQLite.WALEnabled()})
		if err != nil {
			return nil, err
		}
		return be, nil
	case config.BackendFile, "":
		be, err := file.New(cfg.File.Dir)
		if err != nil {
			return nil, err
		}
		return be, nil
	}
	return nil, &pkgerrors.ConfigError{Key: "backend.type", Reason: fmt.Sprintf("unknown backend %q", cfg.Type)}
}

// Session is one workflow document opened for editing, either from a file
// path or by ID from the configured backend.
type Session struct {
	// Ref is the path or ID the session was opened with.
	Ref      string
	Document *workflow.Document

	path  string
	store backend.DocumentStore
	close io.Closer
}

// OpenWorkflow loads ref. An existing file path wins over a document ID.
// Documents read from files without an id get a fresh one.
func (e *Env) OpenWorkflow(ctx context.Context, ref string) (*Session, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		doc, err := file.ReadFile(ref)
		if err != nil {
			return nil, NewInvalidWorkflowError("", err)
		}
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		return &Session{Ref: ref, Document: doc, path: ref}, nil
	}

	be, err := OpenBackend(e.Config.Backend)
	if err != nil {
		return nil, NewFailure("failed to open backend", err)
	}
	doc, err := be.GetDocument(ctx, ref)
	if err != nil {
		be.Close()
		var nf *pkgerrors.NotFoundError
		if errors.As(err, &nf) {
			return nil, NewFailure(fmt.Sprintf("workflow %q is neither a file nor a stored document", ref), err)
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewFailure("", err)
		}
		return nil, NewInvalidWorkflowError("", err)
	}
	return &Session{Ref: ref, Document: doc, store: be, close: be}, nil
}

// Saver persists the session's document back where it came from.
func (s *Session) Saver() editor.Saver {
	if s.store != nil {
		return backend.Saver(s.store)
	}
	return editor.SaverFunc(func(ctx context.Context, doc *workflow.Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return file.WriteFile(s.path, doc)
	})
}

// Close releases the backend, if any.
func (s *Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close.Close()
}

// NewStore creates an editor store for doc configured from the editor
// section, with dispatches counted in metrics.
func (e *Env) NewStore(doc *workflow.Document) *editor.Store {
	return editor.NewStore(doc, editor.Options{
		HistoryLimit: e.Config.Editor.HistoryLimit,
		PublishedID:  e.Config.Editor.PublishedID,
		DefaultModel: e.Config.Editor.DefaultModel,
		Logger:       internallog.WithDocument(e.Logger, doc.ID, doc.Name),
		OnDispatch:   metrics.RecordDispatch,
	})
}

// NewAutoSaver attaches a debounced saver to store.
func (e *Env) NewAutoSaver(store *editor.Store, saver editor.Saver) *editor.AutoSaver {
	return editor.NewAutoSaver(store, saver, editor.AutoSaverOptions{
		Debounce: e.Config.Editor.SaveDebounce,
		Logger:   e.Logger,
		Tracer:   e.Tracing.Tracer("github.com/rowboatlabs/rowboat/pkg/workflow/editor"),
		OnSave:   metrics.RecordSave,
	})
}
