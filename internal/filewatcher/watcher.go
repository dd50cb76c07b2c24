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

// Package filewatcher watches workflow files and reports settled changes.
package filewatcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rowboatlabs/rowboat/internal/metrics"
)

// Op is the kind of filesystem change.
type Op string

const (
	Created  Op = "created"
	Modified Op = "modified"
	Deleted  Op = "deleted"
	Renamed  Op = "renamed"
)

// opMap maps fsnotify operations to event kinds. Chmod is ignored.
var opMap = map[fsnotify.Op]Op{
	fsnotify.Create: Created,
	fsnotify.Write:  Modified,
	fsnotify.Remove: Deleted,
	fsnotify.Rename: Renamed,
}

// Event is a settled change to one file.
type Event struct {
	// Path is absolute.
	Path string
	Op   Op
	Time time.Time
}

// Options configures a Watcher.
type Options struct {
	// Include defaults to WorkflowPatterns.
	Include []string

	// Exclude defaults to DefaultExcludePatterns.
	Exclude []string

	// Debounce defaults to 200ms.
	Debounce time.Duration

	Logger *slog.Logger
}

// Watcher watches a directory tree, or a single file, for workflow changes.
type Watcher struct {
	root    string
	single  string
	matcher *Matcher
	window  time.Duration
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
}

// New creates a watcher for path. Directories are watched recursively;
// for a file, its parent directory is watched and other files are ignored.
func New(path string, opts Options) (*Watcher, error) {
	if opts.Include == nil {
		opts.Include = WorkflowPatterns()
	}
	if opts.Exclude == nil {
		opts.Exclude = DefaultExcludePatterns()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	matcher, err := NewMatcher(opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	w := &Watcher{
		root:    abs,
		matcher: matcher,
		window:  opts.Debounce,
		logger:  opts.Logger.With(slog.String("component", "filewatcher"), slog.String("path", abs)),
	}
	if !info.IsDir() {
		w.single = abs
		w.root = filepath.Dir(abs)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w.fsw = fsw

	if err := w.addTree(w.root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Files lists the files currently matched, sorted.
func (w *Watcher) Files() ([]string, error) {
	if w.single != "" {
		return []string{w.single}, nil
	}
	var out []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.root && w.matcher.Excluded(w.rel(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.matcher.Match(w.rel(path)) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Run delivers settled events to handle until ctx is done. Calls to handle
// are serialized. Pending events are delivered before Run returns.
func (w *Watcher) Run(ctx context.Context, handle func(Event)) error {
	defer w.fsw.Close()

	var mu sync.Mutex
	debouncer := NewDebouncer(w.window, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		handle(ev)
	})
	defer debouncer.Stop()

	w.logger.Info("file watcher started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("file watcher stopped")
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("file watcher event channel closed")
			}
			if out, ok := w.translate(ev); ok {
				metrics.RecordWatchEvent(string(out.Op))
				debouncer.Add(out)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("file watcher error channel closed")
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

// translate filters a raw event and tracks newly created directories.
func (w *Watcher) translate(ev fsnotify.Event) (Event, bool) {
	var op Op
	for raw, mapped := range opMap {
		if ev.Op.Has(raw) {
			op = mapped
			break
		}
	}
	if op == "" {
		return Event{}, false
	}

	if op == Created && w.single == "" {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", ev.Name, "error", err)
			}
			return Event{}, false
		}
	}

	if w.single != "" && ev.Name != w.single {
		return Event{}, false
	}
	if !w.matcher.Match(w.rel(ev.Name)) {
		w.logger.Debug("ignoring excluded path", "file", ev.Name)
		return Event{}, false
	}
	return Event{Path: ev.Name, Op: op, Time: time.Now()}, true
}

func (w *Watcher) addTree(dir string) error {
	if w.single != "" {
		return w.fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.matcher.Excluded(w.rel(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) rel(path string) string {
	r, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return r
}
