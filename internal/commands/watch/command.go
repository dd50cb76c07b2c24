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

package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowboatlabs/rowboat/internal/backend/file"
	"github.com/rowboatlabs/rowboat/internal/commands/shared"
	"github.com/rowboatlabs/rowboat/internal/commands/validate"
	"github.com/rowboatlabs/rowboat/internal/filewatcher"
	"github.com/rowboatlabs/rowboat/internal/metrics"
)

// Status is the validation outcome of one file.
type Status struct {
	Path     string   `json:"path"`
	Result   string   `json:"result"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validation results.
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
	ResultError   = "error"
	ResultRemoved = "removed"
)

// NewCommand creates the watch command
func NewCommand() *cobra.Command {
	var (
		metricsAddr string
		debounce    time.Duration
		once        bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir|file>",
		Short: "Validate workflow files as they change",
		Annotations: map[string]string{
			"group": "workflows",
		},
		Long: `Watch validates every workflow file (*.yaml, *.yml, *.json) under a
directory, then validates each file again whenever it changes.

With --metrics-addr, Prometheus metrics are served at /metrics.`,
		Example: `  # Watch a directory
  rowboat watch ./workflows

  # Validate once and exit
  rowboat watch ./workflows --once

  # Serve metrics while watching
  rowboat watch ./workflows --metrics-addr :9464`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := shared.Setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close(context.WithoutCancel(ctx))

			if metricsAddr == "" {
				metricsAddr = env.Config.Observability.MetricsAddr
			}

			w, err := filewatcher.New(args[0], filewatcher.Options{
				Debounce: debounce,
				Logger:   env.Logger,
			})
			if err != nil {
				return shared.NewFailure("", err)
			}

			r := NewReporter(cmd.OutOrStdout(), shared.GetJSON())
			files, err := w.Files()
			if err != nil {
				return shared.NewFailure("", err)
			}
			for _, f := range files {
				r.Report(Check(f))
			}

			if once {
				if r.Failures() > 0 {
					return shared.Silent(shared.ExitInvalidWorkflow)
				}
				return nil
			}

			if metricsAddr != "" {
				srv, err := serveMetrics(metricsAddr, env.Logger)
				if err != nil {
					return shared.NewFailure("failed to serve metrics", err)
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
			}

			return w.Run(ctx, func(ev filewatcher.Event) {
				if _, err := os.Stat(ev.Path); ev.Op == filewatcher.Deleted || (ev.Op == filewatcher.Renamed && err != nil) {
					r.Report(Status{Path: ev.Path, Result: ResultRemoved})
					return
				}
				r.Report(Check(ev.Path))
			})
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "Quiet period before a changed file is validated")
	cmd.Flags().BoolVar(&once, "once", false, "Validate the current files and exit")
	return cmd
}

// Check reads and validates one workflow file.
func Check(path string) Status {
	st := Status{Path: path}
	doc, err := file.ReadFile(path)
	if err != nil {
		st.Result = ResultError
		st.Error = err.Error()
		metrics.RecordValidation(ResultError)
		return st
	}
	warnings, err := validate.Check(doc)
	if err != nil {
		st.Result = ResultInvalid
		st.Error = err.Error()
		metrics.RecordValidation(ResultInvalid)
		return st
	}
	st.Result = ResultValid
	st.Warnings = warnings
	metrics.RecordValidation(ResultValid)
	return st
}

// Reporter prints statuses as lines, or as one JSON object per line.
type Reporter struct {
	mu       sync.Mutex
	out      io.Writer
	json     bool
	printer  shared.Printer
	failures int
}

// NewReporter creates a Reporter writing to out.
func NewReporter(out io.Writer, asJSON bool) *Reporter {
	return &Reporter{out: out, json: asJSON, printer: shared.Printer{Styled: shared.IsStyled(out)}}
}

// Report prints st.
func (r *Reporter) Report(st Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st.Result == ResultInvalid || st.Result == ResultError {
		r.failures++
	}
	if r.json {
		data, err := json.Marshal(st)
		if err == nil {
			fmt.Fprintln(r.out, string(data))
		}
		return
	}

	name := filepath.Base(st.Path)
	p := r.printer
	switch st.Result {
	case ResultValid:
		fmt.Fprintln(r.out, p.OK(name))
		for _, w := range st.Warnings {
			fmt.Fprintln(r.out, "  "+p.Warn(w))
		}
	case ResultRemoved:
		fmt.Fprintln(r.out, p.Info(name+" removed"))
	default:
		fmt.Fprintln(r.out, p.Error(name+": "+st.Error))
	}
}

// Failures counts invalid and unreadable files reported so far.
func (r *Reporter) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}

func serveMetrics(addr string, logger *slog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	return srv, nil
}
