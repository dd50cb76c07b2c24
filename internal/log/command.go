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

package log

import (
	"context"
	"log/slog"
	"time"
)

// Dispatch describes one editor command for logging purposes.
type Dispatch struct {
	// Command is the command type (e.g., "update_agent", "undo").
	Command string

	// DocumentID is the document the command targeted.
	DocumentID string

	// Changed reports whether the store state changed.
	Changed bool
}

// LogDispatch logs an editor dispatch. Rejected mutations are expected
// and logged at debug level like accepted ones.
func LogDispatch(logger *slog.Logger, d Dispatch) {
	logger.Debug("command dispatched",
		slog.String("event", "dispatch"),
		slog.String(CommandKey, d.Command),
		slog.String(DocumentKey, d.DocumentID),
		slog.Bool("changed", d.Changed),
	)
}

// CommandMiddleware logs the start and outcome of CLI commands.
type CommandMiddleware struct {
	logger *slog.Logger
}

// NewCommandMiddleware creates a new command logging middleware.
func NewCommandMiddleware(logger *slog.Logger) *CommandMiddleware {
	return &CommandMiddleware{logger: logger}
}

// Handler runs fn and logs its duration and error.
func (m *CommandMiddleware) Handler(name string, fn func() error) error {
	start := time.Now()
	m.logger.Debug("command started", slog.String("event", "command_start"), slog.String(CommandKey, name))

	err := fn()

	attrs := []slog.Attr{
		slog.String("event", "command_end"),
		slog.String(CommandKey, name),
		slog.Int64(DurationKey, time.Since(start).Milliseconds()),
		slog.Bool("success", err == nil),
	}
	level := slog.LevelDebug
	message := "command completed"
	if err != nil {
		attrs = append(attrs, Error(err))
		level = slog.LevelWarn
		message = "command failed"
	}
	m.logger.LogAttrs(context.Background(), level, message, attrs...)
	return err
}
