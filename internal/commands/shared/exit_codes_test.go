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
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rowboatlabs/rowboat/pkg/copilot"
	pkgerrors "github.com/rowboatlabs/rowboat/pkg/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "plain error", err: errors.New("boom"), want: ExitFailed},
		{name: "failure", err: NewFailure("save", errors.New("disk")), want: ExitFailed},
		{name: "invalid workflow", err: NewInvalidWorkflowError("bad", nil), want: ExitInvalidWorkflow},
		{name: "wrapped", err: fmt.Errorf("outer: %w", NewInvalidWorkflowError("bad", nil)), want: ExitInvalidWorkflow},
		{name: "silent", err: Silent(ExitInvalidWorkflow), want: ExitInvalidWorkflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	cause := errors.New("disk full")
	assert.Equal(t, "save failed: disk full", NewFailure("save failed", cause).Error())
	assert.Equal(t, "disk full", NewFailure("", cause).Error())
	assert.Equal(t, "", Silent(1).Error())
	assert.ErrorIs(t, NewFailure("x", cause), cause)
}

func TestReportError(t *testing.T) {
	t.Run("prints suggestion for user visible errors", func(t *testing.T) {
		var buf bytes.Buffer
		err := NewFailure("", &pkgerrors.PersistenceError{Operation: "save", DocumentID: "wf-1", Cause: errors.New("disk full")})
		reportError(&buf, err)

		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "Error: save failed for document wf-1: disk full"))
		assert.Contains(t, out, "Suggestion: Your edits are kept")
	})

	t.Run("silent errors print nothing", func(t *testing.T) {
		var buf bytes.Buffer
		reportError(&buf, Silent(ExitInvalidWorkflow))
		assert.Empty(t, buf.String())
	})
}

func TestErrorCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "config", err: &pkgerrors.ConfigError{Key: "backend.type", Reason: "bad"}, want: ErrorCodeInvalidConfig},
		{name: "not found", err: fmt.Errorf("x: %w", &pkgerrors.NotFoundError{Resource: "agent", ID: "a"}), want: ErrorCodeNotFound},
		{name: "validation", err: &pkgerrors.ValidationError{Field: "agents", Message: "dup"}, want: ErrorCodeSchemaViolation},
		{name: "persistence", err: &pkgerrors.PersistenceError{Operation: "save"}, want: ErrorCodePersistence},
		{name: "unparseable", err: NewInvalidWorkflowError("", errors.New("yaml")), want: ErrorCodeInvalidYAML},
		{name: "invalid action", err: fmt.Errorf("%w: bad model", copilot.ErrActionInvalid), want: ErrorCodeInvalidAction},
		{name: "stale action", err: copilot.ErrActionStale, want: ErrorCodeStaleAction},
		{name: "incomplete action", err: copilot.ErrActionIncomplete, want: ErrorCodeIncompleteAction},
		{name: "other", err: errors.New("boom"), want: ErrorCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeFor(tt.err))
		})
	}
}
