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

package errors_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rowboaterrors "github.com/rowboatlabs/rowboat/pkg/errors"
)

func TestWrap(t *testing.T) {
	err := rowboaterrors.Wrap(fs.ErrNotExist, "reading workflow")
	require.Error(t, err)
	assert.Equal(t, "reading workflow: file does not exist", err.Error())
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.NoError(t, rowboaterrors.Wrap(nil, "context"))
}

func TestPersist(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		wantOp string
		wantID string
	}{
		{name: "plain cause", err: context.DeadlineExceeded, wantOp: "save", wantID: "wf-1"},
		{
			name:   "already classified",
			err:    &rowboaterrors.PersistenceError{Operation: "load", DocumentID: "wf-2", Cause: fs.ErrPermission},
			wantOp: "load",
			wantID: "wf-2",
		},
		{
			name:   "classified below a wrap",
			err:    rowboaterrors.Wrap(&rowboaterrors.PersistenceError{Operation: "revision", DocumentID: "wf-3"}, "sqlite"),
			wantOp: "revision",
			wantID: "wf-3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rowboaterrors.Persist("save", "wf-1", tt.err)
			var perr *rowboaterrors.PersistenceError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantOp, perr.Operation)
			assert.Equal(t, tt.wantID, perr.DocumentID)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, rowboaterrors.Persist("save", "wf-1", nil))
}

func TestIsThroughLayers(t *testing.T) {
	cause := context.DeadlineExceeded
	persist := rowboaterrors.Persist("save", "wf-1", cause)
	err := rowboaterrors.Wrap(rowboaterrors.Wrap(persist, "autosave"), "flush")

	assert.True(t, rowboaterrors.Is(err, cause))
	assert.True(t, rowboaterrors.Is(err, persist))
	assert.False(t, rowboaterrors.Is(err, context.Canceled))
}

func TestAsFindsTypedErrors(t *testing.T) {
	transport := &rowboaterrors.TransportError{Received: 512, Cause: errors.New("connection reset")}
	err := rowboaterrors.Wrap(transport, "following response 3")

	var te *rowboaterrors.TransportError
	require.True(t, rowboaterrors.As(err, &te))
	assert.Equal(t, 512, te.Received)

	var pe *rowboaterrors.PersistenceError
	assert.False(t, rowboaterrors.As(err, &pe))

	verr := rowboaterrors.Wrap(&rowboaterrors.ValidationError{Field: "startAgent", Message: "unknown agent"}, "validating")
	var ve *rowboaterrors.ValidationError
	require.True(t, rowboaterrors.As(verr, &ve))
	assert.Equal(t, "startAgent", ve.Field)
}

func TestClassifierInterfaces(t *testing.T) {
	errs := []error{
		&rowboaterrors.PersistenceError{Operation: "save"},
		&rowboaterrors.TransportError{},
	}
	for _, err := range errs {
		wrapped := rowboaterrors.Wrap(err, "context")

		var uv rowboaterrors.UserVisibleError
		require.True(t, rowboaterrors.As(wrapped, &uv), "%T", err)
		assert.True(t, uv.IsUserVisible())
		assert.NotEmpty(t, uv.UserMessage())
		assert.NotEmpty(t, uv.Suggestion())

		var c rowboaterrors.ErrorClassifier
		require.True(t, rowboaterrors.As(wrapped, &c), "%T", err)
		assert.True(t, c.IsRetryable())
	}

	var c rowboaterrors.ErrorClassifier
	assert.False(t, rowboaterrors.As(&rowboaterrors.NotFoundError{Resource: "document", ID: "x"}, &c))
}

func TestNew(t *testing.T) {
	assert.EqualError(t, rowboaterrors.New("history is empty"), "history is empty")
}
