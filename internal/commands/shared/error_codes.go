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
	"errors"

	"github.com/rowboatlabs/rowboat/pkg/copilot"
	pkgerrors "github.com/rowboatlabs/rowboat/pkg/errors"
)

// Error codes for structured JSON output
const (
	// Document errors (E001-E099)
	ErrorCodeInvalidYAML      = "E002" // Document does not parse
	ErrorCodeSchemaViolation  = "E003" // Document invariant violated
	ErrorCodeInvalidReference = "E004" // Mention of an unknown entity

	// Copilot errors (E100-E199)
	ErrorCodeInvalidAction    = "E101" // Action failed validation
	ErrorCodeStaleAction      = "E102" // Action superseded by a later message
	ErrorCodeIncompleteAction = "E103" // Directive never finished streaming

	// Configuration errors (E200-E299)
	ErrorCodeInvalidConfig = "E202" // Invalid configuration

	// Input errors (E300-E399)
	ErrorCodeInvalidInput = "E302" // Invalid flag or argument
	ErrorCodeFileNotFound = "E303" // File not found

	// Resource errors (E400-E499)
	ErrorCodeNotFound    = "E401" // Resource not found
	ErrorCodeInternal    = "E402" // Internal error
	ErrorCodePersistence = "E404" // Save failed
)

// ErrorCodeFor picks the JSON error code for err.
func ErrorCodeFor(err error) string {
	var (
		validation  *pkgerrors.ValidationError
		notFound    *pkgerrors.NotFoundError
		config      *pkgerrors.ConfigError
		persistence *pkgerrors.PersistenceError
		exitErr     *ExitError
	)
	switch {
	case errors.Is(err, copilot.ErrActionInvalid):
		return ErrorCodeInvalidAction
	case errors.Is(err, copilot.ErrActionStale):
		return ErrorCodeStaleAction
	case errors.Is(err, copilot.ErrActionIncomplete):
		return ErrorCodeIncompleteAction
	case errors.As(err, &config):
		return ErrorCodeInvalidConfig
	case errors.As(err, &persistence):
		return ErrorCodePersistence
	case errors.As(err, &notFound):
		return ErrorCodeNotFound
	case errors.As(err, &validation):
		return ErrorCodeSchemaViolation
	case errors.As(err, &exitErr) && exitErr.Code == ExitInvalidWorkflow:
		return ErrorCodeInvalidYAML
	}
	return ErrorCodeInternal
}
