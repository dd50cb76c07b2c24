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

package errors

import (
	"fmt"
)

// ValidationError represents user input validation failures.
// Use this for invalid user input, malformed documents, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested document or entity does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "document", "agent", "tool")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "backend.type")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// PersistenceError represents a failed document save or load.
// The in-memory document stays authoritative; the save can be retried.
type PersistenceError struct {
	// Operation is the storage operation that failed (e.g., "save", "load")
	Operation string

	// DocumentID identifies the document involved
	DocumentID string

	// Cause is the underlying storage error
	Cause error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Operation)
	if e.DocumentID != "" {
		msg = fmt.Sprintf("%s for document %s", msg, e.DocumentID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements UserVisibleError.
func (e *PersistenceError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *PersistenceError) UserMessage() string {
	return "Changes could not be saved"
}

// Suggestion implements UserVisibleError.
func (e *PersistenceError) Suggestion() string {
	return "Your edits are kept in the editor; they will be saved again on the next change"
}

// ErrorType implements ErrorClassifier.
func (e *PersistenceError) ErrorType() string { return "persistence" }

// IsRetryable implements ErrorClassifier.
func (e *PersistenceError) IsRetryable() bool { return true }

// TransportError represents an aborted copilot response stream.
// Blocks parsed before the abort remain valid.
type TransportError struct {
	// Received is the number of bytes received before the failure
	Received int

	// Cause is the underlying transport error
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("response stream aborted after %d bytes: %v", e.Received, e.Cause)
	}
	return fmt.Sprintf("response stream aborted after %d bytes", e.Received)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements UserVisibleError.
func (e *TransportError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *TransportError) UserMessage() string {
	return "The copilot response was interrupted"
}

// Suggestion implements UserVisibleError.
func (e *TransportError) Suggestion() string {
	return "Changes already applied are kept; ask the copilot again to continue"
}

// ErrorType implements ErrorClassifier.
func (e *TransportError) ErrorType() string { return "transport" }

// IsRetryable implements ErrorClassifier.
func (e *TransportError) IsRetryable() bool { return true }
