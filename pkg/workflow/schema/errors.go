package schema

import "fmt"

// ValidationError reports the first config_changes value that does not
// match its kind's schema.
type ValidationError struct {
	// Field locates the value inside the change set, such as "ragK",
	// "parameters.properties.q" or "ragDataSources[1]". It is empty when
	// the change set as a whole is rejected.
	Field string

	// Keyword is the schema keyword that rejected the value.
	Keyword string

	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func reject(field, keyword, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Keyword: keyword, Message: fmt.Sprintf(format, args...)}
}

func childField(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
