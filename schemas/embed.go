// Package schemas provides access to embedded JSON schemas.
package schemas

import (
	"embed"
	"fmt"
)

// Change schemas describe the partial entity updates accepted from the
// copilot, one file per entity kind.
//
//go:embed *.changes.schema.json
var changeSchemas embed.FS

// GetChangesSchema returns the embedded changes schema for an entity kind
// ("agent", "tool", "prompt" or "pipeline") as raw bytes.
func GetChangesSchema(kind string) ([]byte, error) {
	data, err := changeSchemas.ReadFile(kind + ".changes.schema.json")
	if err != nil {
		return nil, fmt.Errorf("no changes schema for %q: %w", kind, err)
	}
	return data, nil
}

// Kinds lists the entity kinds that have an embedded changes schema.
func Kinds() []string {
	return []string{"agent", "tool", "prompt", "pipeline"}
}
