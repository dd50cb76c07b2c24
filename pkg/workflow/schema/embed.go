package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rowboatlabs/rowboat/schemas"
)

var (
	changesMu    sync.Mutex
	changesCache = map[string]map[string]interface{}{}
)

// ChangesSchema returns the decoded changes schema for an entity kind.
//
// The raw files live in the schemas package at the module root, since
// go:embed directives cannot reference parent directories. Decoded schemas
// are cached; callers must not modify the returned map.
func ChangesSchema(kind string) (map[string]interface{}, error) {
	changesMu.Lock()
	defer changesMu.Unlock()

	if s, ok := changesCache[kind]; ok {
		return s, nil
	}
	raw, err := schemas.GetChangesSchema(kind)
	if err != nil {
		return nil, err
	}
	var s map[string]interface{}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding %s changes schema: %w", kind, err)
	}
	changesCache[kind] = s
	return s, nil
}
