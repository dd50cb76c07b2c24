// Package schema validates copilot change sets against the embedded
// per-kind JSON schemas.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Validator validates data against a JSON Schema.
type Validator interface {
	// Validate checks if data conforms to the schema
	Validate(schema map[string]interface{}, data interface{}) error
}

// DefaultValidator implements the Validator interface with support for
// a subset of JSON Schema Draft 7 keywords.
type DefaultValidator struct{}

// NewValidator creates a new schema validator.
func NewValidator() Validator {
	return &DefaultValidator{}
}

// Validate validates data against a JSON Schema.
// Supports: type, properties, additionalProperties, required, enum, items,
// minimum, minLength.
func (v *DefaultValidator) Validate(schema map[string]interface{}, data interface{}) error {
	return v.validate(schema, data, "")
}

// validate is the recursive validation function with path tracking.
func (v *DefaultValidator) validate(schema map[string]interface{}, data interface{}, path string) error {
	schemaType, ok := schema["type"].(string)
	if !ok {
		return nil
	}
	if err := v.validateType(schemaType, data, path); err != nil {
		return err
	}

	switch schemaType {
	case "object":
		return v.validateObject(schema, data.(map[string]interface{}), path)
	case "array":
		return v.validateArray(schema, data.([]interface{}), path)
	case "string":
		return v.validateString(schema, data.(string), path)
	case "number", "integer":
		return v.validateNumber(schema, toFloat(data), path)
	}
	return nil
}

// validateType checks if data matches the expected type.
func (v *DefaultValidator) validateType(schemaType string, data interface{}, path string) error {
	switch schemaType {
	case "object":
		if _, ok := data.(map[string]interface{}); !ok {
			return reject(path, "type", "expected object, got %s", jsonType(data))
		}
	case "array":
		if _, ok := data.([]interface{}); !ok {
			return reject(path, "type", "expected array, got %s", jsonType(data))
		}
	case "string":
		if _, ok := data.(string); !ok {
			return reject(path, "type", "expected string, got %s", jsonType(data))
		}
	case "number":
		switch data.(type) {
		case float64, int, int64, float32:
		default:
			return reject(path, "type", "expected number, got %s", jsonType(data))
		}
	case "integer":
		switch n := data.(type) {
		case float64:
			// JSON numbers decode as float64
			if n != float64(int64(n)) {
				return reject(path, "type", "expected integer, got %v", n)
			}
		case int, int64:
		default:
			return reject(path, "type", "expected integer, got %s", jsonType(data))
		}
	case "boolean":
		if _, ok := data.(bool); !ok {
			return reject(path, "type", "expected boolean, got %s", jsonType(data))
		}
	default:
		return fmt.Errorf("unsupported schema type: %s", schemaType)
	}
	return nil
}

// validateObject validates required fields, declared properties and
// additionalProperties.
func (v *DefaultValidator) validateObject(schema map[string]interface{}, obj map[string]interface{}, path string) error {
	if required, ok := schema["required"].([]interface{}); ok {
		for _, reqField := range required {
			fieldName, ok := reqField.(string)
			if !ok {
				continue
			}
			if _, exists := obj[fieldName]; !exists {
				return reject(path, "required", "missing required field: %s", fieldName)
			}
		}
	}

	properties, _ := schema["properties"].(map[string]interface{})

	// Sorted for deterministic error reporting.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, fieldName := range keys {
		fieldPath := childField(path, fieldName)
		if propSchema, ok := properties[fieldName].(map[string]interface{}); ok {
			if err := v.validate(propSchema, obj[fieldName], fieldPath); err != nil {
				return err
			}
			continue
		}
		if _, declared := properties[fieldName]; declared {
			continue
		}
		switch extra := schema["additionalProperties"].(type) {
		case bool:
			if !extra {
				return reject(fieldPath, "additionalProperties", "unknown field: %s", fieldName)
			}
		case map[string]interface{}:
			if err := v.validate(extra, obj[fieldName], fieldPath); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateArray validates array items.
func (v *DefaultValidator) validateArray(schema map[string]interface{}, arr []interface{}, path string) error {
	items, ok := schema["items"].(map[string]interface{})
	if !ok {
		return nil
	}
	for i, item := range arr {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if err := v.validate(items, item, itemPath); err != nil {
			return err
		}
	}
	return nil
}

// validateString validates string constraints (enum, minLength).
func (v *DefaultValidator) validateString(schema map[string]interface{}, str string, path string) error {
	if minLen, ok := schema["minLength"].(float64); ok && float64(len(str)) < minLen {
		return reject(path, "minLength", "must be at least %d characters", int(minLen))
	}

	if enum, ok := schema["enum"].([]interface{}); ok {
		for _, allowedValue := range enum {
			if allowedStr, ok := allowedValue.(string); ok && allowedStr == str {
				return nil
			}
		}
		enumJSON, _ := json.Marshal(enum)
		return reject(path, "enum", "value %q not in allowed values: %s", str, enumJSON)
	}

	return nil
}

// validateNumber validates numeric constraints (minimum).
func (v *DefaultValidator) validateNumber(schema map[string]interface{}, n float64, path string) error {
	if minimum, ok := schema["minimum"].(float64); ok && n < minimum {
		return reject(path, "minimum", "must be >= %v, got %v", minimum, n)
	}
	return nil
}

func toFloat(data interface{}) float64 {
	switch n := data.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// jsonType names the JSON type of a decoded value.
func jsonType(data interface{}) string {
	switch data.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64:
		return "number"
	}
	return fmt.Sprintf("%T", data)
}
