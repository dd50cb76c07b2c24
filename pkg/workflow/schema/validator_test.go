package schema

import (
	"encoding/json"
	"errors"
	"testing"
)

func decode(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("bad test JSON: %v", err)
	}
	return m
}

func TestValidateType(t *testing.T) {
	validator := NewValidator()

	tests := []struct {
		name    string
		schema  map[string]interface{}
		data    interface{}
		wantErr bool
	}{
		{name: "valid string", schema: map[string]interface{}{"type": "string"}, data: "hello"},
		{name: "invalid string", schema: map[string]interface{}{"type": "string"}, data: 42.0, wantErr: true},
		{name: "valid number", schema: map[string]interface{}{"type": "number"}, data: 42.5},
		{name: "valid integer", schema: map[string]interface{}{"type": "integer"}, data: float64(42)},
		{name: "fractional integer", schema: map[string]interface{}{"type": "integer"}, data: 42.5, wantErr: true},
		{name: "valid boolean", schema: map[string]interface{}{"type": "boolean"}, data: true},
		{name: "null is not a string", schema: map[string]interface{}{"type": "string"}, data: nil, wantErr: true},
		{name: "no type accepts anything", schema: map[string]interface{}{}, data: []interface{}{1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.schema, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateKeywords(t *testing.T) {
	validator := NewValidator()
	schema := decode(t, `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"mode": {"type": "string", "enum": ["a", "b"]},
			"k": {"type": "integer", "minimum": 1},
			"tags": {"type": "array", "items": {"type": "string"}},
			"props": {"type": "object", "additionalProperties": {"type": "object", "required": ["type"]}}
		}
	}`)

	tests := []struct {
		name    string
		data    string
		path    string
		keyword string
	}{
		{name: "valid", data: `{"name":"x","mode":"a","k":2,"tags":["t"],"props":{"q":{"type":"string"}}}`},
		{name: "empty object", data: `{}`},
		{name: "unknown field", data: `{"color":"red"}`, path: "color", keyword: "additionalProperties"},
		{name: "empty name", data: `{"name":""}`, path: "name", keyword: "minLength"},
		{name: "bad enum", data: `{"mode":"c"}`, path: "mode", keyword: "enum"},
		{name: "below minimum", data: `{"k":0}`, path: "k", keyword: "minimum"},
		{name: "bad item", data: `{"tags":["ok", 3]}`, path: "tags[1]", keyword: "type"},
		{name: "additional schema", data: `{"props":{"q":{}}}`, path: "props.q", keyword: "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(schema, decode(t, tt.data))
			if tt.keyword == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.path || verr.Keyword != tt.keyword {
				t.Errorf("got %s (%s), want %s (%s)", verr.Field, verr.Keyword, tt.path, tt.keyword)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	validator := NewValidator()
	schema := decode(t, `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)

	err := validator.Validate(schema, map[string]interface{}{})
	if got, want := err.Error(), "missing required field: name"; got != want {
		t.Errorf("root error = %q, want %q", got, want)
	}

	err = validator.Validate(schema, map[string]interface{}{"name": 3.0})
	if got, want := err.Error(), "name: expected string, got number"; got != want {
		t.Errorf("field error = %q, want %q", got, want)
	}
}
