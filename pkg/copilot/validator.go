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

package copilot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rowboatlabs/rowboat/pkg/errors"
	"github.com/rowboatlabs/rowboat/pkg/workflow"
	"github.com/rowboatlabs/rowboat/pkg/workflow/schema"
)

// Validator checks the raw config_changes of a finished directive and
// returns typed changes or an error whose message is shown to the user.
type Validator interface {
	Validate(action ActionType, configType workflow.Kind, name string, raw map[string]any) (workflow.Changes, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(action ActionType, configType workflow.Kind, name string, raw map[string]any) (workflow.Changes, error)

// Validate implements Validator.
func (f ValidatorFunc) Validate(action ActionType, configType workflow.Kind, name string, raw map[string]any) (workflow.Changes, error) {
	return f(action, configType, name, raw)
}

// DocumentValidator validates changes against the embedded per-kind
// schemas and against a document snapshot.
type DocumentValidator struct {
	doc    *workflow.Document
	schema schema.Validator
}

// NewDocumentValidator binds a validator to doc. With a nil doc only the
// schema is checked.
func NewDocumentValidator(doc *workflow.Document) *DocumentValidator {
	return &DocumentValidator{doc: doc, schema: schema.NewValidator()}
}

// Validate implements Validator.
func (v *DocumentValidator) Validate(action ActionType, configType workflow.Kind, name string, raw map[string]any) (workflow.Changes, error) {
	if !action.Valid() {
		return nil, &errors.ValidationError{Field: MetaAction, Message: fmt.Sprintf("unknown action %q", action)}
	}
	if configType != workflow.KindAgent && configType != workflow.KindTool && configType != workflow.KindPrompt {
		return nil, &errors.ValidationError{Field: MetaConfigType, Message: fmt.Sprintf("unsupported config type %q", configType)}
	}

	s, err := schema.ChangesSchema(string(configType))
	if err != nil {
		return nil, err
	}
	if err := v.schema.Validate(s, raw); err != nil {
		return nil, schemaError(err)
	}

	changes, err := decodeChanges(configType, raw)
	if err != nil {
		return nil, err
	}
	if v.doc == nil {
		return changes, nil
	}

	switch action {
	case ActionCreate:
		if v.doc.NameTaken(configType, name) {
			return nil, &errors.ValidationError{Field: MetaName, Message: fmt.Sprintf("%s %s already exists", configType, name)}
		}
	case ActionEdit:
		if err := v.checkEdit(configType, name, changes); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

func (v *DocumentValidator) checkEdit(kind workflow.Kind, name string, changes workflow.Changes) error {
	if !v.doc.Has(kind, name) {
		return &errors.ValidationError{Field: MetaName, Message: fmt.Sprintf("%s %s not found", kind, name)}
	}

	newName, renamed := workflow.NewName(changes)
	renamed = renamed && newName != name

	switch kind {
	case workflow.KindAgent:
		agent, _ := v.doc.Agent(name)
		if renamed && agent.Locked {
			return &errors.ValidationError{Field: "name", Message: "cannot rename locked agent"}
		}
		if d, ok := changes.Value("disabled"); ok && d.(bool) && name == v.doc.StartAgent {
			return &errors.ValidationError{Field: "disabled", Message: "cannot disable the start agent"}
		}
	case workflow.KindTool:
		tool, _ := v.doc.Tool(name)
		if tool.External() {
			for _, f := range changes.Fields() {
				if f == "name" || f == "parameters" {
					return &errors.ValidationError{
						Field:   f,
						Message: fmt.Sprintf("cannot change %s of external tool %s", f, name),
					}
				}
			}
		}
	}

	if renamed && v.doc.NameTaken(kind, newName) {
		return &errors.ValidationError{Field: "name", Message: fmt.Sprintf("%s %s already exists", kind, newName)}
	}
	return nil
}

// decodeChanges converts a schema-checked map into the typed changes for
// kind. Numbers that do not fit the field type are rejected here.
func decodeChanges(kind workflow.Kind, raw map[string]any) (workflow.Changes, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "encoding config_changes")
	}
	changes := workflow.NewChanges(kind)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(changes); err != nil {
		return nil, &errors.ValidationError{Field: "config_changes", Message: "invalid config_changes: " + err.Error()}
	}
	return changes, nil
}

func schemaError(err error) error {
	var serr *schema.ValidationError
	if errors.As(err, &serr) {
		return &errors.ValidationError{Field: serr.Field, Message: serr.Error()}
	}
	return err
}

// validationMessage renders err for display on an action.
func validationMessage(err error) string {
	var verr *errors.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}
