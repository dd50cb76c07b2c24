package workflow

import (
	"reflect"
	"slices"
	"strings"
)

// Changes is a partial update of one entity. Implementations are
// *AgentChanges, *ToolChanges, *PromptChanges and *PipelineChanges; a nil
// pointer field means "leave unchanged".
type Changes interface {
	// Kind returns the entity kind the changes apply to.
	Kind() Kind

	// Fields lists the set fields by wire name in declaration order.
	Fields() []string

	// Value returns the new value of a set field.
	Value(field string) (any, bool)

	// Select returns a copy holding only the named fields.
	Select(fields ...string) Changes
}

// AgentChanges is a partial Agent.
type AgentChanges struct {
	Name                   *string           `json:"name,omitempty"`
	Type                   *AgentType        `json:"type,omitempty"`
	Description            *string           `json:"description,omitempty"`
	Instructions           *string           `json:"instructions,omitempty"`
	Examples               *string           `json:"examples,omitempty"`
	Model                  *string           `json:"model,omitempty"`
	Disabled               *bool             `json:"disabled,omitempty"`
	Locked                 *bool             `json:"locked,omitempty"`
	ToggleAble             *bool             `json:"toggleAble,omitempty"`
	OutputVisibility       *OutputVisibility `json:"outputVisibility,omitempty"`
	ControlType            *ControlType      `json:"controlType,omitempty"`
	RagDataSources         *[]string         `json:"ragDataSources,omitempty"`
	RagReturnType          *RagReturnType    `json:"ragReturnType,omitempty"`
	RagK                   *int              `json:"ragK,omitempty"`
	ConnectedAgents        *[]string         `json:"connectedAgents,omitempty"`
	MaxCallsPerParentAgent *int              `json:"maxCallsPerParentAgent,omitempty"`
}

// ToolChanges is a partial Tool. Provenance flags are not editable.
type ToolChanges struct {
	Name             *string         `json:"name,omitempty"`
	Description      *string         `json:"description,omitempty"`
	Parameters       *ToolParameters `json:"parameters,omitempty"`
	MockTool         *bool           `json:"mockTool,omitempty"`
	MockInstructions *string         `json:"mockInstructions,omitempty"`
}

// PromptChanges is a partial Prompt.
type PromptChanges struct {
	Name   *string     `json:"name,omitempty"`
	Type   *PromptType `json:"type,omitempty"`
	Prompt *string     `json:"prompt,omitempty"`
}

// PipelineChanges is a partial Pipeline.
type PipelineChanges struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Agents      *[]string `json:"agents,omitempty"`
}

func (c *AgentChanges) Kind() Kind    { return KindAgent }
func (c *ToolChanges) Kind() Kind     { return KindTool }
func (c *PromptChanges) Kind() Kind   { return KindPrompt }
func (c *PipelineChanges) Kind() Kind { return KindPipeline }

func (c *AgentChanges) Fields() []string    { return setFields(c) }
func (c *ToolChanges) Fields() []string     { return setFields(c) }
func (c *PromptChanges) Fields() []string   { return setFields(c) }
func (c *PipelineChanges) Fields() []string { return setFields(c) }

func (c *AgentChanges) Value(field string) (any, bool)    { return fieldValue(c, field) }
func (c *ToolChanges) Value(field string) (any, bool)     { return fieldValue(c, field) }
func (c *PromptChanges) Value(field string) (any, bool)   { return fieldValue(c, field) }
func (c *PipelineChanges) Value(field string) (any, bool) { return fieldValue(c, field) }

func (c *AgentChanges) Select(fields ...string) Changes {
	out := &AgentChanges{}
	selectFields(out, c, fields)
	return out
}

func (c *ToolChanges) Select(fields ...string) Changes {
	out := &ToolChanges{}
	selectFields(out, c, fields)
	return out
}

func (c *PromptChanges) Select(fields ...string) Changes {
	out := &PromptChanges{}
	selectFields(out, c, fields)
	return out
}

func (c *PipelineChanges) Select(fields ...string) Changes {
	out := &PipelineChanges{}
	selectFields(out, c, fields)
	return out
}

// NewName returns the rename target carried by c, if any.
func NewName(c Changes) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.Value("name")
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, true
}

// NewChanges returns an empty Changes value for kind, or nil.
func NewChanges(kind Kind) Changes {
	switch kind {
	case KindAgent:
		return &AgentChanges{}
	case KindTool:
		return &ToolChanges{}
	case KindPrompt:
		return &PromptChanges{}
	case KindPipeline:
		return &PipelineChanges{}
	}
	return nil
}

// FieldNames lists every editable field of kind in declaration order.
func FieldNames(kind Kind) []string {
	c := NewChanges(kind)
	if c == nil {
		return nil
	}
	v := reflect.ValueOf(c).Elem()
	out := make([]string, 0, v.NumField())
	for i := range v.NumField() {
		out = append(out, wireName(v.Type().Field(i)))
	}
	return out
}

// With returns a copy of a with c applied.
func (a Agent) With(c *AgentChanges) Agent {
	a = a.Clone()
	applyTo(&a, c)
	return a
}

// With returns a copy of t with c applied.
func (t Tool) With(c *ToolChanges) Tool {
	t = t.Clone()
	applyTo(&t, c)
	return t
}

// With returns a copy of p with c applied.
func (p Prompt) With(c *PromptChanges) Prompt {
	applyTo(&p, c)
	return p
}

// With returns a copy of p with c applied.
func (p Pipeline) With(c *PipelineChanges) Pipeline {
	p = p.Clone()
	applyTo(&p, c)
	return p
}

// EntityValue returns the current value of field on the named entity,
// or false when the entity or field does not exist.
func (d *Document) EntityValue(kind Kind, name, field string) (any, bool) {
	var entity any
	switch kind {
	case KindAgent:
		a, ok := d.Agent(name)
		if !ok {
			return nil, false
		}
		entity = &a
	case KindTool:
		t, ok := d.Tool(name)
		if !ok {
			return nil, false
		}
		entity = &t
	case KindPrompt:
		p, ok := d.Prompt(name)
		if !ok {
			return nil, false
		}
		entity = &p
	case KindPipeline:
		p, ok := d.Pipeline(name)
		if !ok {
			return nil, false
		}
		entity = &p
	default:
		return nil, false
	}

	changes := NewChanges(kind)
	ct := reflect.TypeOf(changes).Elem()
	for i := range ct.NumField() {
		if wireName(ct.Field(i)) == field {
			ev := reflect.ValueOf(entity).Elem().FieldByName(ct.Field(i).Name)
			return ev.Interface(), true
		}
	}
	return nil, false
}

func wireName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

func setFields(c any) []string {
	v := reflect.ValueOf(c).Elem()
	var out []string
	for i := range v.NumField() {
		if !v.Field(i).IsNil() {
			out = append(out, wireName(v.Type().Field(i)))
		}
	}
	return out
}

func fieldValue(c any, field string) (any, bool) {
	v := reflect.ValueOf(c).Elem()
	for i := range v.NumField() {
		if wireName(v.Type().Field(i)) != field {
			continue
		}
		if v.Field(i).IsNil() {
			return nil, false
		}
		return v.Field(i).Elem().Interface(), true
	}
	return nil, false
}

func selectFields(dst, src any, fields []string) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	for i := range sv.NumField() {
		if slices.Contains(fields, wireName(sv.Type().Field(i))) {
			dv.Field(i).Set(sv.Field(i))
		}
	}
}

// applyTo copies every set field of changes onto the same-named field of
// entity. Slice and map values are copied so the entity never aliases the
// changes value.
func applyTo(entity, changes any) {
	ev := reflect.ValueOf(entity).Elem()
	cv := reflect.ValueOf(changes).Elem()
	for i := range cv.NumField() {
		f := cv.Field(i)
		if f.IsNil() {
			continue
		}
		target := ev.FieldByName(cv.Type().Field(i).Name)
		val := f.Elem()
		switch x := val.Interface().(type) {
		case []string:
			target.Set(reflect.ValueOf(slices.Clone(x)))
		case ToolParameters:
			target.Set(reflect.ValueOf(x.Clone()))
		default:
			target.Set(val)
		}
	}
}
