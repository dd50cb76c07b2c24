// Package workflow defines the editable workflow document: agents, tools,
// prompts and pipelines, plus the mention syntax that cross-references them.
//
// A Document is a plain value. It is never mutated in place by the editor;
// the editor store clones it, applies a command, and records field-level
// patches (see package editor).
package workflow

import (
	"fmt"
	"slices"
	"time"

	"github.com/rowboatlabs/rowboat/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Kind identifies an entity namespace within a document.
type Kind string

const (
	KindAgent    Kind = "agent"
	KindTool     Kind = "tool"
	KindPrompt   Kind = "prompt"
	KindPipeline Kind = "pipeline"
)

// Valid reports whether k is a known entity kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAgent, KindTool, KindPrompt, KindPipeline:
		return true
	}
	return false
}

// AgentType classifies how an agent participates in a conversation.
type AgentType string

const (
	AgentTypeConversation AgentType = "conversation"
	AgentTypePostProcess  AgentType = "post_process"
	AgentTypeEscalation   AgentType = "escalation"
)

// OutputVisibility controls whether an agent's output reaches the user.
type OutputVisibility string

const (
	VisibilityUserFacing OutputVisibility = "user_facing"
	VisibilityInternal   OutputVisibility = "internal"
)

// ControlType decides where control goes after an agent replies.
type ControlType string

const (
	ControlRetain             ControlType = "retain"
	ControlRelinquishToParent ControlType = "relinquish_to_parent"
	ControlRelinquishToStart  ControlType = "relinquish_to_start"
)

// RagReturnType selects what retrieval hands back to the agent.
type RagReturnType string

const (
	RagReturnChunks  RagReturnType = "chunks"
	RagReturnContent RagReturnType = "content"
)

// PromptType classifies a reusable prompt.
type PromptType string

const (
	PromptTypeBase  PromptType = "base_prompt"
	PromptTypeStyle PromptType = "style_prompt"
)

// Document is the canonical editable workflow.
type Document struct {
	// ID identifies the document; it is compared against the published ID
	// to decide whether the document is read-only.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`

	// ProjectID is the owning project, opaque to the editor.
	ProjectID string `yaml:"projectId,omitempty" json:"projectId,omitempty"`

	// Name is an optional display name.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	Agents    []Agent    `yaml:"agents" json:"agents"`
	Tools     []Tool     `yaml:"tools" json:"tools"`
	Prompts   []Prompt   `yaml:"prompts" json:"prompts"`
	Pipelines []Pipeline `yaml:"pipelines,omitempty" json:"pipelines,omitempty"`

	// StartAgent names the agent that receives the first user turn.
	StartAgent string `yaml:"startAgent" json:"startAgent"`

	CreatedAt     time.Time `yaml:"createdAt,omitempty" json:"createdAt,omitzero"`
	LastUpdatedAt time.Time `yaml:"lastUpdatedAt,omitempty" json:"lastUpdatedAt,omitzero"`
}

// Agent is a single conversational agent.
type Agent struct {
	Name                   string           `yaml:"name" json:"name"`
	Type                   AgentType        `yaml:"type" json:"type"`
	Description            string           `yaml:"description" json:"description"`
	Instructions           string           `yaml:"instructions" json:"instructions"`
	Examples               string           `yaml:"examples,omitempty" json:"examples,omitempty"`
	Model                  string           `yaml:"model" json:"model"`
	Disabled               bool             `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	Locked                 bool             `yaml:"locked,omitempty" json:"locked,omitempty"`
	ToggleAble             bool             `yaml:"toggleAble,omitempty" json:"toggleAble,omitempty"`
	OutputVisibility       OutputVisibility `yaml:"outputVisibility" json:"outputVisibility"`
	ControlType            ControlType      `yaml:"controlType" json:"controlType"`
	RagDataSources         []string         `yaml:"ragDataSources,omitempty" json:"ragDataSources,omitempty"`
	RagReturnType          RagReturnType    `yaml:"ragReturnType,omitempty" json:"ragReturnType,omitempty"`
	RagK                   int              `yaml:"ragK,omitempty" json:"ragK,omitempty"`
	ConnectedAgents        []string         `yaml:"connectedAgents,omitempty" json:"connectedAgents,omitempty"`
	MaxCallsPerParentAgent int              `yaml:"maxCallsPerParentAgent,omitempty" json:"maxCallsPerParentAgent,omitempty"`
}

// Tool is a callable tool definition.
type Tool struct {
	Name             string         `yaml:"name" json:"name"`
	Description      string         `yaml:"description" json:"description"`
	Parameters       ToolParameters `yaml:"parameters" json:"parameters"`
	MockTool         bool           `yaml:"mockTool,omitempty" json:"mockTool,omitempty"`
	MockInstructions string         `yaml:"mockInstructions,omitempty" json:"mockInstructions,omitempty"`
	IsMCP            bool           `yaml:"isMcp,omitempty" json:"isMcp,omitempty"`
	IsComposio       bool           `yaml:"isComposio,omitempty" json:"isComposio,omitempty"`
	IsLibrary        bool           `yaml:"isLibrary,omitempty" json:"isLibrary,omitempty"`
	MCPServerName    string         `yaml:"mcpServerName,omitempty" json:"mcpServerName,omitempty"`
}

// External reports whether the tool was imported from an MCP server,
// Composio or the tool library. External tools are structurally read-only.
func (t Tool) External() bool {
	return t.IsMCP || t.IsComposio || t.IsLibrary
}

// ToolParameters is the JSON-schema-like argument description of a tool.
type ToolParameters struct {
	Type       string                  `yaml:"type" json:"type"`
	Properties map[string]ToolProperty `yaml:"properties" json:"properties"`
	Required   []string                `yaml:"required,omitempty" json:"required,omitempty"`
}

// ToolProperty describes a single tool argument.
type ToolProperty struct {
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Prompt is a reusable prompt fragment.
type Prompt struct {
	Name   string     `yaml:"name" json:"name"`
	Type   PromptType `yaml:"type" json:"type"`
	Prompt string     `yaml:"prompt" json:"prompt"`
}

// Pipeline runs agents sequentially, feeding each output to the next.
type Pipeline struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Agents      []string `yaml:"agents" json:"agents"`
}

// AgentIndex returns the position of the named agent or -1.
func (d *Document) AgentIndex(name string) int {
	return slices.IndexFunc(d.Agents, func(a Agent) bool { return a.Name == name })
}

// ToolIndex returns the position of the named tool or -1.
func (d *Document) ToolIndex(name string) int {
	return slices.IndexFunc(d.Tools, func(t Tool) bool { return t.Name == name })
}

// PromptIndex returns the position of the named prompt or -1.
func (d *Document) PromptIndex(name string) int {
	return slices.IndexFunc(d.Prompts, func(p Prompt) bool { return p.Name == name })
}

// PipelineIndex returns the position of the named pipeline or -1.
func (d *Document) PipelineIndex(name string) int {
	return slices.IndexFunc(d.Pipelines, func(p Pipeline) bool { return p.Name == name })
}

// Agent looks up an agent by name.
func (d *Document) Agent(name string) (Agent, bool) {
	if i := d.AgentIndex(name); i >= 0 {
		return d.Agents[i], true
	}
	return Agent{}, false
}

// Tool looks up a tool by name.
func (d *Document) Tool(name string) (Tool, bool) {
	if i := d.ToolIndex(name); i >= 0 {
		return d.Tools[i], true
	}
	return Tool{}, false
}

// Prompt looks up a prompt by name.
func (d *Document) Prompt(name string) (Prompt, bool) {
	if i := d.PromptIndex(name); i >= 0 {
		return d.Prompts[i], true
	}
	return Prompt{}, false
}

// Pipeline looks up a pipeline by name.
func (d *Document) Pipeline(name string) (Pipeline, bool) {
	if i := d.PipelineIndex(name); i >= 0 {
		return d.Pipelines[i], true
	}
	return Pipeline{}, false
}

// Has reports whether an entity of the given kind exists.
func (d *Document) Has(kind Kind, name string) bool {
	switch kind {
	case KindAgent:
		return d.AgentIndex(name) >= 0
	case KindTool:
		return d.ToolIndex(name) >= 0
	case KindPrompt:
		return d.PromptIndex(name) >= 0
	case KindPipeline:
		return d.PipelineIndex(name) >= 0
	}
	return false
}

// NameTaken reports whether name is already used in kind's namespace.
// Agents and pipelines share one namespace.
func (d *Document) NameTaken(kind Kind, name string) bool {
	switch kind {
	case KindAgent, KindPipeline:
		return d.AgentIndex(name) >= 0 || d.PipelineIndex(name) >= 0
	default:
		return d.Has(kind, name)
	}
}

// Names lists the entity names of kind in document order.
func (d *Document) Names(kind Kind) []string {
	switch kind {
	case KindAgent:
		return agentNames(d.Agents)
	case KindTool:
		return toolNames(d.Tools)
	case KindPrompt:
		return promptNames(d.Prompts)
	case KindPipeline:
		return pipelineNames(d.Pipelines)
	}
	return nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Agents = cloneAgents(d.Agents)
	c.Tools = cloneTools(d.Tools)
	c.Prompts = slices.Clone(d.Prompts)
	c.Pipelines = clonePipelines(d.Pipelines)
	return &c
}

// Clone returns a deep copy of the agent.
func (a Agent) Clone() Agent {
	a.RagDataSources = slices.Clone(a.RagDataSources)
	a.ConnectedAgents = slices.Clone(a.ConnectedAgents)
	return a
}

// Clone returns a deep copy of the tool.
func (t Tool) Clone() Tool {
	t.Parameters = t.Parameters.Clone()
	return t
}

// Clone returns a deep copy of the parameters.
func (p ToolParameters) Clone() ToolParameters {
	if p.Properties != nil {
		props := make(map[string]ToolProperty, len(p.Properties))
		for k, v := range p.Properties {
			props[k] = v
		}
		p.Properties = props
	}
	p.Required = slices.Clone(p.Required)
	return p
}

// Clone returns a deep copy of the pipeline.
func (p Pipeline) Clone() Pipeline {
	p.Agents = slices.Clone(p.Agents)
	return p
}

func cloneAgents(in []Agent) []Agent {
	if in == nil {
		return nil
	}
	out := make([]Agent, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

func cloneTools(in []Tool) []Tool {
	if in == nil {
		return nil
	}
	out := make([]Tool, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

func clonePipelines(in []Pipeline) []Pipeline {
	if in == nil {
		return nil
	}
	out := make([]Pipeline, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}

// Validate checks the document invariants and returns the first violation.
func (d *Document) Validate() error {
	if err := uniqueNames("agents", agentNames(d.Agents)); err != nil {
		return err
	}
	if err := uniqueNames("tools", toolNames(d.Tools)); err != nil {
		return err
	}
	if err := uniqueNames("prompts", promptNames(d.Prompts)); err != nil {
		return err
	}
	if err := uniqueNames("pipelines", pipelineNames(d.Pipelines)); err != nil {
		return err
	}

	for _, p := range d.Pipelines {
		if d.AgentIndex(p.Name) >= 0 {
			return &errors.ValidationError{
				Field:      "pipelines",
				Message:    fmt.Sprintf("pipeline %q conflicts with an agent of the same name", p.Name),
				Suggestion: "agents and pipelines share one namespace; rename one of them",
			}
		}
		for _, ref := range p.Agents {
			if d.AgentIndex(ref) < 0 {
				return &errors.ValidationError{
					Field:   "pipelines",
					Message: fmt.Sprintf("pipeline %q references unknown agent %q", p.Name, ref),
				}
			}
		}
	}

	for _, a := range d.Agents {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	for _, t := range d.Tools {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	for _, p := range d.Prompts {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	if len(d.Agents) == 0 {
		if d.StartAgent != "" {
			return &errors.ValidationError{
				Field:   "startAgent",
				Message: fmt.Sprintf("start agent %q does not exist", d.StartAgent),
			}
		}
		return nil
	}

	start, ok := d.Agent(d.StartAgent)
	if !ok {
		return &errors.ValidationError{
			Field:      "startAgent",
			Message:    fmt.Sprintf("start agent %q does not exist", d.StartAgent),
			Suggestion: "set startAgent to the name of an existing agent",
		}
	}
	if start.Disabled {
		return &errors.ValidationError{
			Field:      "startAgent",
			Message:    fmt.Sprintf("start agent %q is disabled", d.StartAgent),
			Suggestion: "enable the agent or choose another start agent",
		}
	}
	return nil
}

// Validate checks enumerated agent fields.
func (a Agent) Validate() error {
	field := func(f, msg string) error {
		return &errors.ValidationError{Field: fmt.Sprintf("agents.%s.%s", a.Name, f), Message: msg}
	}
	switch a.Type {
	case AgentTypeConversation, AgentTypePostProcess, AgentTypeEscalation:
	default:
		return field("type", fmt.Sprintf("unknown agent type %q", a.Type))
	}
	switch a.OutputVisibility {
	case VisibilityUserFacing, VisibilityInternal:
	default:
		return field("outputVisibility", fmt.Sprintf("unknown output visibility %q", a.OutputVisibility))
	}
	switch a.ControlType {
	case ControlRetain, ControlRelinquishToParent, ControlRelinquishToStart:
	default:
		return field("controlType", fmt.Sprintf("unknown control type %q", a.ControlType))
	}
	switch a.RagReturnType {
	case "", RagReturnChunks, RagReturnContent:
	default:
		return field("ragReturnType", fmt.Sprintf("unknown rag return type %q", a.RagReturnType))
	}
	if a.RagK < 0 {
		return field("ragK", "must not be negative")
	}
	if a.MaxCallsPerParentAgent < 0 {
		return field("maxCallsPerParentAgent", "must not be negative")
	}
	return nil
}

// Validate checks the prompt type.
// Validate checks that the parameter schema is an object schema and that
// every required parameter is declared.
func (t Tool) Validate() error {
	field := fmt.Sprintf("tools.%s.parameters", t.Name)
	switch t.Parameters.Type {
	case "", "object":
	default:
		return &errors.ValidationError{
			Field:   field + ".type",
			Message: fmt.Sprintf("parameters must be an object schema, got %q", t.Parameters.Type),
		}
	}
	for _, req := range t.Parameters.Required {
		if _, ok := t.Parameters.Properties[req]; !ok {
			return &errors.ValidationError{
				Field:      field + ".required",
				Message:    fmt.Sprintf("required parameter %q is not declared", req),
				Suggestion: "add it to parameters.properties or drop it from required",
			}
		}
	}
	return nil
}

func (p Prompt) Validate() error {
	switch p.Type {
	case PromptTypeBase, PromptTypeStyle:
		return nil
	}
	return &errors.ValidationError{
		Field:   fmt.Sprintf("prompts.%s.type", p.Name),
		Message: fmt.Sprintf("unknown prompt type %q", p.Type),
	}
}

func uniqueNames(field string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			return &errors.ValidationError{
				Field:   field,
				Message: "name is required",
			}
		}
		if seen[n] {
			return &errors.ValidationError{
				Field:      field,
				Message:    fmt.Sprintf("duplicate name %q", n),
				Suggestion: "names must be unique within their namespace",
			}
		}
		seen[n] = true
	}
	return nil
}

func agentNames(in []Agent) []string {
	out := make([]string, len(in))
	for i, a := range in {
		out[i] = a.Name
	}
	return out
}

func toolNames(in []Tool) []string {
	out := make([]string, len(in))
	for i, t := range in {
		out[i] = t.Name
	}
	return out
}

func promptNames(in []Prompt) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = p.Name
	}
	return out
}

func pipelineNames(in []Pipeline) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = p.Name
	}
	return out
}

// ApplyDefaults fills unset enumerated fields with their defaults.
// defaultModel is used for agents without a model; empty leaves it unset.
func (d *Document) ApplyDefaults(defaultModel string) {
	for i := range d.Agents {
		d.Agents[i].ApplyDefaults(defaultModel)
	}
	for i := range d.Tools {
		if d.Tools[i].Parameters.Type == "" {
			d.Tools[i].Parameters.Type = "object"
		}
	}
	for i := range d.Prompts {
		if d.Prompts[i].Type == "" {
			d.Prompts[i].Type = PromptTypeBase
		}
	}
	if d.StartAgent == "" && len(d.Agents) > 0 {
		for _, a := range d.Agents {
			if !a.Disabled {
				d.StartAgent = a.Name
				break
			}
		}
	}
}

// ApplyDefaults fills unset enumerated agent fields.
func (a *Agent) ApplyDefaults(defaultModel string) {
	if a.Type == "" {
		a.Type = AgentTypeConversation
	}
	if a.OutputVisibility == "" {
		a.OutputVisibility = VisibilityUserFacing
	}
	if a.ControlType == "" {
		a.ControlType = ControlRetain
	}
	if a.Model == "" {
		a.Model = defaultModel
	}
}

// ParseDocument parses a workflow document from YAML or JSON bytes and
// applies defaults. It does not validate; call Validate on the result.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workflow document: %w", err)
	}
	doc.ApplyDefaults("")
	return &doc, nil
}

// MarshalDocument encodes a document as YAML.
func MarshalDocument(d *Document) ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow document: %w", err)
	}
	return data, nil
}
