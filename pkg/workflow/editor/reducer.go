package editor

import (
	"slices"

	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// rename describes an entity rename performed by a command.
type rename struct {
	kind     workflow.Kind
	from, to string
}

// reducer applies entity commands to documents. Every method takes the
// current document and returns a new one, or nil when the command is a
// no-op. The input document is never modified.
type reducer struct {
	defaultModel string
}

func (r reducer) reduce(doc *workflow.Document, cmd Command) (*workflow.Document, *rename) {
	switch c := cmd.(type) {
	case AddAgent:
		return r.addAgent(doc, c.Agent), nil
	case AddTool:
		return r.addTool(doc, c.Tool), nil
	case AddPrompt:
		return r.addPrompt(doc, c.Prompt), nil
	case AddPipeline:
		return r.addPipeline(doc, c.Pipeline), nil
	case UpdateAgent:
		return r.updateAgent(doc, c.Name, c.Changes)
	case UpdateTool:
		return r.updateTool(doc, c.Name, c.Changes)
	case UpdatePrompt:
		return r.updatePrompt(doc, c.Name, c.Changes)
	case UpdatePipeline:
		return r.updatePipeline(doc, c.Name, c.Changes)
	case DeleteAgent:
		return r.deleteAgent(doc, c.Name), nil
	case DeleteTool:
		return r.deleteTool(doc, c.Name), nil
	case DeletePrompt:
		return r.deletePrompt(doc, c.Name), nil
	case DeletePipeline:
		return r.deletePipeline(doc, c.Name), nil
	case ToggleAgent:
		return r.toggleAgent(doc, c.Name), nil
	case SetMainAgent:
		return r.setMainAgent(doc, c.Name), nil
	case RenameDocument:
		next := doc.Clone()
		next.Name = c.Name
		return next, nil
	case ReorderAgents:
		if !validMove(len(doc.Agents), c.From, c.To) {
			return nil, nil
		}
		next := doc.Clone()
		next.Agents = move(next.Agents, c.From, c.To)
		return next, nil
	case ReorderTools:
		if !validMove(len(doc.Tools), c.From, c.To) {
			return nil, nil
		}
		next := doc.Clone()
		next.Tools = move(next.Tools, c.From, c.To)
		return next, nil
	}
	return nil, nil
}

func (r reducer) addAgent(doc *workflow.Document, a workflow.Agent) *workflow.Document {
	if a.Name == "" || doc.NameTaken(workflow.KindAgent, a.Name) {
		return nil
	}
	a = a.Clone()
	a.ApplyDefaults(r.defaultModel)
	if a.Validate() != nil {
		return nil
	}
	next := doc.Clone()
	next.Agents = append(next.Agents, a)
	if next.StartAgent == "" && !a.Disabled {
		next.StartAgent = a.Name
	}
	return next
}

func (r reducer) addTool(doc *workflow.Document, t workflow.Tool) *workflow.Document {
	if t.Name == "" || doc.NameTaken(workflow.KindTool, t.Name) {
		return nil
	}
	t = t.Clone()
	if t.Parameters.Type == "" {
		t.Parameters.Type = "object"
	}
	if t.Parameters.Properties == nil {
		t.Parameters.Properties = map[string]workflow.ToolProperty{}
	}
	if t.Validate() != nil {
		return nil
	}
	next := doc.Clone()
	next.Tools = append(next.Tools, t)
	return next
}

func (r reducer) addPrompt(doc *workflow.Document, p workflow.Prompt) *workflow.Document {
	if p.Name == "" || doc.NameTaken(workflow.KindPrompt, p.Name) {
		return nil
	}
	if p.Type == "" {
		p.Type = workflow.PromptTypeBase
	}
	if p.Validate() != nil {
		return nil
	}
	next := doc.Clone()
	next.Prompts = append(next.Prompts, p)
	return next
}

func (r reducer) addPipeline(doc *workflow.Document, p workflow.Pipeline) *workflow.Document {
	if p.Name == "" || doc.NameTaken(workflow.KindPipeline, p.Name) {
		return nil
	}
	for _, a := range p.Agents {
		if doc.AgentIndex(a) < 0 {
			return nil
		}
	}
	p = p.Clone()
	if p.Agents == nil {
		p.Agents = []string{}
	}
	next := doc.Clone()
	next.Pipelines = append(next.Pipelines, p)
	return next
}

func (r reducer) updateAgent(doc *workflow.Document, name string, c *workflow.AgentChanges) (*workflow.Document, *rename) {
	i := doc.AgentIndex(name)
	if i < 0 || c == nil {
		return nil, nil
	}
	current := doc.Agents[i]
	updated := current.With(c)

	if updated.Disabled && name == doc.StartAgent {
		return nil, nil
	}
	if updated.Validate() != nil {
		return nil, nil
	}

	rn := entityRename(workflow.KindAgent, name, updated.Name)
	if rn != nil {
		if current.Locked || updated.Name == "" || doc.NameTaken(workflow.KindAgent, updated.Name) {
			return nil, nil
		}
	}

	next := doc.Clone()
	next.Agents[i] = updated
	if rn != nil {
		cascadeAgentRename(next, rn.from, rn.to)
	}
	return next, rn
}

func (r reducer) updateTool(doc *workflow.Document, name string, c *workflow.ToolChanges) (*workflow.Document, *rename) {
	i := doc.ToolIndex(name)
	if i < 0 || c == nil {
		return nil, nil
	}
	current := doc.Tools[i]
	if current.External() && (c.Name != nil || c.Parameters != nil) {
		return nil, nil
	}
	updated := current.With(c)
	if updated.Validate() != nil {
		return nil, nil
	}

	rn := entityRename(workflow.KindTool, name, updated.Name)
	if rn != nil && (updated.Name == "" || doc.NameTaken(workflow.KindTool, updated.Name)) {
		return nil, nil
	}

	next := doc.Clone()
	next.Tools[i] = updated
	if rn != nil {
		next.RenameMentions(workflow.KindTool, rn.from, rn.to)
	}
	return next, rn
}

func (r reducer) updatePrompt(doc *workflow.Document, name string, c *workflow.PromptChanges) (*workflow.Document, *rename) {
	i := doc.PromptIndex(name)
	if i < 0 || c == nil {
		return nil, nil
	}
	updated := doc.Prompts[i].With(c)
	if updated.Validate() != nil {
		return nil, nil
	}

	rn := entityRename(workflow.KindPrompt, name, updated.Name)
	if rn != nil && (updated.Name == "" || doc.NameTaken(workflow.KindPrompt, updated.Name)) {
		return nil, nil
	}

	next := doc.Clone()
	next.Prompts[i] = updated
	if rn != nil {
		next.RenameMentions(workflow.KindPrompt, rn.from, rn.to)
	}
	return next, rn
}

func (r reducer) updatePipeline(doc *workflow.Document, name string, c *workflow.PipelineChanges) (*workflow.Document, *rename) {
	i := doc.PipelineIndex(name)
	if i < 0 || c == nil {
		return nil, nil
	}
	updated := doc.Pipelines[i].With(c)
	for _, a := range updated.Agents {
		if doc.AgentIndex(a) < 0 {
			return nil, nil
		}
	}

	rn := entityRename(workflow.KindPipeline, name, updated.Name)
	if rn != nil && (updated.Name == "" || doc.NameTaken(workflow.KindPipeline, updated.Name)) {
		return nil, nil
	}

	next := doc.Clone()
	next.Pipelines[i] = updated
	return next, rn
}

func (r reducer) deleteAgent(doc *workflow.Document, name string) *workflow.Document {
	i := doc.AgentIndex(name)
	if i < 0 || doc.Agents[i].Locked || name == doc.StartAgent {
		return nil
	}
	next := doc.Clone()
	next.Agents = slices.Delete(next.Agents, i, i+1)
	for j := range next.Pipelines {
		next.Pipelines[j].Agents = slices.DeleteFunc(next.Pipelines[j].Agents, func(a string) bool { return a == name })
	}
	for j := range next.Agents {
		if next.Agents[j].ConnectedAgents != nil {
			next.Agents[j].ConnectedAgents = slices.DeleteFunc(next.Agents[j].ConnectedAgents, func(a string) bool { return a == name })
		}
	}
	return next
}

func (r reducer) deleteTool(doc *workflow.Document, name string) *workflow.Document {
	i := doc.ToolIndex(name)
	if i < 0 {
		return nil
	}
	next := doc.Clone()
	next.Tools = slices.Delete(next.Tools, i, i+1)
	return next
}

func (r reducer) deletePrompt(doc *workflow.Document, name string) *workflow.Document {
	i := doc.PromptIndex(name)
	if i < 0 {
		return nil
	}
	next := doc.Clone()
	next.Prompts = slices.Delete(next.Prompts, i, i+1)
	return next
}

func (r reducer) deletePipeline(doc *workflow.Document, name string) *workflow.Document {
	i := doc.PipelineIndex(name)
	if i < 0 {
		return nil
	}
	next := doc.Clone()
	next.Pipelines = slices.Delete(next.Pipelines, i, i+1)
	return next
}

func (r reducer) toggleAgent(doc *workflow.Document, name string) *workflow.Document {
	i := doc.AgentIndex(name)
	if i < 0 {
		return nil
	}
	if !doc.Agents[i].Disabled && name == doc.StartAgent {
		return nil
	}
	next := doc.Clone()
	next.Agents[i].Disabled = !next.Agents[i].Disabled
	return next
}

func (r reducer) setMainAgent(doc *workflow.Document, name string) *workflow.Document {
	a, ok := doc.Agent(name)
	if !ok || a.Disabled || name == doc.StartAgent {
		return nil
	}
	next := doc.Clone()
	next.StartAgent = name
	return next
}

// cascadeAgentRename rewrites every reference to an agent in doc.
func cascadeAgentRename(doc *workflow.Document, from, to string) {
	if doc.StartAgent == from {
		doc.StartAgent = to
	}
	doc.RenameMentions(workflow.KindAgent, from, to)
	for i := range doc.Pipelines {
		replaceAll(doc.Pipelines[i].Agents, from, to)
	}
	for i := range doc.Agents {
		replaceAll(doc.Agents[i].ConnectedAgents, from, to)
	}
}

func entityRename(kind workflow.Kind, from, to string) *rename {
	if from == to {
		return nil
	}
	return &rename{kind: kind, from: from, to: to}
}

func replaceAll(s []string, from, to string) {
	for i := range s {
		if s[i] == from {
			s[i] = to
		}
	}
}

func validMove(n, from, to int) bool {
	return from != to && from >= 0 && from < n && to >= 0 && to < n
}

func move[T any](s []T, from, to int) []T {
	v := s[from]
	s = slices.Delete(s, from, from+1)
	return slices.Insert(s, to, v)
}
