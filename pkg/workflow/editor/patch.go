package editor

import (
	"reflect"
	"time"

	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// Document paths addressed by patches.
const (
	PathName          = "/name"
	PathAgents        = "/agents"
	PathTools         = "/tools"
	PathPrompts       = "/prompts"
	PathPipelines     = "/pipelines"
	PathStartAgent    = "/startAgent"
	PathLastUpdatedAt = "/lastUpdatedAt"
)

// Operation replaces one top-level document field.
type Operation struct {
	Path  string
	Value any
}

// Patch is an ordered set of field replacements.
type Patch []Operation

// Entry is one undoable step.
type Entry struct {
	Command string
	Forward Patch
	Inverse Patch
}

// field binds a path to its accessor on Document.
type field struct {
	path string
	get  func(d *workflow.Document) any
	set  func(d *workflow.Document, v any)
}

var fields = []field{
	{PathName, func(d *workflow.Document) any { return d.Name }, func(d *workflow.Document, v any) { d.Name = v.(string) }},
	{PathAgents, func(d *workflow.Document) any { return d.Agents }, func(d *workflow.Document, v any) { d.Agents = v.([]workflow.Agent) }},
	{PathTools, func(d *workflow.Document) any { return d.Tools }, func(d *workflow.Document, v any) { d.Tools = v.([]workflow.Tool) }},
	{PathPrompts, func(d *workflow.Document) any { return d.Prompts }, func(d *workflow.Document, v any) { d.Prompts = v.([]workflow.Prompt) }},
	{PathPipelines, func(d *workflow.Document) any { return d.Pipelines }, func(d *workflow.Document, v any) { d.Pipelines = v.([]workflow.Pipeline) }},
	{PathStartAgent, func(d *workflow.Document) any { return d.StartAgent }, func(d *workflow.Document, v any) { d.StartAgent = v.(string) }},
	{PathLastUpdatedAt, func(d *workflow.Document) any { return d.LastUpdatedAt }, func(d *workflow.Document, v any) { d.LastUpdatedAt = v.(time.Time) }},
}

// diff returns the patches that turn prev into next and back. Values are
// shared with the documents; documents are copy-on-write so they are never
// modified after being recorded.
func diff(prev, next *workflow.Document) (forward, inverse Patch) {
	for _, f := range fields {
		a, b := f.get(prev), f.get(next)
		if reflect.DeepEqual(a, b) {
			continue
		}
		forward = append(forward, Operation{Path: f.path, Value: b})
		inverse = append(inverse, Operation{Path: f.path, Value: a})
	}
	return forward, inverse
}

// apply returns a copy of doc with p applied. doc is not modified.
func (p Patch) apply(doc *workflow.Document) *workflow.Document {
	out := *doc
	for _, op := range p {
		for _, f := range fields {
			if f.path == op.Path {
				f.set(&out, op.Value)
				break
			}
		}
	}
	return &out
}

// Paths lists the paths touched by the patch.
func (p Patch) Paths() []string {
	out := make([]string, len(p))
	for i, op := range p {
		out[i] = op.Path
	}
	return out
}
