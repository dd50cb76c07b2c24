package editor

import (
	"reflect"

	"github.com/rowboatlabs/rowboat/pkg/workflow"
)

// Command is an instruction dispatched to the Store.
type Command interface {
	// CommandType returns a stable snake_case identifier for logging.
	CommandType() string
}

// Selection commands. They never enter history and work on published
// documents.
type (
	SelectAgent    struct{ Name string }
	SelectTool     struct{ Name string }
	SelectPrompt   struct{ Name string }
	SelectPipeline struct{ Name string }
	Unselect       struct{}
)

// Entity commands. Each is recorded in history.
type (
	AddAgent    struct{ Agent workflow.Agent }
	AddTool     struct{ Tool workflow.Tool }
	AddPrompt   struct{ Prompt workflow.Prompt }
	AddPipeline struct{ Pipeline workflow.Pipeline }

	UpdateAgent struct {
		Name    string
		Changes *workflow.AgentChanges
	}
	UpdateTool struct {
		Name    string
		Changes *workflow.ToolChanges
	}
	UpdatePrompt struct {
		Name    string
		Changes *workflow.PromptChanges
	}
	UpdatePipeline struct {
		Name    string
		Changes *workflow.PipelineChanges
	}

	DeleteAgent    struct{ Name string }
	DeleteTool     struct{ Name string }
	DeletePrompt   struct{ Name string }
	DeletePipeline struct{ Name string }

	// ToggleAgent flips an agent's disabled flag.
	ToggleAgent struct{ Name string }

	// SetMainAgent changes the start agent.
	SetMainAgent struct{ Name string }

	RenameDocument struct{ Name string }

	// ReorderAgents moves the agent at From to position To.
	ReorderAgents struct{ From, To int }

	// ReorderTools moves the tool at From to position To.
	ReorderTools struct{ From, To int }
)

// Meta commands. They change flags on the present state only.
type (
	SetSaving     struct{ Saving bool }
	SetPublishing struct{ Publishing bool }

	// SaveFinished records the outcome of saving the snapshot taken at
	// Revision.
	SaveFinished struct {
		Revision uint64
		Err      error
	}
)

// History commands.
type (
	Undo struct{}
	Redo struct{}

	// RestoreState replaces the present state and clears history.
	RestoreState struct{ State State }
)

func (SelectAgent) CommandType() string    { return "select_agent" }
func (SelectTool) CommandType() string     { return "select_tool" }
func (SelectPrompt) CommandType() string   { return "select_prompt" }
func (SelectPipeline) CommandType() string { return "select_pipeline" }
func (Unselect) CommandType() string       { return "unselect" }
func (AddAgent) CommandType() string       { return "add_agent" }
func (AddTool) CommandType() string        { return "add_tool" }
func (AddPrompt) CommandType() string      { return "add_prompt" }
func (AddPipeline) CommandType() string    { return "add_pipeline" }
func (UpdateAgent) CommandType() string    { return "update_agent" }
func (UpdateTool) CommandType() string     { return "update_tool" }
func (UpdatePrompt) CommandType() string   { return "update_prompt" }
func (UpdatePipeline) CommandType() string { return "update_pipeline" }
func (DeleteAgent) CommandType() string    { return "delete_agent" }
func (DeleteTool) CommandType() string     { return "delete_tool" }
func (DeletePrompt) CommandType() string   { return "delete_prompt" }
func (DeletePipeline) CommandType() string { return "delete_pipeline" }
func (ToggleAgent) CommandType() string    { return "toggle_agent" }
func (SetMainAgent) CommandType() string   { return "set_main_agent" }
func (RenameDocument) CommandType() string { return "rename_document" }
func (ReorderAgents) CommandType() string  { return "reorder_agents" }
func (ReorderTools) CommandType() string   { return "reorder_tools" }
func (SetSaving) CommandType() string      { return "set_saving" }
func (SetPublishing) CommandType() string  { return "set_publishing" }
func (SaveFinished) CommandType() string   { return "save_finished" }
func (Undo) CommandType() string           { return "undo" }
func (Redo) CommandType() string           { return "redo" }
func (RestoreState) CommandType() string   { return "restore_state" }

// UpdateCommand builds the update command for a Changes value.
// It returns nil for an unknown changes type.
func UpdateCommand(name string, changes workflow.Changes) Command {
	switch c := changes.(type) {
	case *workflow.AgentChanges:
		return UpdateAgent{Name: name, Changes: c}
	case *workflow.ToolChanges:
		return UpdateTool{Name: name, Changes: c}
	case *workflow.PromptChanges:
		return UpdatePrompt{Name: name, Changes: c}
	case *workflow.PipelineChanges:
		return UpdatePipeline{Name: name, Changes: c}
	}
	return nil
}

// AddCommand builds the add command for a new entity named name carrying
// changes. It returns nil for nil changes.
func AddCommand(name string, changes workflow.Changes) Command {
	if changes == nil || reflect.ValueOf(changes).IsNil() {
		return nil
	}
	switch c := changes.(type) {
	case *workflow.AgentChanges:
		return AddAgent{Agent: workflow.Agent{Name: name}.With(withoutName(c))}
	case *workflow.ToolChanges:
		return AddTool{Tool: workflow.Tool{Name: name}.With(withoutName(c))}
	case *workflow.PromptChanges:
		return AddPrompt{Prompt: workflow.Prompt{Name: name}.With(withoutName(c))}
	case *workflow.PipelineChanges:
		return AddPipeline{Pipeline: workflow.Pipeline{Name: name}.With(withoutName(c))}
	}
	return nil
}

// withoutName drops a name field so the command name always wins.
func withoutName[C interface {
	*workflow.AgentChanges | *workflow.ToolChanges | *workflow.PromptChanges | *workflow.PipelineChanges
	workflow.Changes
}](c C) C {
	var keep []string
	for _, f := range c.Fields() {
		if f != "name" {
			keep = append(keep, f)
		}
	}
	return c.Select(keep...).(C)
}
