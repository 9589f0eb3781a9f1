package tools

import (
	"github.com/duet-cli/duet/agent"
	"github.com/duet-cli/duet/workspace"
)

// All returns every builtin tool definition bound to the workspace.
func All(ws *workspace.Workspace) []agent.ToolDefinition {
	return []agent.ToolDefinition{
		ReadFile(ws),
		WriteFile(ws),
		EditFile(ws),
		ListFiles(ws),
		Search(ws),
	}
}

// RegisterAll registers the builtin toolset with a registry.
func RegisterAll(r *agent.Registry, ws *workspace.Workspace) error {
	for _, def := range All(ws) {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}
