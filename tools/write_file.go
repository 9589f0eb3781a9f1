package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/duet-cli/duet/agent"
	"github.com/duet-cli/duet/workspace"
)

type WriteFileInput struct {
	Path    string `json:"path" jsonschema_description:"Relative file path to write."`
	Content string `json:"content" jsonschema_description:"Full file content; any existing content is replaced."`
}

var writeFileSchema = GenerateSchema[WriteFileInput]()

// WriteFile returns the write_file tool bound to a workspace.
func WriteFile(ws *workspace.Workspace) agent.ToolDefinition {
	return agent.ToolDefinition{
		Name:        "write_file",
		Description: "Write a file addressed by a relative path within the project root, replacing any existing content. Prefer edit_file for small changes to existing files.",
		InputSchema: writeFileSchema,
		Mutates:     true,
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var in WriteFileInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", err
			}
			if in.Path == "" {
				return "", fmt.Errorf("path must not be empty")
			}
			if err := ws.WriteFile(in.Path, in.Content); err != nil {
				return "", err
			}
			return fmt.Sprintf("Wrote %d bytes to %s", len(in.Content), in.Path), nil
		},
	}
}
