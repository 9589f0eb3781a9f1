package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/duet-cli/duet/agent"
	"github.com/duet-cli/duet/workspace"
)

type EditFileInput struct {
	Path   string `json:"path" jsonschema_description:"Target relative file path."`
	OldStr string `json:"old_str" jsonschema_description:"Exact text to replace; must be present in the file when editing. Empty creates a new file."`
	NewStr string `json:"new_str" jsonschema_description:"New text to write or replace old_str with."`
}

var editFileSchema = GenerateSchema[EditFileInput]()

// EditFile returns the edit_file tool bound to a workspace.
//
// When old_str is empty and the file does not exist, a new file is created
// with new_str as its content. When editing an existing file, every
// occurrence of old_str is replaced; old_str not matching the file's current
// content is a conflict and the file is left unchanged.
func EditFile(ws *workspace.Workspace) agent.ToolDefinition {
	return agent.ToolDefinition{
		Name:        "edit_file",
		Description: "Create or modify a text file within the project root. With an empty old_str the file is created; otherwise all occurrences of old_str are replaced with new_str.",
		InputSchema: editFileSchema,
		Mutates:     true,
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var in EditFileInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", err
			}
			if in.Path == "" {
				return "", fmt.Errorf("path must not be empty")
			}
			// Both empty is file creation; the workspace rejects an empty
			// old_str on an existing file.
			if in.OldStr != "" && in.OldStr == in.NewStr {
				return "", fmt.Errorf("old_str and new_str must differ")
			}

			created, replaced, err := ws.Edit(in.Path, in.OldStr, in.NewStr)
			if err != nil {
				return "", err
			}
			if created {
				return fmt.Sprintf("Created file %s", in.Path), nil
			}
			return fmt.Sprintf("Replaced %d occurrence(s) in %s", replaced, in.Path), nil
		},
	}
}
