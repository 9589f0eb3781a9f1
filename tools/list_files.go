package tools

import (
	"context"
	"encoding/json"

	"github.com/duet-cli/duet/agent"
	"github.com/duet-cli/duet/workspace"
)

type ListFilesInput struct {
	Path string `json:"path,omitempty" jsonschema_description:"Optional relative path to list from (defaults to the project root)."`
}

var listFilesSchema = GenerateSchema[ListFilesInput]()

// ListFiles returns the list_files tool bound to a workspace. The listing is
// recursive, skips gitignored entries, and suffixes directories with "/".
func ListFiles(ws *workspace.Workspace) agent.ToolDefinition {
	return agent.ToolDefinition{
		Name:        "list_files",
		Description: "Recursively list files and directories under a relative path within the project root. Directories carry a trailing slash; gitignored entries are skipped.",
		InputSchema: listFilesSchema,
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var in ListFilesInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", err
			}

			entries, err := ws.ListFiles(ctx, in.Path)
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(entries)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}
