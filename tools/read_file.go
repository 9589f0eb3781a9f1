package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/duet-cli/duet/agent"
	"github.com/duet-cli/duet/workspace"
)

type ReadFileInput struct {
	Path   string `json:"path" jsonschema_description:"Relative file path."`
	Offset int    `json:"offset,omitempty" jsonschema_description:"Line offset (0-based) to start reading from."`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum lines to return from offset (default 200)."`
}

var readFileSchema = GenerateSchema[ReadFileInput]()

const defaultReadLimit = 200
const readTruncationSentinel = "-- truncated; use offset/limit to fetch more --\n"

// ReadFile returns the read_file tool bound to a workspace. Output is paged
// by line so large files stay navigable for the model.
func ReadFile(ws *workspace.Workspace) agent.ToolDefinition {
	return agent.ToolDefinition{
		Name:        "read_file",
		Description: "Read the contents of a file addressed by a relative path within the project root. Use offset and limit to page through large files.",
		InputSchema: readFileSchema,
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var in ReadFileInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", err
			}

			content, err := ws.ReadFile(in.Path)
			if err != nil {
				return "", err
			}

			limit := in.Limit
			if limit <= 0 {
				limit = defaultReadLimit
			}
			offset := in.Offset
			if offset < 0 {
				offset = 0
			}

			lines := strings.Split(content, "\n")
			if offset > len(lines) {
				offset = len(lines)
			}
			end := offset + limit
			if end > len(lines) {
				end = len(lines)
			}

			out := strings.Join(lines[offset:end], "\n")
			if end < len(lines) {
				if !strings.HasSuffix(out, "\n") {
					out += "\n"
				}
				out += readTruncationSentinel
			}
			return out, nil
		},
	}
}
