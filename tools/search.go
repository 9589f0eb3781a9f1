package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/duet-cli/duet/agent"
	"github.com/duet-cli/duet/workspace"
)

type SearchInput struct {
	Pattern    string `json:"pattern" jsonschema_description:"Regular expression to search for."`
	Path       string `json:"path,omitempty" jsonschema_description:"Optional relative path to search under (defaults to the project root)."`
	MaxResults int    `json:"max_results,omitempty" jsonschema_description:"Maximum matches to return (default 100)."`
}

var searchSchema = GenerateSchema[SearchInput]()

// Search returns the search tool bound to a workspace. Matches are reported
// as path:line: text, one per line.
func Search(ws *workspace.Workspace) agent.ToolDefinition {
	return agent.ToolDefinition{
		Name:        "search",
		Description: "Search file contents under the project root with a regular expression. Returns matching lines as path:line: text.",
		InputSchema: searchSchema,
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var in SearchInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", err
			}
			if in.Pattern == "" {
				return "", fmt.Errorf("pattern must not be empty")
			}

			matches, err := ws.Search(ctx, in.Pattern, in.Path, in.MaxResults)
			if err != nil {
				return "", err
			}
			if len(matches) == 0 {
				return "No matches found.", nil
			}

			var sb strings.Builder
			for _, m := range matches {
				fmt.Fprintf(&sb, "%s:%d: %s\n", m.Path, m.Line, m.Text)
			}
			return sb.String(), nil
		},
	}
}
