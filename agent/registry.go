package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/duet-cli/duet/llm"
)

// Handler is the function signature for tool execution. It receives the raw
// argument payload already validated against the tool's input schema.
type Handler func(ctx context.Context, arguments json.RawMessage) (string, error)

// ToolDefinition describes a tool: its model-facing metadata and its
// executable handler. Definitions are constructed once at startup and are
// immutable thereafter.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Mutates     bool // writes or edits files
	Handler     Handler
}

// Registry manages tool registration and lookup. It is process-wide state
// initialized once before any conversation begins.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*ToolDefinition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*ToolDefinition)}
}

// Register adds a tool. Registering a name twice fails with
// DuplicateToolError.
func (r *Registry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition has no name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s has no handler", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return &DuplicateToolError{Name: def.Name}
	}
	r.tools[def.Name] = &def
	return nil
}

// Lookup returns a tool by name, or UnknownToolError if absent.
func (r *Registry) Lookup(name string) (*ToolDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return def, nil
}

// Definitions returns the complete toolset as wire declarations, sorted by
// name. The model must see the full toolset on every request.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, llm.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.InputSchema,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
