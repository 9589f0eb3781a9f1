package agent

import (
	"fmt"
	"time"
)

// Tool-layer errors. The executor converts these into error ToolResults fed
// back to the model; they never escape as raised faults.

// UnknownToolError reports a tool call naming an unregistered tool.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// DuplicateToolError reports an attempt to register a tool name twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool already registered: %s", e.Name)
}

// SchemaValidationError reports arguments that violate a tool's input schema.
type SchemaValidationError struct {
	Tool   string
	Detail string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Detail)
}

// ToolTimeoutError reports a tool call that exceeded its execution timeout.
type ToolTimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out after %s", e.Tool, e.Timeout)
}

// Session-layer errors. These terminate the turn or the session.

// TurnBudgetExceededError reports that a single user input consumed more
// model<->tool round-trips than the configured ceiling allows. The session
// transitions to the fatal state.
type TurnBudgetExceededError struct {
	Limit int
}

func (e *TurnBudgetExceededError) Error() string {
	return fmt.Sprintf("turn exceeded the maximum of %d tool rounds", e.Limit)
}

// SessionClosedError reports input submitted to a closed or fatal session.
type SessionClosedError struct {
	State State
}

func (e *SessionClosedError) Error() string {
	return fmt.Sprintf("session is %s and no longer accepts input", e.State)
}
