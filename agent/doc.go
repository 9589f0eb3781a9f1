// Package agent implements the agent loop: the state machine that manages
// conversation turns, routes model tool calls through a registry-backed
// executor, feeds results back, and repeats until the model produces a final
// answer or a stopping condition is hit.
//
// A Session walks awaiting_input -> awaiting_model -> executing_tools cycles
// for each user input. Tool-layer failures (unknown tool, schema violation,
// path escape, edit conflict, timeout) become error ToolResults the model can
// see and react to; only session-layer errors (authentication failure,
// exhausted model retries at startup, an exceeded tool-round budget) end the
// session.
//
//	registry := agent.NewRegistry()
//	// ... register tools ...
//	session := agent.NewSession(client, registry, agent.Config{
//	    Model:        "claude-sonnet-4-5",
//	    SystemPrompt: agent.BuildSystemPrompt(root, registry.Names(), ""),
//	})
//	answer, err := session.Submit(ctx, "list files in the project root")
//
// Hosts consume Session.Events() to render tool activity and state changes;
// emission is non-blocking and events are dropped, never queued unboundedly,
// when the consumer falls behind.
package agent
