package agent

import (
	"encoding/json"
	"testing"

	"github.com/duet-cli/duet/llm"
)

func assistantWithCalls(calls ...llm.ToolCall) Message {
	return NewAssistantMessage("", calls, llm.Usage{})
}

func call(name, args string) llm.ToolCall {
	return llm.ToolCall{ID: "call_x", Name: name, Arguments: json.RawMessage(args)}
}

func TestDetectLoopIdenticalCalls(t *testing.T) {
	var messages []Message
	for i := 0; i < 4; i++ {
		messages = append(messages, assistantWithCalls(call("list_files", `{"path":"."}`)))
	}
	if !detectLoop(messages, 4) {
		t.Error("expected loop detection for identical repeated calls")
	}
}

func TestDetectLoopAlternatingPattern(t *testing.T) {
	var messages []Message
	for i := 0; i < 3; i++ {
		messages = append(messages,
			assistantWithCalls(call("read_file", `{"path":"a.go"}`)),
			assistantWithCalls(call("read_file", `{"path":"b.go"}`)),
		)
	}
	if !detectLoop(messages, 6) {
		t.Error("expected loop detection for an alternating two-call pattern")
	}
}

func TestDetectLoopVariedCallsPass(t *testing.T) {
	messages := []Message{
		assistantWithCalls(call("list_files", `{"path":"."}`)),
		assistantWithCalls(call("read_file", `{"path":"a.go"}`)),
		assistantWithCalls(call("read_file", `{"path":"b.go"}`)),
		assistantWithCalls(call("edit_file", `{"path":"a.go"}`)),
	}
	if detectLoop(messages, 4) {
		t.Error("varied calls must not trip the loop guard")
	}
}

func TestDetectLoopInsufficientHistory(t *testing.T) {
	messages := []Message{
		assistantWithCalls(call("list_files", `{"path":"."}`)),
	}
	if detectLoop(messages, 4) {
		t.Error("short history must not trip the loop guard")
	}
}

func TestDetectLoopSameToolDifferentArgs(t *testing.T) {
	var messages []Message
	for _, p := range []string{"a.go", "b.go", "c.go", "d.go"} {
		messages = append(messages, assistantWithCalls(call("read_file", `{"path":"`+p+`"}`)))
	}
	if detectLoop(messages, 4) {
		t.Error("same tool with different arguments is progress, not a loop")
	}
}
