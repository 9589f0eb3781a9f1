package agent

import (
	"sync"
	"time"

	"github.com/duet-cli/duet/llm"
)

// MessageKind discriminates between transcript entry types.
type MessageKind string

const (
	KindUser      MessageKind = "user"
	KindAssistant MessageKind = "assistant"
	KindTool      MessageKind = "tool"
	KindSteering  MessageKind = "steering"
)

// Message is a single entry in the conversation transcript. Transcript order
// is the only ordering signal; entries are immutable once appended.
type Message struct {
	Kind      MessageKind     `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Text      string          `json:"text,omitempty"`
	ToolCalls []llm.ToolCall  `json:"tool_calls,omitempty"`
	Result    *llm.ToolResult `json:"result,omitempty"`
	Usage     llm.Usage       `json:"usage"`
}

// NewUserMessage wraps user input.
func NewUserMessage(text string) Message {
	return Message{Kind: KindUser, Timestamp: time.Now(), Text: text}
}

// NewAssistantMessage wraps a model response, carrying both its text and any
// tool calls it requested.
func NewAssistantMessage(text string, calls []llm.ToolCall, usage llm.Usage) Message {
	return Message{
		Kind:      KindAssistant,
		Timestamp: time.Now(),
		Text:      text,
		ToolCalls: calls,
		Usage:     usage,
	}
}

// NewToolMessage wraps one tool execution result.
func NewToolMessage(result llm.ToolResult) Message {
	r := result
	return Message{Kind: KindTool, Timestamp: time.Now(), Result: &r}
}

// NewSteeringMessage wraps a notice injected by the loop itself, such as a
// repeated-call warning.
func NewSteeringMessage(text string) Message {
	return Message{Kind: KindSteering, Timestamp: time.Now(), Text: text}
}

// Transcript is the conversation state: a mutex-guarded, append-only ordered
// sequence of Messages. Exactly one Transcript exists per Session and it is
// discarded when the session ends.
type Transcript struct {
	mu       sync.Mutex
	messages []Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
}

// Snapshot returns a copy of the transcript. Callers cannot corrupt history
// through the returned slice.
func (t *Transcript) Snapshot() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Reset clears the transcript for a new conversation. Explicit, never
// implicit.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}

// ToMessages converts the transcript into the wire message sequence sent to
// the model. Steering messages travel as user messages so the model treats
// them as additional instructions.
func (t *Transcript) ToMessages() []llm.Message {
	snapshot := t.Snapshot()
	var messages []llm.Message
	for _, m := range snapshot {
		switch m.Kind {
		case KindUser, KindSteering:
			messages = append(messages, llm.UserMessage(m.Text))
		case KindAssistant:
			msg := llm.AssistantMessage(m.Text)
			for _, tc := range m.ToolCalls {
				msg.Content = append(msg.Content, llm.ToolCallPart(tc.ID, tc.Name, tc.Arguments))
			}
			messages = append(messages, msg)
		case KindTool:
			if m.Result != nil {
				messages = append(messages,
					llm.ToolResultMessage(m.Result.ToolCallID, m.Result.Content, m.Result.IsError))
			}
		}
	}
	return messages
}
