package agent

import (
	"sync"
	"time"
)

// EventKind identifies the type of session event.
type EventKind string

const (
	EventSessionStart   EventKind = "session_start"
	EventSessionEnd     EventKind = "session_end"
	EventUserInput      EventKind = "user_input"
	EventModelRequest   EventKind = "model_request"
	EventAssistantText  EventKind = "assistant_text"
	EventToolCallStart  EventKind = "tool_call_start"
	EventToolCallEnd    EventKind = "tool_call_end"
	EventSteering       EventKind = "steering_injected"
	EventStateChange    EventKind = "state_change"
	EventBudgetExceeded EventKind = "budget_exceeded"
	EventLoopDetected   EventKind = "loop_detected"
	EventWarning        EventKind = "warning"
	EventError          EventKind = "error"
)

// Event is a typed notification emitted by the agent loop for the host
// application to render.
type Event struct {
	Kind      EventKind              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventEmitter delivers events to the host over a buffered channel. Emission
// never blocks the loop: when the consumer falls behind, events are dropped.
type EventEmitter struct {
	sessionID string
	ch        chan Event
	closed    bool
	mu        sync.Mutex
}

// NewEventEmitter creates an emitter with the given buffer size.
func NewEventEmitter(sessionID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		sessionID: sessionID,
		ch:        make(chan Event, bufferSize),
	}
}

// Emit sends an event. Events emitted after Close are silently dropped.
func (e *EventEmitter) Emit(kind EventKind, data map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := Event{
		Kind:      kind,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	}
	select {
	case e.ch <- event:
	default:
		// Channel full; drop rather than stall the loop.
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
