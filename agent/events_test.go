package agent

import "testing"

func TestEventEmitterDelivers(t *testing.T) {
	e := NewEventEmitter("sess-1", 4)
	e.Emit(EventUserInput, map[string]interface{}{"content": "hi"})

	select {
	case ev := <-e.Events():
		if ev.Kind != EventUserInput || ev.SessionID != "sess-1" {
			t.Errorf("unexpected event: %+v", ev)
		}
		if ev.Data["content"] != "hi" {
			t.Errorf("unexpected data: %+v", ev.Data)
		}
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestEventEmitterDropsWhenFull(t *testing.T) {
	e := NewEventEmitter("sess-1", 1)
	e.Emit(EventUserInput, nil)
	// Must not block even though the buffer is full.
	e.Emit(EventWarning, nil)

	if got := len(e.Events()); got != 1 {
		t.Errorf("expected 1 buffered event, got %d", got)
	}
}

func TestEventEmitterCloseIsIdempotent(t *testing.T) {
	e := NewEventEmitter("sess-1", 4)
	e.Close()
	e.Close()
	e.Emit(EventWarning, nil) // dropped, not a panic

	if _, open := <-e.Events(); open {
		t.Error("expected closed channel")
	}
}
