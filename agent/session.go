package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/duet-cli/duet/llm"
)

// State is the lifecycle state of a session.
type State string

const (
	StateAwaitingInput  State = "awaiting_input"
	StateAwaitingModel  State = "awaiting_model"
	StateExecutingTools State = "executing_tools"
	StateFatal          State = "fatal"
	StateClosed         State = "closed"
)

// ModelClient is the slice of the model client the loop depends on.
// *llm.Client satisfies it.
type ModelClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Logger is the leveled logging surface the session writes to.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Config holds per-session settings.
type Config struct {
	Model           string
	Provider        string
	SystemPrompt    string
	MaxToolRounds   int  // model<->tool round-trips allowed per user input
	EnableLoopGuard bool // steer the model when it repeats identical calls
	LoopWindow      int
	EventBuffer     int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		MaxToolRounds:   50,
		EnableLoopGuard: true,
		LoopWindow:      10,
		EventBuffer:     256,
	}
}

// Session drives the agent loop: it owns the transcript, routes model tool
// calls through the executor, and walks the state machine
// awaiting_input -> awaiting_model -> executing_tools until the model
// produces a final answer or a fatal condition ends the session.
type Session struct {
	id           string
	config       Config
	registry     *Registry
	executor     *Executor
	transcript   *Transcript
	client       ModelClient
	emitter      *EventEmitter
	log          Logger
	state        State
	modelReached bool // a model response has succeeded this session
	mu           sync.Mutex
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger attaches a logger to the session.
func WithLogger(log Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithExecutor overrides the default executor.
func WithExecutor(executor *Executor) SessionOption {
	return func(s *Session) { s.executor = executor }
}

// NewSession creates a session over the given client and registry.
func NewSession(client ModelClient, registry *Registry, config Config, opts ...SessionOption) *Session {
	id := uuid.New().String()
	if config.MaxToolRounds <= 0 {
		config.MaxToolRounds = DefaultConfig().MaxToolRounds
	}
	if config.LoopWindow <= 0 {
		config.LoopWindow = DefaultConfig().LoopWindow
	}

	s := &Session{
		id:         id,
		config:     config,
		registry:   registry,
		transcript: NewTranscript(),
		client:     client,
		emitter:    NewEventEmitter(id, config.EventBuffer),
		state:      StateAwaitingInput,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.executor == nil {
		s.executor = NewExecutor(registry, WithExecutorEmitter(s.emitter))
	} else if s.executor.emitter == nil {
		s.executor.emitter = s.emitter
	}

	s.emitter.Emit(EventSessionStart, map[string]interface{}{
		"model":    config.Model,
		"provider": config.Provider,
	})
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the event channel for the host application.
func (s *Session) Events() <-chan Event {
	return s.emitter.Events()
}

// Transcript returns the session's conversation state.
func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// Reset clears the transcript and returns the session to awaiting input.
// Fatal and closed sessions cannot be reset.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFatal || s.state == StateClosed {
		return &SessionClosedError{State: s.state}
	}
	s.transcript.Reset()
	s.state = StateAwaitingInput
	return nil
}

// Close terminates the session.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.emitter.Emit(EventSessionEnd, map[string]interface{}{
		"state": string(StateClosed),
	})
	s.emitter.Close()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()
	if prev != state {
		s.emitter.Emit(EventStateChange, map[string]interface{}{
			"from": string(prev),
			"to":   string(state),
		})
	}
}

// Submit processes one user input through the agent loop and returns the
// model's final answer for the turn. An arbitrary number of model<->tool
// round-trips may occur, bounded by MaxToolRounds; exceeding the bound is
// fatal for the session. Cancelling ctx aborts the in-flight request; tool
// mutations already applied stay recorded in the transcript.
func (s *Session) Submit(ctx context.Context, input string) (string, error) {
	s.mu.Lock()
	if s.state != StateAwaitingInput {
		state := s.state
		s.mu.Unlock()
		return "", &SessionClosedError{State: state}
	}
	s.mu.Unlock()

	s.transcript.Append(NewUserMessage(input))
	s.emitter.Emit(EventUserInput, map[string]interface{}{"content": input})
	if s.log != nil {
		s.log.Info("turn start session=%s", s.id)
	}

	rounds := 0

	for {
		if err := ctx.Err(); err != nil {
			s.setState(StateAwaitingInput)
			return "", err
		}

		s.setState(StateAwaitingModel)
		resp, err := s.complete(ctx)
		if err != nil {
			return "", s.handleModelError(err)
		}
		s.mu.Lock()
		s.modelReached = true
		s.mu.Unlock()

		calls := resp.ToolCalls()
		s.transcript.Append(NewAssistantMessage(resp.Text(), calls, resp.Usage))
		s.emitter.Emit(EventAssistantText, map[string]interface{}{
			"text":       resp.Text(),
			"tool_calls": len(calls),
		})

		if len(calls) == 0 {
			// Natural completion: the turn is done.
			s.setState(StateAwaitingInput)
			if s.log != nil {
				s.log.Info("turn done session=%s rounds=%d", s.id, rounds)
			}
			return resp.Text(), nil
		}

		if rounds >= s.config.MaxToolRounds {
			err := &TurnBudgetExceededError{Limit: s.config.MaxToolRounds}
			s.emitter.Emit(EventBudgetExceeded, map[string]interface{}{
				"limit": s.config.MaxToolRounds,
			})
			if s.log != nil {
				s.log.Error("session=%s %v", s.id, err)
			}
			s.setState(StateFatal)
			return "", err
		}
		rounds++

		s.setState(StateExecutingTools)
		results := s.executor.ExecuteBatch(ctx, calls)
		for _, result := range results {
			s.transcript.Append(NewToolMessage(result))
		}

		if s.config.EnableLoopGuard && detectLoop(s.transcript.Snapshot(), s.config.LoopWindow) {
			notice := "The last several tool calls repeat an identical pattern. Try a different approach or give a final answer."
			s.transcript.Append(NewSteeringMessage(notice))
			s.emitter.Emit(EventLoopDetected, map[string]interface{}{"message": notice})
			if s.log != nil {
				s.log.Warn("loop detected session=%s window=%d", s.id, s.config.LoopWindow)
			}
		}
	}
}

// complete sends the transcript plus the full tool declaration list to the
// model client.
func (s *Session) complete(ctx context.Context) (*llm.Response, error) {
	messages := s.transcript.ToMessages()
	if s.config.SystemPrompt != "" {
		messages = append([]llm.Message{llm.SystemMessage(s.config.SystemPrompt)}, messages...)
	}

	s.emitter.Emit(EventModelRequest, map[string]interface{}{
		"messages": len(messages),
	})
	return s.client.Complete(ctx, llm.Request{
		Model:    s.config.Model,
		Provider: s.config.Provider,
		Messages: messages,
		Tools:    s.registry.Definitions(),
	})
}

// handleModelError applies the session fatality rules. Authentication
// failures end the session. Exhausted retries abort the current turn but
// leave the session usable, unless the model has never been reached (a
// startup failure), which is fatal. Everything else aborts the turn only.
func (s *Session) handleModelError(err error) error {
	s.emitter.Emit(EventError, map[string]interface{}{"error": err.Error()})
	if s.log != nil {
		s.log.Error("model error session=%s: %v", s.id, err)
	}

	var authErr *llm.AuthenticationError
	if errors.As(err, &authErr) {
		s.setState(StateFatal)
		return err
	}

	var unavailable *llm.ModelUnavailableError
	if errors.As(err, &unavailable) {
		s.mu.Lock()
		reached := s.modelReached
		s.mu.Unlock()
		if !reached {
			s.setState(StateFatal)
			return err
		}
	}

	s.setState(StateAwaitingInput)
	return err
}
