package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/duet-cli/duet/llm"
)

// DefaultToolTimeout bounds a single tool invocation.
const DefaultToolTimeout = 30 * time.Second

// Executor runs tool calls against the registry. Every tool-layer failure
// (unknown tool, schema violation, handler error, timeout) is converted into
// an error ToolResult and fed back to the model; nothing escapes as a raised
// fault.
type Executor struct {
	registry   *Registry
	timeout    time.Duration
	concurrent bool
	charLimits map[string]int
	lineLimits map[string]int
	emitter    *EventEmitter
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithToolTimeout sets the per-call execution timeout.
func WithToolTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithConcurrentBatches enables order-preserving concurrent execution of
// multi-call batches.
func WithConcurrentBatches(enabled bool) ExecutorOption {
	return func(e *Executor) { e.concurrent = enabled }
}

// WithOutputLimits overrides per-tool truncation limits.
func WithOutputLimits(charLimits, lineLimits map[string]int) ExecutorOption {
	return func(e *Executor) {
		e.charLimits = charLimits
		e.lineLimits = lineLimits
	}
}

// WithExecutorEmitter attaches an event emitter for tool activity.
func WithExecutorEmitter(emitter *EventEmitter) ExecutorOption {
	return func(e *Executor) { e.emitter = emitter }
}

// NewExecutor creates an Executor over the given registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		timeout:  DefaultToolTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) emit(kind EventKind, data map[string]interface{}) {
	if e.emitter != nil {
		e.emitter.Emit(kind, data)
	}
}

// Execute runs one tool call through the full pipeline:
// lookup -> validate -> invoke under timeout -> truncate.
func (e *Executor) Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	e.emit(EventToolCallStart, map[string]interface{}{
		"tool_name": call.Name,
		"call_id":   call.ID,
	})

	def, err := e.registry.Lookup(call.Name)
	if err != nil {
		return e.errorResult(call, err)
	}

	if err := validateArguments(call.Name, def.InputSchema, call.Arguments); err != nil {
		return e.errorResult(call, err)
	}

	output, err := e.invoke(ctx, def, call)
	if err != nil {
		return e.errorResult(call, err)
	}

	truncated := TruncateToolOutput(output, call.Name, e.charLimits, e.lineLimits)

	// The event stream carries the full output; the model sees the
	// truncated version.
	e.emit(EventToolCallEnd, map[string]interface{}{
		"tool_name": call.Name,
		"call_id":   call.ID,
		"output":    output,
	})
	return llm.ToolResult{
		ToolCallID: call.ID,
		Content:    truncated,
		IsError:    false,
	}
}

// invoke runs the handler under the per-call timeout. The handler goroutine
// is given a cancellable context; a handler that ignores it may outlive the
// call, but its result is discarded.
func (e *Executor) invoke(ctx context.Context, def *ToolDefinition, call llm.ToolCall) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		output, err := def.Handler(callCtx, call.Arguments)
		done <- outcome{output, err}
	}()

	select {
	case o := <-done:
		return o.output, o.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", &ToolTimeoutError{Tool: call.Name, Timeout: e.timeout}
		}
		return "", fmt.Errorf("tool %s cancelled: %w", call.Name, callCtx.Err())
	}
}

func (e *Executor) errorResult(call llm.ToolCall, err error) llm.ToolResult {
	msg := err.Error()
	e.emit(EventToolCallEnd, map[string]interface{}{
		"tool_name": call.Name,
		"call_id":   call.ID,
		"error":     msg,
	})
	return llm.ToolResult{
		ToolCallID: call.ID,
		Content:    msg,
		IsError:    true,
	}
}

// ExecuteBatch runs every call in a batch and returns the results in request
// order. Execution is sequential unless concurrent batches are enabled; under
// concurrency, any call sharing a target path with a mutating call in the
// same batch is serialized with it so a write never races a read.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []llm.ToolCall) []llm.ToolResult {
	results := make([]llm.ToolResult, len(calls))

	if !e.concurrent || len(calls) < 2 {
		for i, call := range calls {
			results[i] = e.Execute(ctx, call)
		}
		return results
	}

	locks := e.conflictLocks(calls)

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c llm.ToolCall) {
			defer wg.Done()
			if lock := locks[idx]; lock != nil {
				lock.Lock()
				defer lock.Unlock()
			}
			results[idx] = e.Execute(ctx, c)
		}(i, call)
	}
	wg.Wait()
	return results
}

// conflictLocks assigns a shared mutex to every call whose target path is
// also touched by a mutating call in the batch.
func (e *Executor) conflictLocks(calls []llm.ToolCall) []*sync.Mutex {
	paths := make([]string, len(calls))
	mutates := make([]bool, len(calls))
	for i, call := range calls {
		paths[i] = targetPath(call.Arguments)
		if def, err := e.registry.Lookup(call.Name); err == nil {
			mutates[i] = def.Mutates
		}
	}

	contested := make(map[string]bool)
	for i, p := range paths {
		if p != "" && mutates[i] {
			contested[p] = true
		}
	}

	locks := make([]*sync.Mutex, len(calls))
	pathLocks := make(map[string]*sync.Mutex)
	for i, p := range paths {
		if p == "" || !contested[p] {
			continue
		}
		if _, ok := pathLocks[p]; !ok {
			pathLocks[p] = &sync.Mutex{}
		}
		locks[i] = pathLocks[p]
	}
	return locks
}

// targetPath extracts the "path" argument from a call payload, if present.
func targetPath(arguments json.RawMessage) string {
	var args struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return ""
	}
	return args.Path
}
