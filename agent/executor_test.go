package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/duet-cli/duet/llm"
)

func TestExecutorUnknownTool(t *testing.T) {
	e := NewExecutor(NewRegistry())
	result := e.Execute(context.Background(), llm.ToolCall{
		ID: "call_1", Name: "run_shell", Arguments: json.RawMessage(`{}`),
	})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(result.Content, "unknown tool") {
		t.Errorf("unexpected message: %q", result.Content)
	}
	if result.ToolCallID != "call_1" {
		t.Errorf("result lost call correlation: %q", result.ToolCallID)
	}
}

func TestExecutorSchemaValidation(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ToolDefinition{
		Name: "read_file",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"path"},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			t.Error("handler must not run on invalid arguments")
			return "", nil
		},
	}); err != nil {
		t.Fatal(err)
	}
	e := NewExecutor(r)

	// Missing required field.
	result := e.Execute(context.Background(), llm.ToolCall{
		ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{}`),
	})
	if !result.IsError || !strings.Contains(result.Content, "missing required field") {
		t.Errorf("unexpected result: %+v", result)
	}

	// Wrong type.
	result = e.Execute(context.Background(), llm.ToolCall{
		ID: "call_2", Name: "read_file", Arguments: json.RawMessage(`{"path": 42}`),
	})
	if !result.IsError || !strings.Contains(result.Content, "field path") {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestExecutorHandlerErrorBecomesResult(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ToolDefinition{
		Name: "read_file",
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return "", fmt.Errorf("open /tmp/missing: no such file")
		},
	}); err != nil {
		t.Fatal(err)
	}
	e := NewExecutor(r)

	result := e.Execute(context.Background(), llm.ToolCall{
		ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{}`),
	})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(result.Content, "no such file") {
		t.Errorf("unexpected message: %q", result.Content)
	}
}

func TestExecutorTimeout(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ToolDefinition{
		Name: "slow",
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			select {
			case <-time.After(5 * time.Second):
				return "too late", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}); err != nil {
		t.Fatal(err)
	}
	e := NewExecutor(r, WithToolTimeout(20*time.Millisecond))

	result := e.Execute(context.Background(), llm.ToolCall{
		ID: "call_1", Name: "slow", Arguments: json.RawMessage(`{}`),
	})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(result.Content, "timed out") {
		t.Errorf("unexpected message: %q", result.Content)
	}
}

func TestExecutorTruncatesOutput(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ToolDefinition{
		Name: "read_file",
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return strings.Repeat("x", 200), nil
		},
	}); err != nil {
		t.Fatal(err)
	}
	e := NewExecutor(r, WithOutputLimits(map[string]int{"read_file": 100}, nil))

	result := e.Execute(context.Background(), llm.ToolCall{
		ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{}`),
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content)
	}
	if !strings.Contains(result.Content, "truncated") {
		t.Error("expected truncation marker in output")
	}
}

// Results always land in request order, sequentially or concurrently.
func TestExecuteBatchPreservesOrder(t *testing.T) {
	for _, concurrent := range []bool{false, true} {
		name := "sequential"
		if concurrent {
			name = "concurrent"
		}
		t.Run(name, func(t *testing.T) {
			r := NewRegistry()
			if err := r.Register(ToolDefinition{
				Name: "echo",
				Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
					var a struct {
						Value string `json:"value"`
					}
					_ = json.Unmarshal(args, &a)
					// Later calls finish first under concurrency.
					if a.Value == "first" {
						time.Sleep(30 * time.Millisecond)
					}
					return a.Value, nil
				},
			}); err != nil {
				t.Fatal(err)
			}
			e := NewExecutor(r, WithConcurrentBatches(concurrent))

			calls := []llm.ToolCall{
				{ID: "call_1", Name: "echo", Arguments: json.RawMessage(`{"value": "first"}`)},
				{ID: "call_2", Name: "echo", Arguments: json.RawMessage(`{"value": "second"}`)},
				{ID: "call_3", Name: "echo", Arguments: json.RawMessage(`{"value": "third"}`)},
			}
			results := e.ExecuteBatch(context.Background(), calls)
			if len(results) != 3 {
				t.Fatalf("expected 3 results, got %d", len(results))
			}
			for i, want := range []string{"first", "second", "third"} {
				if results[i].Content != want {
					t.Errorf("result %d: expected %q, got %q", i, want, results[i].Content)
				}
				if results[i].ToolCallID != calls[i].ID {
					t.Errorf("result %d: call id %q does not match request %q", i, results[i].ToolCallID, calls[i].ID)
				}
			}
		})
	}
}

// A mutating call sharing a path with another call in the batch is serialized
// with it.
func TestExecuteBatchSerializesPathConflicts(t *testing.T) {
	var mu sync.Mutex
	active := 0
	maxActive := 0

	track := func() func() {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		return func() {
			mu.Lock()
			active--
			mu.Unlock()
		}
	}

	r := NewRegistry()
	if err := r.Register(ToolDefinition{
		Name: "read_file",
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			defer track()()
			time.Sleep(10 * time.Millisecond)
			return "contents", nil
		},
	}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(ToolDefinition{
		Name:    "write_file",
		Mutates: true,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			defer track()()
			time.Sleep(10 * time.Millisecond)
			return "written", nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	e := NewExecutor(r, WithConcurrentBatches(true))
	calls := []llm.ToolCall{
		{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{"path": "a.txt"}`)},
		{ID: "call_2", Name: "write_file", Arguments: json.RawMessage(`{"path": "a.txt", "content": "x"}`)},
	}
	results := e.ExecuteBatch(context.Background(), calls)

	if maxActive > 1 {
		t.Errorf("conflicting calls ran concurrently (max active = %d)", maxActive)
	}
	if results[0].Content != "contents" || results[1].Content != "written" {
		t.Errorf("unexpected results: %+v", results)
	}
}
