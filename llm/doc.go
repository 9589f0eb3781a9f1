// Package llm provides a provider-agnostic model client for the agent loop.
//
// The package has three layers:
//
//   - Provider adapters: ProviderAdapter implementations that translate
//     between the unified Request/Response types and a concrete SDK
//     (AnthropicAdapter over the native messages API, GollmAdapter over
//     the gollm library for OpenAI-family providers).
//   - Retry: a generic retry helper with exponential backoff, jitter, and
//     Retry-After handling, driven by the typed error hierarchy.
//   - Client: routes requests to a registered adapter and converts
//     exhausted transient failures into ModelUnavailableError.
//
// # Quick Start
//
//	adapter := llm.NewAnthropicAdapter(os.Getenv("ANTHROPIC_API_KEY"))
//	client := llm.NewClient(llm.WithProvider("anthropic", adapter))
//
//	resp, err := client.Complete(ctx, llm.Request{
//	    Model:    "claude-sonnet-4-5",
//	    Messages: []llm.Message{llm.UserMessage("Hello")},
//	})
//	fmt.Println(resp.Text())
//
// # Errors
//
// Adapter failures are classified into a typed hierarchy (AuthenticationError,
// RateLimitError, ServerError, ...). IsRetryable reports whether the Client
// should retry; once the retry budget is exhausted the Client returns a
// ModelUnavailableError wrapping the final underlying failure.
package llm
