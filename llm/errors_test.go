package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFromStatusCode(t *testing.T) {
	cases := []struct {
		status    int
		wantType  string
		retryable bool
	}{
		{400, "InvalidRequestError", false},
		{401, "AuthenticationError", false},
		{403, "AccessDeniedError", false},
		{408, "RequestTimeoutError", true},
		{413, "ContextLengthError", false},
		{422, "InvalidRequestError", false},
		{429, "RateLimitError", true},
		{500, "ServerError", true},
		{502, "ServerError", true},
		{503, "ServerError", true},
		{529, "ProviderError", true},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			err := ErrorFromStatusCode(tc.status, "boom", "anthropic", nil)
			if got := typeName(err); got != tc.wantType {
				t.Errorf("status %d: got %s, want %s", tc.status, got, tc.wantType)
			}
			if got := IsRetryable(err); got != tc.retryable {
				t.Errorf("status %d: IsRetryable = %v, want %v", tc.status, got, tc.retryable)
			}
		})
	}
}

func typeName(err error) string {
	switch err.(type) {
	case *InvalidRequestError:
		return "InvalidRequestError"
	case *AuthenticationError:
		return "AuthenticationError"
	case *AccessDeniedError:
		return "AccessDeniedError"
	case *RequestTimeoutError:
		return "RequestTimeoutError"
	case *ContextLengthError:
		return "ContextLengthError"
	case *RateLimitError:
		return "RateLimitError"
	case *ServerError:
		return "ServerError"
	case *ProviderError:
		return "ProviderError"
	default:
		return fmt.Sprintf("%T", err)
	}
}

func TestErrorFromStatusCodeCarriesRetryAfter(t *testing.T) {
	after := 12.5
	err := ErrorFromStatusCode(429, "slow down", "openai", &after)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.RetryAfter == nil || *rl.RetryAfter != 12.5 {
		t.Errorf("expected RetryAfter 12.5, got %v", rl.RetryAfter)
	}
	if rl.Provider != "openai" {
		t.Errorf("expected provider openai, got %q", rl.Provider)
	}
}

func TestIsRetryableSpecialCases(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil error should not be retryable")
	}
	unavailable := &ModelUnavailableError{
		ClientError: ClientError{Message: "retries exhausted"},
		Attempts:    3,
	}
	if IsRetryable(unavailable) {
		t.Error("ModelUnavailableError must not be retried again")
	}
	abort := &AbortError{ClientError: ClientError{Message: "cancelled"}}
	if IsRetryable(abort) {
		t.Error("AbortError should not be retryable")
	}
	if !IsRetryable(errors.New("mystery failure")) {
		t.Error("unknown errors default to retryable")
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	netErr := &NetworkError{ClientError: ClientError{Message: "request failed", Cause: cause}}
	if !errors.Is(netErr, cause) {
		t.Error("expected errors.Is to see through to the cause")
	}
}

func TestModelUnavailableErrorMessage(t *testing.T) {
	err := &ModelUnavailableError{
		ClientError: ClientError{Message: "retries exhausted", Cause: errors.New("503")},
		Attempts:    3,
	}
	want := "model unavailable after 3 attempts: 503"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
