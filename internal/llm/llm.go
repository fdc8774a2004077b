// Package llm defines the completion contract used for answer generation and
// the error kinds callers branch on.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Completer generates a reply from a system prompt and a user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

var (
	// ErrTimeout is returned when generation exceeds its deadline.
	ErrTimeout = errors.New("llm: timeout")
	// ErrRateLimited is returned when the provider throttles the request.
	ErrRateLimited = errors.New("llm: rate limited")
	// ErrAuth is returned when the provider rejects credentials.
	ErrAuth = errors.New("llm: authentication failed")
	// ErrMalformedResponse is returned when the provider reply has no usable text.
	ErrMalformedResponse = errors.New("llm: malformed response")
	// ErrProvider covers every other provider failure.
	ErrProvider = errors.New("llm: provider error")
)

// Kind returns a short label for err suitable for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "provider"
	}
}

// Classify wraps err with one of the package error kinds. statusCode is the
// HTTP status reported by the provider SDK, or 0 when unknown.
func Classify(err error, statusCode int) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrAuth, err)
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
}
