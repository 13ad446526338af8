package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// TransientError represents an upstream failure that a caller may retry.
// This layer never retries on its own; the classification is advisory.
type TransientError struct {
	Err        error
	StatusCode int
	RetryAfter int // seconds, from the Retry-After header when present
	Message    string
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError represents an upstream failure that retrying will not fix.
type PermanentError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var transient *TransientError
	return errors.As(err, &transient)
}

// mapHTTPError converts a non-2xx provider response into a classified error
// with a human-readable message.
func mapHTTPError(statusCode int, body []byte, header http.Header) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 512 {
		detail = detail[:512] + "..."
	}
	base := fmt.Errorf("upstream returned %d: %s", statusCode, detail)

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &PermanentError{
			Err:        base,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("authentication failed (%d): check the API key", statusCode),
		}
	case statusCode == http.StatusTooManyRequests:
		retryAfter := 0
		if v := header.Get("Retry-After"); v != "" {
			if seconds, err := strconv.Atoi(v); err == nil {
				retryAfter = seconds
			}
		}
		return &TransientError{
			Err:        base,
			StatusCode: statusCode,
			RetryAfter: retryAfter,
			Message:    "rate limited by the generation provider",
		}
	case statusCode >= 500:
		return &TransientError{
			Err:        base,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("generation provider unavailable (%d)", statusCode),
		}
	default:
		return &PermanentError{
			Err:        base,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("generation request rejected (%d): %s", statusCode, detail),
		}
	}
}

// wrapRequestError classifies transport-level failures (DNS, connect,
// timeout) before they leave the client.
func wrapRequestError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err, Message: "generation request timed out or was canceled"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientError{Err: err, Message: fmt.Sprintf("network error calling generation provider: %v", err)}
	}
	return &TransientError{Err: err, Message: fmt.Sprintf("generation request failed: %v", err)}
}
