package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// APIError represents a non-2xx response from a provider endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Status     string
	Message    string
}

// Error formats the API error string.
func (e *APIError) Error() string {
	if e == nil {
		return "llm: api error <nil>"
	}

	status := strings.TrimSpace(e.Status)
	if status == "" && e.StatusCode != 0 {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}

	msg := strings.TrimSpace(e.Message)
	switch {
	case status != "" && msg != "":
		return fmt.Sprintf("llm: %s: api error (%s): %s", e.Provider, status, msg)
	case status != "":
		return fmt.Sprintf("llm: %s: api error (%s)", e.Provider, status)
	default:
		return fmt.Sprintf("llm: %s: api error: %s", e.Provider, msg)
	}
}

// IsTransient reports whether a provider failure is safe to retry:
// rate limiting, 5xx responses, timeouts, and connection-level errors.
// Auth failures and malformed requests (other 4xx) are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return apiErr.StatusCode >= 500 && apiErr.StatusCode <= 599
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
