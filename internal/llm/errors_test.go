package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestIsTransient_StatusCodes(t *testing.T) {
	checks := []struct {
		status int
		want   bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
	}

	for _, c := range checks {
		err := &APIError{Provider: "p", StatusCode: c.status}
		if got := IsTransient(err); got != c.want {
			t.Errorf("IsTransient(%d): got %v, want %v", c.status, got, c.want)
		}
	}
}

func TestIsTransient_ContextErrors(t *testing.T) {
	if IsTransient(context.Canceled) {
		t.Fatalf("cancellation is not retryable")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatalf("a timeout is retryable")
	}
	if IsTransient(nil) {
		t.Fatalf("nil error")
	}
}

func TestIsTransient_WrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("call failed: %w", &APIError{StatusCode: 503})
	if !IsTransient(wrapped) {
		t.Fatalf("wrapped 503 should be transient")
	}

	var opErr error = &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	if !IsTransient(opErr) {
		t.Fatalf("connection errors are transient")
	}

	if !IsTransient(timeoutErr{}) {
		t.Fatalf("net.Error timeouts are transient")
	}
	if IsTransient(errors.New("something else")) {
		t.Fatalf("unclassified errors are permanent")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestAPIError_Message(t *testing.T) {
	err := &APIError{Provider: "openai", StatusCode: 429, Message: "rate limited"}
	msg := err.Error()
	if !strings.Contains(msg, "openai") || !strings.Contains(msg, "429") || !strings.Contains(msg, "rate limited") {
		t.Fatalf("Error: %q", msg)
	}

	bare := &APIError{Provider: "webhook", Message: "boom"}
	if !strings.Contains(bare.Error(), "boom") {
		t.Fatalf("Error: %q", bare.Error())
	}
}

func TestCost(t *testing.T) {
	// gpt-4o-mini: $0.15/M input, $0.60/M output.
	got := Cost("gpt-4o-mini", 1_000_000, 1_000_000)
	if diff := got - 0.75; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("Cost: got %v, want 0.75", got)
	}
	if Cost("some-unknown-model", 1000, 1000) != 0 {
		t.Fatalf("unknown model should cost zero")
	}
	if Cost("gpt-4o", 0, 0) != 0 {
		t.Fatalf("no tokens, no cost")
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New("mystery", Options{})
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("New: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("WEBHOOK_URL", "")

	if _, err := New("openai", Options{}); err == nil {
		t.Fatalf("openai without a key should fail")
	}
	if _, err := New("anthropic", Options{}); err == nil {
		t.Fatalf("anthropic without a key should fail")
	}
	if _, err := New("webhook", Options{}); err == nil {
		t.Fatalf("webhook without a url should fail")
	}
}

func TestNew_ExplicitOptionsWin(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	p, err := New("openai", Options{APIKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Name() != "openai" {
		t.Fatalf("Name: %q", p.Name())
	}

	w, err := New("webhook", Options{WebhookURL: "http://localhost:1/x", HTTPTimeout: time.Second})
	if err != nil {
		t.Fatalf("New webhook: %v", err)
	}
	if w.Name() != "webhook" {
		t.Fatalf("Name: %q", w.Name())
	}
}
