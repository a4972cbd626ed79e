package llm

import (
	"context"
	"time"
)

// Request is a single completion request for one rendered prompt.
type Request struct {
	Prompt      string
	Model       string
	Temperature float64
}

// Completion is the provider's answer to one Request.
// Latency is filled in by the caller that timed the call.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// Provider is the single capability the engine depends on. Concrete
// adapters (OpenAI, Anthropic, webhook) are interchangeable behind it.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
}
