// Package retry wraps provider calls with bounded attempts and
// exponential backoff on transient failures. The policy is explicit
// state rather than a hidden loop so attempt counts and delay schedules
// are testable without real sleeps.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/promptsentinel/sentinel/internal/llm"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond

	maxDelay   = 60 * time.Second
	jitterFrac = 0.2
)

// Policy bounds retries of a provider call. Only failures classified
// transient by llm.IsTransient are retried; the first permanent failure
// is final.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// AttemptTimeout bounds each individual attempt; a timed-out
	// attempt is a transient failure. Zero means no per-attempt bound.
	AttemptTimeout time.Duration
	// Jitter spreads backoff by up to ±20% to avoid retry storms
	// across concurrently scheduled cases.
	Jitter bool

	// Sleep is injected by tests; nil sleeps on a timer honoring ctx.
	Sleep func(ctx context.Context, d time.Duration) error
	// Rand is the jitter source; nil uses the shared source.
	Rand *rand.Rand
}

// Default returns the policy used when the test file does not override
// retry behavior.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Jitter:      true,
	}
}

// Attempt records one provider call attempt, successful or not. Token
// counts from failed attempts still feed cost accounting.
type Attempt struct {
	Latency      time.Duration
	InputTokens  int
	OutputTokens int
	Err          error
}

// Outcome is the final result of a retried call: either a Completion or
// an Err, plus the full attempt history for diagnostics.
type Outcome struct {
	Completion *llm.Completion
	Attempts   []Attempt
	Err        error
}

// AttemptCount reports how many provider calls were issued.
func (o *Outcome) AttemptCount() int {
	return len(o.Attempts)
}

// Do runs call under the policy. On success only the winning attempt's
// metrics are carried on the Completion; earlier attempts remain in the
// history. Cancellation of ctx stops further attempts immediately.
func (p Policy) Do(ctx context.Context, call func(ctx context.Context) (*llm.Completion, error)) Outcome {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var out Outcome
	for k := 1; ; k++ {
		if err := ctx.Err(); err != nil {
			out.Err = err
			return out
		}

		comp, latency, err := p.attempt(ctx, call)

		at := Attempt{Latency: latency, Err: err}
		if comp != nil {
			at.InputTokens = comp.InputTokens
			at.OutputTokens = comp.OutputTokens
		}
		out.Attempts = append(out.Attempts, at)

		if err == nil {
			if comp == nil {
				out.Err = errors.New("retry: provider returned nil completion")
				return out
			}
			comp.Latency = latency
			out.Completion = comp
			return out
		}

		// The run was cancelled, the failure is permanent, or the
		// attempt budget is spent.
		if ctx.Err() != nil || !llm.IsTransient(err) || k >= maxAttempts {
			out.Err = err
			return out
		}

		if err := p.sleep(ctx, p.Backoff(k+1)); err != nil {
			out.Err = err
			return out
		}
	}
}

func (p Policy) attempt(ctx context.Context, call func(ctx context.Context) (*llm.Completion, error)) (*llm.Completion, time.Duration, error) {
	attemptCtx := ctx
	if p.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		defer cancel()
	}

	start := time.Now()
	comp, err := call(attemptCtx)
	return comp, time.Since(start), err
}

// Backoff returns the delay before attempt k (k >= 2):
// BaseDelay * 2^(k-2), capped, with optional bounded uniform jitter.
func (p Policy) Backoff(k int) time.Duration {
	if k < 2 || p.BaseDelay <= 0 {
		return 0
	}

	d := p.BaseDelay
	for i := 2; i < k && d < maxDelay; i++ {
		d *= 2
	}
	if d > maxDelay {
		d = maxDelay
	}

	if p.Jitter {
		f := rand.Float64
		if p.Rand != nil {
			f = p.Rand.Float64
		}
		d += time.Duration((f()*2 - 1) * jitterFrac * float64(d))
	}
	return d
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
