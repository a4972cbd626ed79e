// Package runner schedules expanded test cases across a bounded worker
// pool and evaluates their assertions. Results come back indexed by
// ordinal, so output order never depends on concurrency or provider
// latency.
package runner

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/promptsentinel/sentinel/internal/assertion"
	"github.com/promptsentinel/sentinel/internal/llm"
	"github.com/promptsentinel/sentinel/internal/retry"
	"github.com/promptsentinel/sentinel/internal/snapshot"
	"github.com/promptsentinel/sentinel/internal/testcase"
)

// DefaultConcurrency bounds the number of in-flight provider calls when
// Options.Concurrency is unset.
const DefaultConcurrency = 5

// Status classifies how a case ended.
type Status string

const (
	// StatusPassed: the provider responded and every assertion held.
	StatusPassed Status = "passed"
	// StatusFailed: the provider responded but at least one assertion failed.
	StatusFailed Status = "failed"
	// StatusErrored: the case never produced an evaluable response —
	// template failure, exhausted retries, or a permanent provider error.
	StatusErrored Status = "errored"
	// StatusSkipped: the run was cancelled before the case started.
	StatusSkipped Status = "skipped"
)

// CaseOutcome is the full record of one executed case.
type CaseOutcome struct {
	TestID     string              `json:"test_id"`
	Ordinal    int                 `json:"ordinal"`
	InputLabel string              `json:"input,omitempty"`
	Status     Status              `json:"status"`
	Output     string              `json:"output,omitempty"`
	Latency    time.Duration       `json:"latency_ms"`
	InputTok   int                 `json:"input_tokens"`
	OutputTok  int                 `json:"output_tokens"`
	CostUSD    float64             `json:"cost_usd"`
	Attempts   int                 `json:"attempts"`
	Verdicts   []assertion.Verdict `json:"assertions,omitempty"`
	Err        string              `json:"error,omitempty"`
}

// Options configures a run.
type Options struct {
	// Provider handles every case whose provider name has no entry in
	// Providers. Single-provider runs set only this.
	Provider llm.Provider
	// Providers routes cases by their provider name.
	Providers map[string]llm.Provider
	Policy    retry.Policy
	// Snapshots backs snapshot assertions; nil disables them with a
	// failed verdict rather than a crash.
	Snapshots       snapshot.Store
	UpdateSnapshots bool
	// Temperature applies to every provider call of the run.
	Temperature float64
	Concurrency int
	// Timeout bounds each case end to end, across all retry attempts.
	Timeout time.Duration
}

// Run executes every case and returns outcomes positionally aligned
// with the input slice. All assertions of a case are evaluated even
// after the first failure, so one run reports every broken expectation.
func Run(ctx context.Context, cases []testcase.Case, opts Options) []CaseOutcome {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	outcomes := make([]CaseOutcome, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range cases {
		i, c := i, c
		g.Go(func() error {
			outcomes[i] = runCase(gctx, c, opts)
			return nil
		})
	}
	g.Wait()

	return outcomes
}

func runCase(ctx context.Context, c testcase.Case, opts Options) CaseOutcome {
	out := CaseOutcome{
		TestID:     c.TestID,
		Ordinal:    c.Ordinal,
		InputLabel: c.InputLabel(),
	}

	// Cases that failed during expansion carry their error and are
	// never dispatched to the provider.
	if c.Err != nil {
		out.Status = StatusErrored
		out.Err = c.Err.Error()
		return out
	}

	if ctx.Err() != nil {
		out.Status = StatusSkipped
		out.Err = ctx.Err().Error()
		return out
	}

	provider := opts.Provider
	if p, ok := opts.Providers[c.Provider]; ok {
		provider = p
	}
	if provider == nil {
		out.Status = StatusErrored
		out.Err = "no provider configured for " + c.Provider
		return out
	}

	caseCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		caseCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	res := opts.Policy.Do(caseCtx, func(ctx context.Context) (*llm.Completion, error) {
		return provider.Complete(ctx, llm.Request{
			Prompt:      c.Prompt,
			Model:       c.Model,
			Temperature: opts.Temperature,
		})
	})

	out.Attempts = res.AttemptCount()
	for _, at := range res.Attempts {
		out.CostUSD += llm.Cost(c.Model, at.InputTokens, at.OutputTokens)
	}

	if res.Err != nil {
		out.Status = StatusErrored
		out.Err = res.Err.Error()
		out.Verdicts = []assertion.Verdict{{
			Label:  "provider",
			Passed: false,
			Detail: res.Err.Error(),
		}}
		return out
	}

	comp := res.Completion
	out.Output = comp.Text
	out.Latency = comp.Latency
	out.InputTok = comp.InputTokens
	out.OutputTok = comp.OutputTokens

	ectx := assertion.Context{
		Response:        comp.Text,
		Latency:         comp.Latency,
		Key:             snapshot.Key{TestID: c.TestID, Ordinal: c.Ordinal},
		Snapshots:       opts.Snapshots,
		UpdateSnapshots: opts.UpdateSnapshots,
	}

	out.Status = StatusPassed
	for _, a := range c.Assertions {
		spec, err := assertion.ParseSpec(a.Kind, a.Value)
		var v assertion.Verdict
		if err != nil {
			v = assertion.Verdict{
				Label:  a.Kind,
				Passed: false,
				Detail: "config error: " + err.Error(),
			}
		} else {
			v = assertion.Evaluate(spec, ectx)
		}
		if !v.Passed {
			out.Status = StatusFailed
		}
		out.Verdicts = append(out.Verdicts, v)
	}

	return out
}
