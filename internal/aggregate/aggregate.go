// Package aggregate folds per-case outcomes into per-test and per-run
// summaries. Folding is deterministic: it keys off each outcome's
// ordinal, so summaries are identical no matter the completion order of
// the workers that produced them.
package aggregate

import (
	"sort"
	"time"

	"github.com/promptsentinel/sentinel/internal/runner"
)

// TestOutcome summarizes one test across its expanded cases.
type TestOutcome struct {
	TestID  string `json:"test_id"`
	Total   int    `json:"total"`
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Errored int    `json:"errored"`
	Skipped int    `json:"skipped"`

	TotalCostUSD float64 `json:"total_cost_usd"`
	TotalTokens  int     `json:"total_tokens"`

	// Latency quantiles cover cases where the provider actually
	// responded; errored and skipped cases would skew them with zeros.
	LatencyP50 time.Duration `json:"latency_p50_ms"`
	LatencyP95 time.Duration `json:"latency_p95_ms"`
	LatencyMax time.Duration `json:"latency_max_ms"`

	Cases []runner.CaseOutcome `json:"cases"`
}

// Fold builds a TestOutcome from the outcomes of one test. Cases are
// ordered by ordinal in the result.
func Fold(testID string, outcomes []runner.CaseOutcome) TestOutcome {
	t := TestOutcome{
		TestID: testID,
		Total:  len(outcomes),
		Cases:  append([]runner.CaseOutcome(nil), outcomes...),
	}
	sort.Slice(t.Cases, func(i, j int) bool {
		return t.Cases[i].Ordinal < t.Cases[j].Ordinal
	})

	var latencies []time.Duration
	for _, c := range t.Cases {
		switch c.Status {
		case runner.StatusPassed:
			t.Passed++
		case runner.StatusFailed:
			t.Failed++
		case runner.StatusErrored:
			t.Errored++
		case runner.StatusSkipped:
			t.Skipped++
		}

		t.TotalCostUSD += c.CostUSD
		t.TotalTokens += c.InputTok + c.OutputTok

		if c.Status == runner.StatusPassed || c.Status == runner.StatusFailed {
			latencies = append(latencies, c.Latency)
		}
	}

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		t.LatencyP50 = percentile(latencies, 50)
		t.LatencyP95 = percentile(latencies, 95)
		t.LatencyMax = latencies[len(latencies)-1]
	}

	return t
}

// percentile uses nearest-rank over a sorted slice.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (len(sorted)*p + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

// RunSummary is the grand total across every test of a run.
type RunSummary struct {
	Tests []TestOutcome `json:"tests"`

	TotalCases   int     `json:"total_cases"`
	Passed       int     `json:"passed"`
	Failed       int     `json:"failed"`
	Errored      int     `json:"errored"`
	Skipped      int     `json:"skipped"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	TotalTokens  int     `json:"total_tokens"`

	Duration time.Duration `json:"duration_ms"`
}

// Ok reports whether the run should exit clean: no failed and no
// errored cases.
func (s *RunSummary) Ok() bool {
	return s.Failed == 0 && s.Errored == 0
}

// Summarize totals the per-test outcomes, preserving their order.
func Summarize(tests []TestOutcome, duration time.Duration) RunSummary {
	s := RunSummary{Tests: tests, Duration: duration}
	for _, t := range tests {
		s.TotalCases += t.Total
		s.Passed += t.Passed
		s.Failed += t.Failed
		s.Errored += t.Errored
		s.Skipped += t.Skipped
		s.TotalCostUSD += t.TotalCostUSD
		s.TotalTokens += t.TotalTokens
	}
	return s
}
