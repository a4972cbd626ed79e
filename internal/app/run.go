// Package app orchestrates a full run: load the test file, validate it,
// expand every test, schedule the cases, aggregate, and persist. Both
// one-shot runs and watch mode go through ExecuteRun so they cannot
// drift apart.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/promptsentinel/sentinel/internal/aggregate"
	"github.com/promptsentinel/sentinel/internal/config"
	"github.com/promptsentinel/sentinel/internal/llm"
	"github.com/promptsentinel/sentinel/internal/retry"
	"github.com/promptsentinel/sentinel/internal/runner"
	"github.com/promptsentinel/sentinel/internal/snapshot"
	"github.com/promptsentinel/sentinel/internal/store"
	"github.com/promptsentinel/sentinel/internal/testcase"
)

// ValidationError carries every problem found in a test file, so the
// user fixes the whole file in one pass.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("app: %s has %d validation problem(s)", e.Path, len(e.Problems))
}

// RunOptions configures one execution of a test file.
type RunOptions struct {
	ConfigPath string
	// Filter keeps only tests whose ID contains the substring.
	Filter          string
	Concurrency     int
	Timeout         time.Duration
	UpdateSnapshots bool
	SnapshotDir     string
	SkipValidation  bool

	// ProviderOverride handles every case regardless of configured
	// provider names. Used by watch re-runs with a warmed provider and
	// by tests.
	ProviderOverride llm.Provider

	// History receives the run when non-nil; persistence failures are
	// reported through RunResult, never by failing the run.
	History store.RunWriter
}

// RunResult is the outcome of ExecuteRun.
type RunResult struct {
	Summary aggregate.RunSummary
	// RunID is set when the run was persisted.
	RunID string
	// HistoryErr reports a failed persistence attempt.
	HistoryErr error
}

// ExecuteRun loads, validates, expands, runs, aggregates, and persists
// one pass over the test file.
func ExecuteRun(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if strings.TrimSpace(opts.ConfigPath) == "" {
		opts.ConfigPath = config.DefaultPath
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if !opts.SkipValidation {
		if problems := config.Validate(cfg); len(problems) > 0 {
			return nil, &ValidationError{Path: opts.ConfigPath, Problems: problems}
		}
	}

	tests := filterTests(cfg.Tests, opts.Filter)
	if len(tests) == 0 {
		return nil, fmt.Errorf("app: no tests match filter %q", opts.Filter)
	}

	providers, err := resolveProviders(cfg, tests, opts)
	if err != nil {
		return nil, err
	}

	snapDir := opts.SnapshotDir
	if snapDir == "" {
		snapDir = snapshot.DefaultDir
	}

	baseDir := filepath.Dir(opts.ConfigPath)
	startedAt := time.Now()

	// Expand everything up front so one scheduler pass covers the whole
	// run; per-test slices index into the flat case list.
	var allCases []testcase.Case
	type span struct {
		testID     string
		start, end int
		expandErr  error
	}
	spans := make([]span, 0, len(tests))
	for i := range tests {
		def := &tests[i]
		cases, err := testcase.Expand(def, cfg.ProviderFor(def), cfg.ModelFor(def), baseDir)
		if err != nil {
			spans = append(spans, span{testID: def.ID, expandErr: err})
			continue
		}
		spans = append(spans, span{testID: def.ID, start: len(allCases), end: len(allCases) + len(cases)})
		allCases = append(allCases, cases...)
	}

	outcomes := runner.Run(ctx, allCases, runner.Options{
		Provider:        opts.ProviderOverride,
		Providers:       providers,
		Policy:          retry.Default(),
		Snapshots:       snapshot.NewDirStore(filepath.Join(baseDir, snapDir)),
		UpdateSnapshots: opts.UpdateSnapshots,
		Temperature:     cfg.Defaults.Temperature,
		Concurrency:     opts.Concurrency,
		Timeout:         opts.Timeout,
	})

	testOutcomes := make([]aggregate.TestOutcome, 0, len(spans))
	for _, sp := range spans {
		if sp.expandErr != nil {
			// A broken bulk source fails the whole test as a single
			// errored case; sibling tests still ran.
			testOutcomes = append(testOutcomes, aggregate.Fold(sp.testID, []runner.CaseOutcome{{
				TestID:  sp.testID,
				Ordinal: 0,
				Status:  runner.StatusErrored,
				Err:     sp.expandErr.Error(),
			}}))
			continue
		}
		testOutcomes = append(testOutcomes, aggregate.Fold(sp.testID, outcomes[sp.start:sp.end]))
	}

	res := &RunResult{
		Summary: aggregate.Summarize(testOutcomes, time.Since(startedAt)),
	}

	if opts.History != nil {
		res.RunID, res.HistoryErr = saveRun(ctx, opts.History, opts.ConfigPath, startedAt, &res.Summary)
	}
	return res, nil
}

func filterTests(tests []config.TestDef, filter string) []config.TestDef {
	if strings.TrimSpace(filter) == "" {
		return tests
	}
	var out []config.TestDef
	for _, t := range tests {
		if strings.Contains(t.ID, filter) {
			out = append(out, t)
		}
	}
	return out
}

// resolveProviders builds one client per distinct provider name used by
// the selected tests. With an override in place nothing is resolved, so
// API keys are not required.
func resolveProviders(cfg *config.Config, tests []config.TestDef, opts RunOptions) (map[string]llm.Provider, error) {
	if opts.ProviderOverride != nil {
		return nil, nil
	}

	out := make(map[string]llm.Provider)
	for i := range tests {
		name := cfg.ProviderFor(&tests[i])
		if _, ok := out[name]; ok {
			continue
		}
		p, err := llm.New(name, llm.Options{HTTPTimeout: opts.Timeout})
		if err != nil {
			return nil, err
		}
		out[name] = p
	}
	return out, nil
}

func saveRun(ctx context.Context, writer store.RunWriter, sourceFile string, startedAt time.Time, summary *aggregate.RunSummary) (string, error) {
	finishedAt := startedAt.Add(summary.Duration)
	runID := store.NewID()

	rec := &store.RunRecord{
		ID:           runID,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		SourceFile:   sourceFile,
		TotalTests:   len(summary.Tests),
		TotalCases:   summary.TotalCases,
		PassedCases:  summary.Passed,
		FailedCases:  summary.Failed,
		ErroredCases: summary.Errored,
		SkippedCases: summary.Skipped,
		TotalCostUSD: summary.TotalCostUSD,
		TotalTokens:  summary.TotalTokens,
	}
	if err := writer.SaveRun(ctx, rec); err != nil {
		return "", fmt.Errorf("app: save run: %w", err)
	}

	for _, t := range summary.Tests {
		caseRecords := make([]store.CaseRecord, 0, len(t.Cases))
		for _, c := range t.Cases {
			cr := store.CaseRecord{
				Ordinal:   c.Ordinal,
				Input:     c.InputLabel,
				Status:    string(c.Status),
				LatencyMs: c.Latency.Milliseconds(),
				Attempts:  c.Attempts,
				Tokens:    c.InputTok + c.OutputTok,
				CostUSD:   c.CostUSD,
				Error:     c.Err,
			}
			for _, v := range c.Verdicts {
				if !v.Passed {
					cr.FailedAssertions = append(cr.FailedAssertions, v.Label)
				}
			}
			caseRecords = append(caseRecords, cr)
		}

		rec := &store.TestRecord{
			ID:           store.NewID(),
			RunID:        runID,
			TestID:       t.TestID,
			TotalCases:   t.Total,
			PassedCases:  t.Passed,
			FailedCases:  t.Failed,
			ErroredCases: t.Errored,
			SkippedCases: t.Skipped,
			LatencyP50Ms: t.LatencyP50.Milliseconds(),
			LatencyP95Ms: t.LatencyP95.Milliseconds(),
			LatencyMaxMs: t.LatencyMax.Milliseconds(),
			CostUSD:      t.TotalCostUSD,
			Tokens:       t.TotalTokens,
			CreatedAt:    finishedAt,
			CaseResults:  caseRecords,
		}
		if err := writer.SaveTestResult(ctx, rec); err != nil {
			return "", fmt.Errorf("app: save test result: %w", err)
		}
	}

	return runID, nil
}

// Validate loads and validates a test file without running anything.
func Validate(path string) ([]string, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return config.Validate(cfg), nil
}
