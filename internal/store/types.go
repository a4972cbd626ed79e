package store

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunWriter defines persistence for run summaries and per-test results.
type RunWriter interface {
	SaveRun(ctx context.Context, run *RunRecord) error
	SaveTestResult(ctx context.Context, result *TestRecord) error
}

// RunReader defines read access to run history.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)
	GetTestResults(ctx context.Context, runID string) ([]*TestRecord, error)
}

// Analytics defines query helpers over historical results.
type Analytics interface {
	GetTestHistory(ctx context.Context, testID string, limit int) ([]*TestRecord, error)
}

// Store defines persistence for runs and test results.
type Store interface {
	RunWriter
	RunReader
	Analytics
	Close() error
}

// RunRecord stores a single run summary.
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	SourceFile   string
	TotalTests   int
	TotalCases   int
	PassedCases  int
	FailedCases  int
	ErroredCases int
	SkippedCases int
	TotalCostUSD float64
	TotalTokens  int
}

// TestRecord stores the aggregated results of one test within a run.
type TestRecord struct {
	ID           string
	RunID        string
	TestID       string
	TotalCases   int
	PassedCases  int
	FailedCases  int
	ErroredCases int
	SkippedCases int
	LatencyP50Ms int64
	LatencyP95Ms int64
	LatencyMaxMs int64
	CostUSD      float64
	Tokens       int
	CreatedAt    time.Time
	CaseResults  []CaseRecord // JSON serialized
}

// CaseRecord stores a single case result.
type CaseRecord struct {
	Ordinal          int      `json:"ordinal"`
	Input            string   `json:"input,omitempty"`
	Status           string   `json:"status"`
	LatencyMs        int64    `json:"latency_ms"`
	Attempts         int      `json:"attempts"`
	Tokens           int      `json:"tokens"`
	CostUSD          float64  `json:"cost_usd"`
	Error            string   `json:"error,omitempty"`
	FailedAssertions []string `json:"failed_assertions,omitempty"`
}

// RunFilter filters run listings.
type RunFilter struct {
	TestID string
	Since  time.Time
	Until  time.Time
	Limit  int
}

// NewID returns a lexicographically sortable record id; recency ordering
// in the database falls out of primary-key ordering.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
