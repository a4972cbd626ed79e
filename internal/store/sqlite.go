package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const defaultHistoryLimit = 20

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertRunStmt   *sql.Stmt
	insertTestStmt  *sql.Stmt
	getRunStmt      *sql.Stmt
	testsByRunStmt  *sql.Stmt
	testHistoryStmt *sql.Stmt
}

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection to :memory: is a separate database;
		// a single connection keeps the schema visible everywhere.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := st.prepareStatements(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			source_file TEXT NOT NULL,
			total_tests INTEGER NOT NULL,
			total_cases INTEGER NOT NULL,
			passed_cases INTEGER NOT NULL,
			failed_cases INTEGER NOT NULL,
			errored_cases INTEGER NOT NULL,
			skipped_cases INTEGER NOT NULL,
			total_cost_usd REAL NOT NULL,
			total_tokens INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS test_results (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			test_id TEXT NOT NULL,
			total_cases INTEGER NOT NULL,
			passed_cases INTEGER NOT NULL,
			failed_cases INTEGER NOT NULL,
			errored_cases INTEGER NOT NULL,
			skipped_cases INTEGER NOT NULL,
			latency_p50_ms INTEGER NOT NULL,
			latency_p95_ms INTEGER NOT NULL,
			latency_max_ms INTEGER NOT NULL,
			cost_usd REAL NOT NULL,
			tokens INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			case_results BLOB NOT NULL,
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_test_results_run_id ON test_results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_test_results_test_id ON test_results(test_id, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertRunStmt,
			query: `
				INSERT INTO runs (
					id, started_at, finished_at, source_file, total_tests, total_cases,
					passed_cases, failed_cases, errored_cases, skipped_cases, total_cost_usd, total_tokens
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert run: %w",
		},
		{
			dst: &s.insertTestStmt,
			query: `
				INSERT INTO test_results (
					id, run_id, test_id, total_cases, passed_cases, failed_cases, errored_cases,
					skipped_cases, latency_p50_ms, latency_p95_ms, latency_max_ms, cost_usd, tokens,
					created_at, case_results
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert test result: %w",
		},
		{
			dst: &s.getRunStmt,
			query: `
				SELECT id, started_at, finished_at, source_file, total_tests, total_cases,
					passed_cases, failed_cases, errored_cases, skipped_cases, total_cost_usd, total_tokens
				FROM runs WHERE id = ?
			`,
			errFmt: "store: prepare get run: %w",
		},
		{
			dst: &s.testsByRunStmt,
			query: `
				SELECT id, run_id, test_id, total_cases, passed_cases, failed_cases, errored_cases,
					skipped_cases, latency_p50_ms, latency_p95_ms, latency_max_ms, cost_usd, tokens,
					created_at, case_results
				FROM test_results
				WHERE run_id = ?
				ORDER BY created_at ASC, test_id ASC
			`,
			errFmt: "store: prepare get test results: %w",
		},
		{
			dst: &s.testHistoryStmt,
			query: `
				SELECT id, run_id, test_id, total_cases, passed_cases, failed_cases, errored_cases,
					skipped_cases, latency_p50_ms, latency_p95_ms, latency_max_ms, cost_usd, tokens,
					created_at, case_results
				FROM test_results
				WHERE test_id = ?
				ORDER BY created_at DESC
				LIMIT ?
			`,
			errFmt: "store: prepare test history: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.insertRunStmt,
		s.insertTestStmt,
		s.getRunStmt,
		s.testsByRunStmt,
		s.testHistoryStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun persists a run summary.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if run == nil {
		return errors.New("store: nil run")
	}

	id := strings.TrimSpace(run.ID)
	if id == "" {
		return errors.New("store: empty run id")
	}
	if run.StartedAt.IsZero() || run.FinishedAt.IsZero() {
		return errors.New("store: missing run timestamps")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin run tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertRunStmt)
	defer stmt.Close()

	_, err = stmt.ExecContext(
		ctx,
		id,
		run.StartedAt.UTC().UnixMilli(),
		run.FinishedAt.UTC().UnixMilli(),
		run.SourceFile,
		run.TotalTests,
		run.TotalCases,
		run.PassedCases,
		run.FailedCases,
		run.ErroredCases,
		run.SkippedCases,
		run.TotalCostUSD,
		run.TotalTokens,
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit run: %w", err)
	}
	return nil
}

// SaveTestResult persists one test's aggregated results.
func (s *SQLiteStore) SaveTestResult(ctx context.Context, result *TestRecord) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if result == nil {
		return errors.New("store: nil test result")
	}

	id := strings.TrimSpace(result.ID)
	if id == "" {
		return errors.New("store: empty test result id")
	}
	if strings.TrimSpace(result.RunID) == "" {
		return errors.New("store: empty run id")
	}
	if strings.TrimSpace(result.TestID) == "" {
		return errors.New("store: empty test id")
	}

	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	caseJSON, err := json.Marshal(result.CaseResults)
	if err != nil {
		return fmt.Errorf("store: marshal case results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin test tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt := tx.StmtContext(ctx, s.insertTestStmt)
	defer stmt.Close()

	_, err = stmt.ExecContext(
		ctx,
		id,
		result.RunID,
		result.TestID,
		result.TotalCases,
		result.PassedCases,
		result.FailedCases,
		result.ErroredCases,
		result.SkippedCases,
		result.LatencyP50Ms,
		result.LatencyP95Ms,
		result.LatencyMaxMs,
		result.CostUSD,
		result.Tokens,
		createdAt.UTC().UnixMilli(),
		caseJSON,
	)
	if err != nil {
		return fmt.Errorf("store: insert test result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit test result: %w", err)
	}
	return nil
}

// GetRun loads a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("store: empty run id")
	}

	row := s.getRunStmt.QueryRowContext(ctx, id)
	run, err := scanRun(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}

	testID := strings.TrimSpace(filter.TestID)
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT DISTINCT r.id, r.started_at, r.finished_at, r.source_file, r.total_tests,
		r.total_cases, r.passed_cases, r.failed_cases, r.errored_cases, r.skipped_cases,
		r.total_cost_usd, r.total_tokens FROM runs r`)
	if testID != "" {
		sb.WriteString(` JOIN test_results t ON t.run_id = r.id`)
	}
	sb.WriteString(` WHERE 1=1`)

	var args []any
	if testID != "" {
		sb.WriteString(` AND t.test_id = ?`)
		args = append(args, testID)
	}
	if !filter.Since.IsZero() {
		sb.WriteString(` AND r.started_at >= ?`)
		args = append(args, filter.Since.UTC().UnixMilli())
	}
	if !filter.Until.IsZero() {
		sb.WriteString(` AND r.started_at <= ?`)
		args = append(args, filter.Until.UTC().UnixMilli())
	}
	sb.WriteString(` ORDER BY r.started_at DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

func scanRun(scan func(dest ...any) error) (*RunRecord, error) {
	var (
		r            RunRecord
		startedAtMS  int64
		finishedAtMS int64
	)
	if err := scan(
		&r.ID,
		&startedAtMS,
		&finishedAtMS,
		&r.SourceFile,
		&r.TotalTests,
		&r.TotalCases,
		&r.PassedCases,
		&r.FailedCases,
		&r.ErroredCases,
		&r.SkippedCases,
		&r.TotalCostUSD,
		&r.TotalTokens,
	); err != nil {
		return nil, err
	}
	r.StartedAt = time.UnixMilli(startedAtMS).UTC()
	r.FinishedAt = time.UnixMilli(finishedAtMS).UTC()
	return &r, nil
}

// GetTestResults lists test results for a run.
func (s *SQLiteStore) GetTestResults(ctx context.Context, runID string) ([]*TestRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("store: empty run id")
	}

	rows, err := s.testsByRunStmt.QueryContext(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("store: get test results: %w", err)
	}
	defer rows.Close()

	return scanTestRows(rows)
}

// GetTestHistory returns recent results for one test across runs.
func (s *SQLiteStore) GetTestHistory(ctx context.Context, testID string, limit int) ([]*TestRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	testID = strings.TrimSpace(testID)
	if testID == "" {
		return nil, errors.New("store: empty test id")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.testHistoryStmt.QueryContext(ctx, testID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: test history: %w", err)
	}
	defer rows.Close()

	return scanTestRows(rows)
}

func scanTestRows(rows *sql.Rows) ([]*TestRecord, error) {
	var out []*TestRecord
	for rows.Next() {
		var (
			t           TestRecord
			createdAtMS int64
			caseJSON    []byte
		)
		if err := rows.Scan(
			&t.ID,
			&t.RunID,
			&t.TestID,
			&t.TotalCases,
			&t.PassedCases,
			&t.FailedCases,
			&t.ErroredCases,
			&t.SkippedCases,
			&t.LatencyP50Ms,
			&t.LatencyP95Ms,
			&t.LatencyMaxMs,
			&t.CostUSD,
			&t.Tokens,
			&createdAtMS,
			&caseJSON,
		); err != nil {
			return nil, fmt.Errorf("store: scan test result: %w", err)
		}
		t.CreatedAt = time.UnixMilli(createdAtMS).UTC()

		if len(caseJSON) > 0 {
			if err := json.Unmarshal(caseJSON, &t.CaseResults); err != nil {
				return nil, fmt.Errorf("store: decode case results: %w", err)
			}
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan test rows: %w", err)
	}
	return out, nil
}
