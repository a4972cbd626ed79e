package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/promptsentinel/sentinel/internal/llm"
	"github.com/promptsentinel/sentinel/internal/runner"
	"github.com/promptsentinel/sentinel/internal/store"
)

type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	return &llm.Completion{Text: "echo: " + req.Prompt, InputTokens: 1, OutputTokens: 2}, nil
}

func writeTestFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tests.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const basicSuite = `
version: "1"
tests:
  - id: greet
    prompt: "Say hi to {{name}}"
    cases:
      - input: {name: Alice}
        assert:
          - type: contains
            value: Alice
      - input: {name: Bob}
        assert:
          - type: contains
            value: Carol
  - id: echoing
    prompt: "ping"
    cases:
      - input: {}
        assert:
          - type: contains
            value: ping
`

func TestExecuteRun_EndToEnd(t *testing.T) {
	path := writeTestFile(t, basicSuite)

	res, err := ExecuteRun(context.Background(), RunOptions{
		ConfigPath:       path,
		ProviderOverride: echoProvider{},
	})
	if err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}

	s := res.Summary
	if s.TotalCases != 3 || s.Passed != 2 || s.Failed != 1 {
		t.Fatalf("summary: %+v", s)
	}
	if len(s.Tests) != 2 || s.Tests[0].TestID != "greet" || s.Tests[1].TestID != "echoing" {
		t.Fatalf("test order: %+v", s.Tests)
	}
	if s.Ok() {
		t.Fatalf("run with a failed case is not ok")
	}

	// Bob's failing contains check carries its detail.
	bob := s.Tests[0].Cases[1]
	if bob.Status != runner.StatusFailed || len(bob.Verdicts) != 1 || bob.Verdicts[0].Passed {
		t.Fatalf("bob: %+v", bob)
	}
}

func TestExecuteRun_FilterSelectsSubset(t *testing.T) {
	path := writeTestFile(t, basicSuite)

	res, err := ExecuteRun(context.Background(), RunOptions{
		ConfigPath:       path,
		Filter:           "echo",
		ProviderOverride: echoProvider{},
	})
	if err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}
	if len(res.Summary.Tests) != 1 || res.Summary.Tests[0].TestID != "echoing" {
		t.Fatalf("filtered tests: %+v", res.Summary.Tests)
	}

	if _, err := ExecuteRun(context.Background(), RunOptions{
		ConfigPath:       path,
		Filter:           "nothing-matches",
		ProviderOverride: echoProvider{},
	}); err == nil {
		t.Fatalf("empty filter result should error")
	}
}

func TestExecuteRun_ValidationFailure(t *testing.T) {
	path := writeTestFile(t, `
version: "1"
tests:
  - id: broken
    prompt: ""
    cases:
      - input: {}
`)

	_, err := ExecuteRun(context.Background(), RunOptions{
		ConfigPath:       path,
		ProviderOverride: echoProvider{},
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Problems) == 0 {
		t.Fatalf("no problems listed")
	}
}

func TestExecuteRun_BrokenBulkSourceFailsOnlyThatTest(t *testing.T) {
	path := writeTestFile(t, `
version: "1"
tests:
  - id: bulk
    prompt: "{{q}}"
    cases_file: missing.csv
    assertions:
      - type: min_length
        value: 1
  - id: healthy
    prompt: "hello"
    cases:
      - input: {}
        assert:
          - type: contains
            value: hello
`)

	res, err := ExecuteRun(context.Background(), RunOptions{
		ConfigPath:       path,
		ProviderOverride: echoProvider{},
	})
	if err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}

	bulk := res.Summary.Tests[0]
	if bulk.Errored != 1 || !strings.Contains(bulk.Cases[0].Err, "missing.csv") {
		t.Fatalf("bulk test: %+v", bulk)
	}
	if res.Summary.Tests[1].Passed != 1 {
		t.Fatalf("sibling test should still run: %+v", res.Summary.Tests[1])
	}
}

func TestExecuteRun_TemplateErrorDoesNotAbortRun(t *testing.T) {
	path := writeTestFile(t, `
version: "1"
tests:
  - id: mixed
    prompt: "Hi {{name}}"
    assertions:
      - type: min_length
        value: 1
    cases:
      - input: {name: Alice}
      - input: {wrong: key}
`)

	res, err := ExecuteRun(context.Background(), RunOptions{
		ConfigPath:       path,
		ProviderOverride: echoProvider{},
		SkipValidation:   true,
	})
	if err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}

	cases := res.Summary.Tests[0].Cases
	if cases[0].Status != runner.StatusPassed {
		t.Fatalf("case 0: %+v", cases[0])
	}
	if cases[1].Status != runner.StatusErrored || !strings.Contains(cases[1].Err, "{{name}}") {
		t.Fatalf("case 1: %+v", cases[1])
	}
}

func TestExecuteRun_SnapshotDirUnderConfigDir(t *testing.T) {
	path := writeTestFile(t, `
version: "1"
tests:
  - id: snap
    prompt: "stable"
    cases:
      - input: {}
        assert:
          - type: snapshot
`)

	opts := RunOptions{ConfigPath: path, ProviderOverride: echoProvider{}}
	res, err := ExecuteRun(context.Background(), opts)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if res.Summary.Passed != 1 {
		t.Fatalf("first run summary: %+v", res.Summary)
	}

	snapFile := filepath.Join(filepath.Dir(path), ".snapshots", "snap_case0.snap")
	if _, err := os.Stat(snapFile); err != nil {
		t.Fatalf("snapshot file: %v", err)
	}

	// Deterministic provider, clean rerun.
	res, err = ExecuteRun(context.Background(), opts)
	if err != nil || res.Summary.Passed != 1 {
		t.Fatalf("rerun: %+v, %v", res.Summary, err)
	}
}

func TestExecuteRun_PersistsHistory(t *testing.T) {
	path := writeTestFile(t, basicSuite)

	history, err := store.Open("memory")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer history.Close()

	res, err := ExecuteRun(context.Background(), RunOptions{
		ConfigPath:       path,
		ProviderOverride: echoProvider{},
		History:          history,
	})
	if err != nil {
		t.Fatalf("ExecuteRun: %v", err)
	}
	if res.HistoryErr != nil {
		t.Fatalf("HistoryErr: %v", res.HistoryErr)
	}
	if res.RunID == "" {
		t.Fatalf("missing run id")
	}

	run, err := history.GetRun(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.TotalCases != 3 || run.PassedCases != 2 || run.FailedCases != 1 {
		t.Fatalf("persisted run: %+v", run)
	}

	results, err := history.GetTestResults(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("GetTestResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("test records: %d", len(results))
	}
	for _, r := range results {
		if len(r.CaseResults) == 0 {
			t.Fatalf("test %s has no case records", r.TestID)
		}
	}
}

func TestValidate_ReportsProblems(t *testing.T) {
	path := writeTestFile(t, `
version: "1"
tests:
  - id: t
    prompt: "p"
    cases:
      - input: {}
        assert:
          - type: includess
            value: x
`)

	problems, err := Validate(path)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(problems) == 0 {
		t.Fatalf("expected problems")
	}
}
