package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/promptsentinel/sentinel/internal/aggregate"
	"github.com/promptsentinel/sentinel/internal/runner"
)

func sampleSummary() *aggregate.RunSummary {
	tests := []aggregate.TestOutcome{
		aggregate.Fold("greet", []runner.CaseOutcome{
			{TestID: "greet", Ordinal: 0, Status: runner.StatusPassed,
				InputLabel: "name=Alice", Latency: 120 * time.Millisecond, Attempts: 1},
			{TestID: "greet", Ordinal: 1, Status: runner.StatusFailed,
				InputLabel: "name=Bob", Latency: 90 * time.Millisecond, Attempts: 1},
		}),
	}
	s := aggregate.Summarize(tests, 2*time.Second)
	return &s
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleSummary()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var out struct {
		GeneratedAt time.Time `json:"generated_at"`
		Summary     struct {
			TotalCases int `json:"total_cases"`
			Tests      []struct {
				TestID string `json:"test_id"`
				Cases  []struct {
					Ordinal int    `json:"ordinal"`
					Status  string `json:"status"`
				} `json:"cases"`
			} `json:"tests"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.GeneratedAt.IsZero() {
		t.Fatalf("missing generated_at")
	}
	if out.Summary.TotalCases != 2 || out.Summary.Tests[0].TestID != "greet" {
		t.Fatalf("summary: %+v", out.Summary)
	}
	if out.Summary.Tests[0].Cases[0].Ordinal != 0 || out.Summary.Tests[0].Cases[1].Status != "failed" {
		t.Fatalf("cases: %+v", out.Summary.Tests[0].Cases)
	}
}

func TestWriteHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	if err := WriteHTML(path, sampleSummary()); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	html := string(b)
	for _, want := range []string{"<!DOCTYPE html>", "greet", "name=Alice", "name=Bob"} {
		if !strings.Contains(html, want) {
			t.Fatalf("html missing %q", want)
		}
	}
}

func TestWriteHTML_BadPath(t *testing.T) {
	err := WriteHTML(filepath.Join(t.TempDir(), "nope", "report.html"), sampleSummary())
	if err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
