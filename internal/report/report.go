// Package report renders run summaries for machines (JSON) and humans
// (a standalone HTML page).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/promptsentinel/sentinel/internal/aggregate"
)

// envelope adds run metadata around the summary for JSON output.
type envelope struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Summary     aggregate.RunSummary `json:"summary"`
}

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, summary *aggregate.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(envelope{
		GeneratedAt: time.Now().UTC(),
		Summary:     *summary,
	}); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteHTML renders the summary as a self-contained HTML page at path.
func WriteHTML(path string, summary *aggregate.RunSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create html report: %w", err)
	}

	data := htmlData{
		GeneratedAt: time.Now().Format(time.RFC1123),
		Summary:     summary,
	}
	if summary.TotalCases > 0 {
		data.PassPct = float64(summary.Passed) / float64(summary.TotalCases) * 100
	}

	if err := htmlTemplate.Execute(f, data); err != nil {
		_ = f.Close()
		return fmt.Errorf("report: render html report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close html report: %w", err)
	}
	return nil
}

type htmlData struct {
	GeneratedAt string
	PassPct     float64
	Summary     *aggregate.RunSummary
}
