// Package testcase expands test definitions into flat, ordinal-ordered
// sequences of concrete cases ready for dispatch.
package testcase

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/promptsentinel/sentinel/internal/config"
)

// Case is one fully bound instance of a test's prompt. Immutable once
// expanded. Err is set when templating failed; such a case is recorded
// as errored and never dispatched to a provider.
type Case struct {
	TestID     string
	Ordinal    int
	Bindings   map[string]string
	Prompt     string
	Provider   string
	Model      string
	Assertions []config.Assertion // values already rendered against Bindings
	Err        error
}

// InputLabel renders the bindings as a stable "k=v, k=v" summary.
func (c *Case) InputLabel() string {
	keys := make([]string, 0, len(c.Bindings))
	for k := range c.Bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+c.Bindings[k])
	}
	return strings.Join(parts, ", ")
}

// Expand turns one test definition into its ordered cases. Inline cases
// expand in declaration order; a cases_file expands one case per CSV
// row in row order. A broken bulk source returns a *DataSourceError and
// no cases. Template failures are recorded per case, not returned.
func Expand(def *config.TestDef, provider, model string, baseDir string) ([]Case, error) {
	if def == nil {
		return nil, errors.New("testcase: nil test definition")
	}
	if len(def.Cases) > 0 && def.CasesFile != "" {
		return nil, &DataSourceError{
			Path: def.CasesFile,
			Err:  errors.New("test declares both inline cases and cases_file"),
		}
	}

	if def.CasesFile != "" {
		rows, err := loadCSV(filepath.Join(baseDir, def.CasesFile))
		if err != nil {
			return nil, err
		}
		out := make([]Case, 0, len(rows))
		for i, bindings := range rows {
			out = append(out, buildCase(def, provider, model, i, bindings, def.Assertions))
		}
		return out, nil
	}

	out := make([]Case, 0, len(def.Cases))
	for i, cd := range def.Cases {
		out = append(out, buildCase(def, provider, model, i, cd.Input, mergeAssertions(def.Assertions, cd.Assertions)))
	}
	return out, nil
}

// buildCase resolves the prompt and assertion values against one
// binding set. Resolution failures leave the case in errored state.
func buildCase(def *config.TestDef, provider, model string, ordinal int, bindings map[string]string, raw []config.Assertion) Case {
	c := Case{
		TestID:   def.ID,
		Ordinal:  ordinal,
		Bindings: bindings,
		Provider: provider,
		Model:    model,
	}

	prompt, err := Render(def.Prompt, bindings, "prompt")
	if err != nil {
		c.Err = err
		return c
	}
	c.Prompt = prompt

	c.Assertions = make([]config.Assertion, 0, len(raw))
	for _, a := range raw {
		rendered := a
		if s, ok := a.Value.(string); ok {
			v, err := Render(s, bindings, fmt.Sprintf("%s assertion value", a.Kind))
			if err != nil {
				c.Err = err
				return c
			}
			rendered.Value = v
		}
		c.Assertions = append(c.Assertions, rendered)
	}
	return c
}

// mergeAssertions combines test-level defaults with per-case overrides.
// A case assertion of a given kind replaces all defaults of that kind.
func mergeAssertions(defaults, overrides []config.Assertion) []config.Assertion {
	if len(defaults) == 0 {
		return overrides
	}
	if len(overrides) == 0 {
		return defaults
	}

	overridden := make(map[string]struct{}, len(overrides))
	for _, a := range overrides {
		overridden[a.Kind] = struct{}{}
	}

	out := make([]config.Assertion, 0, len(defaults)+len(overrides))
	for _, a := range defaults {
		if _, ok := overridden[a.Kind]; ok {
			continue
		}
		out = append(out, a)
	}
	return append(out, overrides...)
}

// loadCSV reads a bulk data source: header row = binding keys, each
// following row = one case's bindings. All values are strings.
func loadCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataSourceError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, &DataSourceError{Path: path, Err: err}
	}
	if len(records) == 0 {
		return nil, &DataSourceError{Path: path, Err: errors.New("empty file")}
	}
	if len(records) == 1 {
		return nil, &DataSourceError{Path: path, Err: errors.New("header row but no data rows")}
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		bindings := make(map[string]string, len(header))
		for i, field := range rec {
			if i < len(header) {
				bindings[header[i]] = field
			}
		}
		rows = append(rows, bindings)
	}
	return rows, nil
}
