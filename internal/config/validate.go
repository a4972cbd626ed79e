package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/promptsentinel/sentinel/internal/assertion"
)

// Validate checks a loaded config for logical errors and returns a list
// of human-readable issues. An empty list means the config is runnable.
func Validate(cfg *Config) []string {
	if cfg == nil {
		return []string{"nil config"}
	}

	var issues []string

	if !known(cfg.Defaults.Provider, KnownProviders) {
		issues = append(issues, fmt.Sprintf(
			"unknown default provider %q (known: %s)",
			cfg.Defaults.Provider, strings.Join(KnownProviders, ", ")))
	}
	if cfg.Defaults.Temperature < 0 || cfg.Defaults.Temperature > 2 {
		issues = append(issues, fmt.Sprintf(
			"temperature %v is out of range [0.0, 2.0]", cfg.Defaults.Temperature))
	}
	if len(cfg.Tests) == 0 {
		issues = append(issues, "no tests defined")
	}

	seenIDs := make(map[string]struct{}, len(cfg.Tests))
	for ti := range cfg.Tests {
		test := &cfg.Tests[ti]

		id := strings.TrimSpace(test.ID)
		if id == "" {
			issues = append(issues, fmt.Sprintf("tests[%d]: missing id", ti))
			id = fmt.Sprintf("tests[%d]", ti)
		}
		if _, ok := seenIDs[id]; ok {
			issues = append(issues, fmt.Sprintf("duplicate test ID %q", id))
		}
		seenIDs[id] = struct{}{}

		if strings.TrimSpace(test.Prompt) == "" {
			issues = append(issues, fmt.Sprintf("test %q: prompt is empty", id))
		}
		if test.Provider != "" && !known(test.Provider, KnownProviders) {
			issues = append(issues, fmt.Sprintf(
				"test %q: unknown provider %q", id, test.Provider))
		}

		switch {
		case len(test.Cases) == 0 && test.CasesFile == "":
			issues = append(issues, fmt.Sprintf(
				"test %q: no test cases defined (inline or CSV)", id))
		case len(test.Cases) > 0 && test.CasesFile != "":
			// Ambiguous: which assertions bind to which rows? Reject
			// rather than silently concatenate.
			issues = append(issues, fmt.Sprintf(
				"test %q: declares both inline cases and cases_file; use one or the other", id))
		}

		if test.CasesFile != "" && len(test.Assertions) == 0 {
			issues = append(issues, fmt.Sprintf(
				"test %q: cases_file without test-level assertions; CSV rows would have nothing to check", id))
		}

		issues = append(issues, validateAssertions(id, "default assertion", test.Assertions)...)

		for ci, c := range test.Cases {
			where := fmt.Sprintf("case %d", ci+1)
			if len(c.Assertions) == 0 && len(test.Assertions) == 0 {
				issues = append(issues, fmt.Sprintf(
					"test %q, %s: no assertions defined", id, where))
			}
			issues = append(issues, validateAssertions(id, where, c.Assertions)...)

			for _, v := range unresolvedVars(test.Prompt, c.Input) {
				issues = append(issues, fmt.Sprintf(
					"test %q, %s: prompt references {{%s}} which is not bound", id, where, v))
			}
		}
	}

	return issues
}

func validateAssertions(testID, where string, assertions []Assertion) []string {
	var issues []string
	for i, a := range assertions {
		kind := strings.TrimSpace(a.Kind)
		if !known(kind, KnownAssertionKinds) {
			hint := ""
			if s := findClosest(kind, KnownAssertionKinds); s != "" {
				hint = fmt.Sprintf(". Did you mean %q?", s)
			}
			issues = append(issues, fmt.Sprintf(
				"test %q, %s %d: unknown assertion type %q%s", testID, where, i+1, kind, hint))
			continue
		}

		// Template strings are resolved per case at expansion time;
		// only concrete values can be checked here.
		if s, ok := a.Value.(string); ok && strings.Contains(s, "{{") {
			continue
		}
		if err := checkAssertionValue(kind, a.Value); err != nil {
			issues = append(issues, fmt.Sprintf(
				"test %q, %s %d: %v", testID, where, i+1, err))
		}
	}
	return issues
}

func checkAssertionValue(kind string, value any) error {
	_, err := assertion.ParseSpec(kind, value)
	return err
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// unresolvedVars reports placeholder names in the template that have no
// binding in vars.
func unresolvedVars(template string, vars map[string]string) []string {
	var missing []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		name := m[1]
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func known(name string, candidates []string) bool {
	for _, c := range candidates {
		if c == name {
			return true
		}
	}
	return false
}

// findClosest suggests the nearest known name within edit distance 3.
func findClosest(input string, candidates []string) string {
	best := ""
	bestDist := 4
	for _, c := range candidates {
		if d := levenshtein(input, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
