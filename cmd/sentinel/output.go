package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/promptsentinel/sentinel/internal/aggregate"
	"github.com/promptsentinel/sentinel/internal/app"
	"github.com/promptsentinel/sentinel/internal/runner"
)

var (
	passMark = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
	errMark  = color.New(color.FgYellow).SprintFunc()
	skipMark = color.New(color.FgHiBlack).SprintFunc()
	dimText  = color.New(color.Faint).SprintFunc()
)

func statusMark(s runner.Status) string {
	switch s {
	case runner.StatusPassed:
		return passMark("✓")
	case runner.StatusFailed:
		return failMark("✗")
	case runner.StatusErrored:
		return errMark("!")
	case runner.StatusSkipped:
		return skipMark("-")
	default:
		return "?"
	}
}

// printSummary renders the run for a terminal. Failing assertions are
// always enumerated with their detail; verbose adds the passing ones,
// quiet drops everything but the one-line totals.
func printSummary(w io.Writer, s *aggregate.RunSummary, verbose, quiet bool) {
	if !quiet {
		for _, t := range s.Tests {
			fmt.Fprintf(w, "\n%s\n", color.New(color.Bold).Sprint(t.TestID))
			for _, c := range t.Cases {
				printCase(w, &c, verbose)
			}
			if t.Passed+t.Failed > 0 {
				fmt.Fprintf(w, "  %s\n", dimText(fmt.Sprintf(
					"p50 %dms  p95 %dms  max %dms  $%.4f",
					t.LatencyP50.Milliseconds(), t.LatencyP95.Milliseconds(),
					t.LatencyMax.Milliseconds(), t.TotalCostUSD)))
			}
		}
		fmt.Fprintln(w)
	}

	line := fmt.Sprintf("%d cases: %d passed, %d failed, %d errored",
		s.TotalCases, s.Passed, s.Failed, s.Errored)
	if s.Skipped > 0 {
		line += fmt.Sprintf(", %d skipped", s.Skipped)
	}
	line += fmt.Sprintf("  ($%.4f, %d tokens, %s)",
		s.TotalCostUSD, s.TotalTokens, s.Duration.Round(time.Millisecond))

	if s.Ok() {
		fmt.Fprintln(w, passMark(line))
	} else {
		fmt.Fprintln(w, failMark(line))
	}
}

func printCase(w io.Writer, c *runner.CaseOutcome, verbose bool) {
	label := c.InputLabel
	if label == "" {
		label = fmt.Sprintf("case %d", c.Ordinal)
	}
	fmt.Fprintf(w, "  %s %s %s\n", statusMark(c.Status), label,
		dimText(fmt.Sprintf("(%dms, %d attempts)", c.Latency.Milliseconds(), c.Attempts)))

	if c.Status == runner.StatusSkipped {
		return
	}
	for _, v := range c.Verdicts {
		switch {
		case !v.Passed:
			fmt.Fprintf(w, "      %s %s: %s\n", failMark("✗"), v.Label, v.Detail)
		case verbose:
			fmt.Fprintf(w, "      %s %s: %s\n", passMark("✓"), v.Label, v.Detail)
		}
	}
	if c.Status == runner.StatusErrored && c.Err != "" && len(c.Verdicts) == 0 {
		fmt.Fprintf(w, "      %s %s\n", errMark("!"), c.Err)
	}
}

func printValidationProblems(w io.Writer, verr *app.ValidationError) {
	if verr == nil {
		return
	}
	fmt.Fprintf(w, "%s is not runnable:\n", verr.Path)
	for _, p := range verr.Problems {
		fmt.Fprintf(w, "  %s %s\n", failMark("✗"), p)
	}
}
