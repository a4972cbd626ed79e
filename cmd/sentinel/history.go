package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptsentinel/sentinel/internal/store"
)

type historyOptions struct {
	historyPath string
	testID      string
	limit       int
	since       string
}

func newHistoryCmd() *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, &opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.historyPath, "history", store.DefaultSQLitePath, "history database path")
	cmd.Flags().StringVar(&opts.testID, "test", "", "only runs that include this test id")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max runs to list")
	cmd.Flags().StringVar(&opts.since, "since", "", "only runs since date (YYYY-MM-DD or RFC3339)")

	cmd.AddCommand(newHistoryShowCmd(&opts))
	return cmd
}

func newHistoryShowCmd(opts *historyOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show per-test results for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, opts, args[0])
		},
	}
}

func runHistoryList(cmd *cobra.Command, opts *historyOptions) error {
	since, err := parseSince(opts.since)
	if err != nil {
		return err
	}

	st, err := store.Open(opts.historyPath)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), store.RunFilter{
		TestID: opts.testID,
		Since:  since,
		Limit:  opts.limit,
	})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tCASES\tPASSED\tFAILED\tERRORED\tCOST\tFILE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t$%.4f\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.TotalCases, r.PassedCases, r.FailedCases, r.ErroredCases,
			r.TotalCostUSD, r.SourceFile)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, opts *historyOptions, runID string) error {
	st, err := store.Open(opts.historyPath)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(cmd.Context(), runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("history: run %q not found", runID)
		}
		return err
	}

	results, err := st.GetTestResults(cmd.Context(), run.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s, %s)\n", run.ID,
		run.StartedAt.Local().Format("2006-01-02 15:04:05"),
		run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(out, "%d cases: %d passed, %d failed, %d errored, %d skipped  ($%.4f, %d tokens)\n\n",
		run.TotalCases, run.PassedCases, run.FailedCases, run.ErroredCases,
		run.SkippedCases, run.TotalCostUSD, run.TotalTokens)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEST\tPASSED\tFAILED\tERRORED\tP50(ms)\tP95(ms)\tCOST")
	for _, t := range results {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t$%.4f\n",
			t.TestID, t.PassedCases, t.FailedCases, t.ErroredCases,
			t.LatencyP50Ms, t.LatencyP95Ms, t.CostUSD)
	}
	return tw.Flush()
}

// parseSince accepts an empty string, YYYY-MM-DD, or RFC3339.
func parseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("history: invalid --since %q (expected YYYY-MM-DD or RFC3339)", raw)
}
