package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptsentinel/sentinel/internal/app"
	"github.com/promptsentinel/sentinel/internal/report"
	"github.com/promptsentinel/sentinel/internal/store"
)

var errTestsFailed = errors.New("sentinel: tests failed")

type runOptions struct {
	jsonOutput      bool
	concurrency     int
	timeoutMs       int
	updateSnapshots bool
	noValidate      bool
	filter          string
	reportPath      string
	verbose         bool
	quiet           bool
	noHistory       bool
	historyPath     string
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the test file once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, st, &opts)
		},
	}

	addRunFlags(cmd, &opts)
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "emit results as JSON")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 5, "max in-flight provider calls")
	cmd.Flags().IntVar(&opts.timeoutMs, "timeout", 30000, "per-case timeout in milliseconds")
	cmd.Flags().BoolVar(&opts.updateSnapshots, "update-snapshots", false, "overwrite stored snapshots with current responses")
	cmd.Flags().BoolVar(&opts.noValidate, "no-validate", false, "skip test file validation")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "run only tests whose id contains the substring")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "write an HTML report to the given path")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "show every assertion, including passing ones")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "only print the summary line")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "do not record the run in history")
	cmd.Flags().StringVar(&opts.historyPath, "history", store.DefaultSQLitePath, "history database path")
}

func runTests(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	if opts.concurrency < 1 {
		return fmt.Errorf("run: concurrency must be >= 1 (got %d)", opts.concurrency)
	}
	if opts.timeoutMs < 1 {
		return fmt.Errorf("run: timeout must be >= 1ms (got %d)", opts.timeoutMs)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var history store.Store
	if !opts.noHistory {
		h, err := store.Open(opts.historyPath)
		if err != nil {
			fmt.Fprintf(stderrWriter, "warning: history disabled: %v\n", err)
		} else {
			history = h
			defer history.Close()
		}
	}

	res, err := executeOnce(ctx, st, opts, history)
	if err != nil {
		return err
	}

	if !res.Summary.Ok() {
		return errTestsFailed
	}
	return nil
}

// executeOnce runs the test file and prints/persists the results. It is
// shared by run and every watch iteration.
func executeOnce(ctx context.Context, st *cliState, opts *runOptions, history store.Store) (*app.RunResult, error) {
	runOpts := app.RunOptions{
		ConfigPath:      st.configPath,
		Filter:          opts.filter,
		Concurrency:     opts.concurrency,
		Timeout:         time.Duration(opts.timeoutMs) * time.Millisecond,
		UpdateSnapshots: opts.updateSnapshots,
		SkipValidation:  opts.noValidate,
	}
	if history != nil {
		runOpts.History = history
	}

	res, err := app.ExecuteRun(ctx, runOpts)
	if err != nil {
		var verr *app.ValidationError
		if errors.As(err, &verr) {
			printValidationProblems(os.Stdout, verr)
		}
		return nil, err
	}

	if opts.jsonOutput {
		if err := report.WriteJSON(os.Stdout, &res.Summary); err != nil {
			return nil, err
		}
	} else {
		printSummary(os.Stdout, &res.Summary, opts.verbose, opts.quiet)
	}

	if opts.reportPath != "" {
		if err := report.WriteHTML(opts.reportPath, &res.Summary); err != nil {
			return nil, err
		}
		if !opts.quiet && !opts.jsonOutput {
			fmt.Fprintf(os.Stdout, "report written to %s\n", opts.reportPath)
		}
	}

	if res.HistoryErr != nil {
		fmt.Fprintf(stderrWriter, "warning: run not recorded: %v\n", res.HistoryErr)
	}
	return res, nil
}
