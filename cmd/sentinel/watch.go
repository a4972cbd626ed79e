package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptsentinel/sentinel/internal/store"
	"github.com/promptsentinel/sentinel/internal/watch"
)

func newWatchCmd(st *cliState) *cobra.Command {
	var (
		opts       runOptions
		debounceMs int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the test file whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, st, &opts, time.Duration(debounceMs)*time.Millisecond)
		},
	}

	addRunFlags(cmd, &opts)
	cmd.Flags().IntVar(&debounceMs, "debounce", 500, "settle window after a change in milliseconds")
	return cmd
}

func runWatch(cmd *cobra.Command, st *cliState, opts *runOptions, debounce time.Duration) error {
	if opts.concurrency < 1 {
		return fmt.Errorf("watch: concurrency must be >= 1 (got %d)", opts.concurrency)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
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

	runOnce := func(trigger string) {
		if trigger != "" {
			fmt.Fprintf(os.Stdout, "\n%s changed, re-running...\n", trigger)
		}
		// A broken edit should keep the watcher alive; the next save
		// gets another chance.
		if _, err := executeOnce(ctx, st, opts, history); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(stderrWriter, err)
		}
	}

	runOnce("")
	fmt.Fprintf(os.Stdout, "\nwatching %s (ctrl-c to stop)\n", st.configPath)

	err := watch.Watch(ctx, watch.Options{
		ConfigPath: st.configPath,
		Debounce:   debounce,
		OnChange:   runOnce,
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
