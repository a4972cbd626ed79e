// Package watch re-runs the test file whenever it or one of its inputs
// changes on disk. Directories are watched rather than files so editor
// save strategies that replace the file (rename, truncate+write) still
// produce events.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/promptsentinel/sentinel/internal/config"
)

// DefaultDebounce coalesces the burst of events a single save emits.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a watch session.
type Options struct {
	ConfigPath string
	Debounce   time.Duration
	// OnChange runs after the debounce window closes, with the path
	// that triggered it. It runs on the watch goroutine; a slow
	// callback delays the next trigger, it never loses one.
	OnChange func(path string)
}

// Watch blocks until ctx is cancelled, invoking OnChange for every
// settled burst of changes to the test file, its CSV sources, or .env.
func Watch(ctx context.Context, opts Options) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	targets, dirs := resolveTargets(opts.ConfigPath)
	for dir := range dirs {
		// A missing CSV directory is not fatal: the run will report
		// the broken source and the file may appear later.
		_ = w.Add(dir)
	}

	timer := time.NewTimer(opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	var pending string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove) {
				continue
			}
			if _, watched := targets[filepath.Clean(ev.Name)]; !watched {
				continue
			}
			pending = ev.Name
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(opts.Debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err

		case <-timer.C:
			if opts.OnChange != nil {
				opts.OnChange(pending)
			}
			// The edit may have added or removed CSV sources.
			targets, dirs = resolveTargets(opts.ConfigPath)
			for dir := range dirs {
				_ = w.Add(dir)
			}
		}
	}
}

// resolveTargets lists the files whose changes should trigger a re-run
// and the directories to watch for them. A config file that currently
// fails to parse still watches itself, so fixing it triggers a run.
func resolveTargets(configPath string) (targets map[string]struct{}, dirs map[string]struct{}) {
	baseDir := filepath.Dir(configPath)
	targets = map[string]struct{}{
		filepath.Clean(configPath):                     {},
		filepath.Clean(filepath.Join(baseDir, ".env")): {},
	}

	if cfg, err := config.Load(configPath); err == nil {
		for _, t := range cfg.Tests {
			if t.CasesFile != "" {
				targets[filepath.Clean(filepath.Join(baseDir, t.CasesFile))] = struct{}{}
			}
		}
	}

	dirs = make(map[string]struct{}, len(targets))
	for t := range targets {
		dirs[filepath.Dir(t)] = struct{}{}
	}
	return targets, dirs
}
