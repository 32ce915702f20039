package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scriptlib/internal/core/config"
	coreerrors "scriptlib/internal/core/errors"
	"scriptlib/internal/core/layout"
	"scriptlib/internal/core/watcher"
	"scriptlib/internal/shared/observability"
	"scriptlib/internal/shared/util"
)

type WatchOptions struct {
	// ConfigPath is reloaded on change when set.
	ConfigPath string
	// Clean and Incremental apply to the initial build only.
	Clean       bool
	Incremental bool
	Workers     int
	// OnBuild receives the summary of the initial build and of every
	// rebuild.
	OnBuild func(Summary)
}

// Watch runs a forward build, then rebuilds changed modules until ctx is
// done. Rebuilds are throttled by the configured rebuild rate.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	onBuild := opts.OnBuild
	if onBuild == nil {
		onBuild = func(Summary) {}
	}

	initial, err := a.Build(ctx, BuildRequest{
		Direction:   layout.Forward,
		Clean:       opts.Clean,
		Incremental: opts.Incremental,
		Workers:     opts.Workers,
	})
	if err != nil {
		return err
	}
	onBuild(initial)

	cfg := a.config()
	changes := make(chan []string, 16)
	w, err := watcher.NewWatcher(cfg.Watch.Debounce, a.Walker(), func(paths []string) {
		select {
		case changes <- paths:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeInternal, "create watcher")
	}
	defer w.Close()
	if err := w.Watch([]string{a.Paths.Source}); err != nil {
		return coreerrors.WrapPath(err, "watch", a.Paths.Source)
	}

	if opts.ConfigPath != "" {
		cw := config.NewWatcher(opts.ConfigPath, func(next *config.Config) {
			if err := a.Reload(next); err != nil {
				slog.Error("config reload rejected", "error", err)
				return
			}
			w.SetDebounce(next.Watch.Debounce)
		})
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config file will not be reloaded", "path", opts.ConfigPath, "error", err)
		} else {
			defer cw.Stop()
		}
	}

	limiter := util.NewLimiter(cfg.Watch.RebuildRate, cfg.Watch.RebuildBurst)
	slog.Info("watching for changes", "path", a.Paths.Source, "debounce", cfg.Watch.Debounce)

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-changes:
			waited, err := limiter.Wait(ctx, 1)
			if err != nil {
				return nil
			}
			if waited > time.Millisecond {
				observability.RebuildsThrottledTotal.Inc()
			}
			paths = drain(changes, paths)
			onBuild(a.RebuildFiles(ctx, paths))
		}
	}
}

// drain merges batches that queued up while a rebuild was throttled.
func drain(ch <-chan []string, first []string) []string {
	seen := make(map[string]bool, len(first))
	out := make([]string, 0, len(first))
	add := func(paths []string) {
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	add(first)
	for {
		select {
		case more := <-ch:
			add(more)
		default:
			return out
		}
	}
}

// RebuildFiles converts the given project files into the build tree. Paths
// that no longer exist have their module folder removed.
func (a *App) RebuildFiles(ctx context.Context, paths []string) Summary {
	source, dest := a.Paths.Source, a.Paths.Destination
	start := time.Now()
	summary := Summary{
		Direction:   layout.Forward,
		Strategy:    a.Strategy(),
		Source:      source,
		Destination: dest,
	}

	bc, err := a.newBuildContext(BuildRequest{Direction: layout.Forward}, source)
	if err != nil {
		summary.Failed = append(summary.Failed, FileError{Path: source, Err: err})
		return summary
	}
	if a.ledger == nil {
		bc.incremental = false
	}

	walker := a.Walker()
	var jobs []layout.Job
	for _, path := range paths {
		rel, err := filepath.Rel(source, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		job := layout.ForwardJob(source, dest, rel)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := removeModule(job); err != nil {
				summary.Failed = append(summary.Failed, FileError{Rel: job.Rel, Path: path, Err: err})
			} else {
				slog.Info("module removed", "module", job.Rel)
			}
			continue
		}
		if !walker.IsModuleSource(path) {
			continue
		}
		jobs = append(jobs, job)
	}

	results, _ := a.runJobs(ctx, jobs, 0, bc)
	summary.add(jobs, results)
	summary.Duration = time.Since(start)
	a.builds.Add(1)
	if summary.OK() {
		a.recordError(nil)
	} else {
		a.recordError(summary.Failed[0])
	}
	return summary
}

func removeModule(job layout.Job) error {
	for _, path := range []string{job.Output, job.Descriptor} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return coreerrors.WrapPath(err, "remove", path)
		}
	}
	// the folder may still hold a sub-package of the same name
	_ = os.Remove(filepath.Dir(job.Output))
	return nil
}
