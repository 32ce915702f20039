package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"scriptlib/internal/core/descriptor"
	coreerrors "scriptlib/internal/core/errors"
	"scriptlib/internal/core/layout"
	"scriptlib/internal/data/ledger"
	"scriptlib/internal/engine/parser"
	"scriptlib/internal/engine/rewrite"
	"scriptlib/internal/shared/observability"
	"scriptlib/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BuildRequest describes one build. Empty fields fall back to the
// configuration: forward builds read Paths.Source and write
// Paths.Destination, reverse builds the other way round.
type BuildRequest struct {
	Direction   layout.Direction
	Source      string
	Destination string
	Clean       bool
	Incremental bool
	Workers     int
}

// FileError is a per-file failure. It does not stop the batch.
type FileError struct {
	Rel  string
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e FileError) Unwrap() error { return e.Err }

type FileWarning struct {
	Rel     string
	Message string
}

type Summary struct {
	RunID       string
	Direction   layout.Direction
	Strategy    rewrite.Strategy
	Source      string
	Destination string
	Total       int
	Written     int
	Skipped     int
	Directives  int
	Failed      []FileError
	Warnings    []FileWarning
	Duration    time.Duration
}

// OK reports whether every file was converted.
func (s Summary) OK() bool { return len(s.Failed) == 0 }

func (s Summary) counts() ledger.Counts {
	return ledger.Counts{Total: s.Total, Written: s.Written, Skipped: s.Skipped, Failed: len(s.Failed)}
}

func (s *Summary) add(jobs []layout.Job, results []outcome) {
	s.Total += len(jobs)
	for i, res := range results {
		job := jobs[i]
		for _, w := range res.warnings {
			s.Warnings = append(s.Warnings, FileWarning{Rel: job.Rel, Message: w})
		}
		s.Directives += res.directives
		switch {
		case res.err != nil:
			s.Failed = append(s.Failed, FileError{Rel: job.Rel, Path: job.Input, Err: res.err})
		case res.skipped:
			s.Skipped++
		case res.written:
			s.Written++
		}
	}
}

type outcome struct {
	written    bool
	skipped    bool
	directives int
	warnings   []string
	err        error
}

// buildContext is what every job of one build shares.
type buildContext struct {
	direction   layout.Direction
	strategy    rewrite.Strategy
	roots       []string
	incremental bool
	runID       string
	generator   *descriptor.Generator
}

// Build runs one batch build. It returns an error only for failures that
// abort the batch (bad request, destructive clean, planning); per-file
// failures are collected in the summary.
func (a *App) Build(ctx context.Context, req BuildRequest) (Summary, error) {
	source, dest := a.endpoints(req)
	start := time.Now()

	ctx, span := observability.Tracer.Start(ctx, "app.Build", trace.WithAttributes(
		attribute.String("direction", req.Direction.String()),
		attribute.String("source", source),
		attribute.String("destination", dest),
	))
	defer span.End()

	summary := Summary{
		Direction:   req.Direction,
		Strategy:    a.Strategy(),
		Source:      source,
		Destination: dest,
	}

	if err := a.validateEndpoints(source, dest); err != nil {
		span.SetStatus(codes.Error, err.Error())
		a.recordError(err)
		return summary, err
	}

	if req.Clean {
		if err := a.clean(req.Direction, source, dest); err != nil {
			span.SetStatus(codes.Error, err.Error())
			a.recordError(err)
			return summary, err
		}
	}

	walker := a.Walker()
	var plan layout.Plan
	var err error
	if req.Direction == layout.Reverse {
		plan, err = walker.PlanReverse(source, dest)
	} else {
		plan, err = walker.PlanForward(source, dest)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		a.recordError(err)
		return summary, err
	}
	if err := plan.Prepare(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		a.recordError(err)
		return summary, err
	}
	for _, w := range plan.Warnings {
		slog.Warn(w.Message, "module", w.Rel)
		summary.Warnings = append(summary.Warnings, FileWarning{Rel: w.Rel, Message: w.Message})
	}

	bc, err := a.newBuildContext(req, source)
	if err != nil {
		a.recordError(err)
		return summary, err
	}
	if bc.incremental && a.ledger == nil {
		slog.Warn("incremental build requested without a ledger; rebuilding everything")
		bc.incremental = false
	}

	var run ledger.Run
	if a.ledger != nil {
		run, err = a.ledger.BeginRun(req.Direction.String(), string(bc.strategy))
		if err != nil {
			slog.Warn("failed to record build start", "error", err)
		} else {
			bc.runID = run.ID
			summary.RunID = run.ID
		}
	}

	slog.Info("build started",
		"direction", req.Direction.String(),
		"strategy", bc.strategy,
		"source", source,
		"destination", dest,
		"modules", len(plan.Jobs),
		"roots", strings.Join(bc.roots, ","),
	)

	results, runErr := a.runJobs(ctx, plan.Jobs, req.Workers, bc)
	summary.add(plan.Jobs, results)
	summary.Duration = time.Since(start)

	if a.ledger != nil && summary.RunID != "" {
		if err := a.ledger.FinishRun(run, summary.counts()); err != nil {
			slog.Warn("failed to record build end", "run_id", summary.RunID, "error", err)
		}
	}
	if ce, ok := a.extractor.(*parser.CachedExtractor); ok {
		observability.DirectiveCacheEntries.Set(float64(ce.Len()))
	}
	observability.BuildDuration.WithLabelValues(req.Direction.String()).Observe(summary.Duration.Seconds())
	a.builds.Add(1)

	span.SetAttributes(
		attribute.Int("files.total", summary.Total),
		attribute.Int("files.written", summary.Written),
		attribute.Int("files.skipped", summary.Skipped),
		attribute.Int("files.failed", len(summary.Failed)),
	)

	if runErr != nil {
		span.SetStatus(codes.Error, runErr.Error())
		a.recordError(runErr)
		return summary, runErr
	}
	if !summary.OK() {
		span.SetStatus(codes.Error, "file failures")
		a.recordError(fmt.Errorf("%d file(s) failed", len(summary.Failed)))
	} else {
		a.recordError(nil)
	}

	slog.Info("build finished",
		"direction", req.Direction.String(),
		"written", summary.Written,
		"skipped", summary.Skipped,
		"failed", len(summary.Failed),
		"warnings", len(summary.Warnings),
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return summary, nil
}

func (a *App) endpoints(req BuildRequest) (string, string) {
	source, dest := req.Source, req.Destination
	if req.Direction == layout.Reverse {
		if source == "" {
			source = a.Paths.Destination
		}
		if dest == "" {
			dest = a.Paths.Source
		}
	} else {
		if source == "" {
			source = a.Paths.Source
		}
		if dest == "" {
			dest = a.Paths.Destination
		}
	}
	return filepath.Clean(source), filepath.Clean(dest)
}

func (a *App) validateEndpoints(source, dest string) error {
	info, err := os.Stat(source)
	if err != nil {
		return coreerrors.WrapPath(err, "open build input", source)
	}
	if !info.IsDir() {
		return coreerrors.New(coreerrors.CodeValidationError, fmt.Sprintf("build input %s is not a directory", source))
	}
	srcAbs, err1 := filepath.Abs(source)
	dstAbs, err2 := filepath.Abs(dest)
	if err1 == nil && err2 == nil && srcAbs == dstAbs {
		return coreerrors.New(coreerrors.CodeValidationError, "source and destination must differ")
	}
	return nil
}

// clean empties the output tree before anything is written. The input tree
// and the ledger directory are protected.
func (a *App) clean(direction layout.Direction, source, dest string) error {
	protected := []string{source}
	if a.ledger != nil {
		protected = append(protected, filepath.Dir(a.ledger.Path()))
	}
	slog.Info("cleaning output tree", "path", dest)
	if err := layout.Clean(dest, protected...); err != nil {
		return err
	}
	if a.ledger != nil {
		if err := a.ledger.Forget(direction.String()); err != nil {
			slog.Warn("failed to reset ledger after clean", "error", err)
		}
	}
	return nil
}

func (a *App) newBuildContext(req BuildRequest, source string) (buildContext, error) {
	a.mu.RLock()
	gen, strategy, cfg := a.descriptors, a.strategy, a.Config
	a.mu.RUnlock()

	roots, err := a.Roots(source)
	if err != nil {
		return buildContext{}, err
	}
	return buildContext{
		direction:   req.Direction,
		strategy:    strategy,
		roots:       roots,
		incremental: req.Incremental || cfg.Build.Incremental,
		generator:   gen,
	}, nil
}

func (a *App) runJobs(ctx context.Context, jobs []layout.Job, workers int, bc buildContext) ([]outcome, error) {
	if workers <= 0 {
		workers = a.config().Build.Workers
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) && len(jobs) > 0 {
		workers = len(jobs)
	}

	results := make([]outcome, len(jobs))
	queue := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i] = a.processJob(ctx, jobs[i], bc)
			}
		}()
	}

	var runErr error
feed:
	for i := range jobs {
		err := ctx.Err()
		if err == nil {
			select {
			case queue <- i:
				continue
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
		runErr = err
		for j := i; j < len(jobs); j++ {
			results[j] = outcome{err: err}
		}
		break feed
	}
	close(queue)
	wg.Wait()
	return results, runErr
}

func (a *App) processJob(ctx context.Context, job layout.Job, bc buildContext) outcome {
	_, span := observability.Tracer.Start(ctx, "app.processJob", trace.WithAttributes(
		attribute.String("module", job.Rel),
	))
	defer span.End()

	start := time.Now()
	var res outcome
	if bc.direction == layout.Reverse {
		res = a.reverseFile(job, bc)
	} else {
		res = a.forwardFile(job, bc)
	}
	direction := bc.direction.String()
	observability.TransformDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())

	for _, w := range res.warnings {
		slog.Warn("conversion warning", "module", job.Rel, "path", job.Input, "warning", w)
	}
	observability.TransformWarningsTotal.WithLabelValues(direction).Add(float64(len(res.warnings)))

	switch {
	case res.err != nil:
		span.SetStatus(codes.Error, res.err.Error())
		observability.FilesProcessedTotal.WithLabelValues(direction, "failed").Inc()
		slog.Error("conversion failed", "module", job.Rel, "path", job.Input, "error", res.err)
	case res.skipped:
		observability.FilesProcessedTotal.WithLabelValues(direction, "skipped").Inc()
		slog.Debug("module unchanged, skipped", "module", job.Rel)
	default:
		observability.FilesProcessedTotal.WithLabelValues(direction, "written").Inc()
		observability.DirectivesRewrittenTotal.WithLabelValues(direction).Add(float64(res.directives))
		slog.Debug("module converted", "module", job.Rel, "output", job.Output, "directives", res.directives)
	}
	return res
}

func (a *App) forwardFile(job layout.Job, bc buildContext) outcome {
	input, err := os.ReadFile(job.Input)
	if err != nil {
		return outcome{err: coreerrors.WrapPath(err, "read module", job.Input)}
	}
	key := ledger.Hash(append(input, a.fingerprint(bc.strategy, bc.roots)...))
	if bc.incremental && a.upToDate(bc.direction, job, key, job.Descriptor) {
		return outcome{skipped: true}
	}

	res, err := a.engine(bc.roots).Forward(job.Input, string(input))
	if err != nil {
		return outcome{err: err}
	}
	meta, err := bc.generator.Render(&descriptor.Tag{Strategy: string(bc.strategy), Roots: bc.roots})
	if err != nil {
		return outcome{err: coreerrors.Wrap(err, coreerrors.CodeInternal, "render descriptor")}
	}

	output := []byte(res.Text)
	if err := writeIfChanged(job.Output, output); err != nil {
		return outcome{err: err}
	}
	if err := writeIfChanged(job.Descriptor, meta); err != nil {
		return outcome{err: err}
	}
	a.remember(bc, job, key, output)
	return outcome{written: true, directives: res.Directives, warnings: res.Warnings}
}

func (a *App) reverseFile(job layout.Job, bc buildContext) outcome {
	input, err := os.ReadFile(job.Input)
	if err != nil {
		return outcome{err: coreerrors.WrapPath(err, "read module", job.Input)}
	}

	var warnings []string
	var tag descriptor.Tag
	meta, err := os.ReadFile(job.Descriptor)
	switch {
	case err == nil:
		res, err := descriptor.Read(job.Descriptor)
		if err != nil {
			return outcome{err: err}
		}
		if res.Attributes.Scriptlib != nil {
			tag = *res.Attributes.Scriptlib
		}
	case os.IsNotExist(err):
		warnings = append(warnings, "no "+descriptor.FileName+" next to the module; strategy inferred from the code")
	default:
		return outcome{err: coreerrors.WrapPath(err, "read descriptor", job.Descriptor)}
	}

	roots := bc.roots
	if len(a.config().Build.Roots) == 0 && len(tag.Roots) > 0 {
		roots = normalizeRoots(tag.Roots)
	}

	key := ledger.Hash(append(append(input, meta...), a.fingerprint(bc.strategy, roots)...))
	if bc.incremental && a.upToDate(bc.direction, job, key, "") {
		return outcome{skipped: true, warnings: warnings}
	}

	tagged, err := taggedStrategy(job.Descriptor, tag)
	if err != nil {
		return outcome{err: err, warnings: warnings}
	}
	res, err := a.engine(roots).Inverse(job.Input, string(input), tagged)
	if err != nil {
		return outcome{err: err, warnings: warnings}
	}

	output := []byte(res.Text)
	if err := writeIfChanged(job.Output, output); err != nil {
		return outcome{err: err, warnings: warnings}
	}
	a.remember(bc, job, key, output)
	return outcome{written: true, directives: res.Directives, warnings: append(warnings, res.Warnings...)}
}

// taggedStrategy validates the strategy recorded in a descriptor. An
// unknown tag cannot be undone safely.
func taggedStrategy(path string, tag descriptor.Tag) (rewrite.Strategy, error) {
	raw := strings.TrimSpace(tag.Strategy)
	if raw == "" {
		return "", nil
	}
	strategy, err := rewrite.ParseStrategy(raw)
	if err != nil {
		return "", &coreerrors.RoundTripAmbiguityError{Path: path, Found: raw, Reason: err.Error()}
	}
	return strategy, nil
}

// fingerprint covers every setting that changes the output of a module, so
// the ledger key changes with the configuration.
func (a *App) fingerprint(strategy rewrite.Strategy, roots []string) []byte {
	cfg := a.config()
	parts := []string{
		"\x00",
		string(strategy),
		strings.Join(roots, ","),
		strings.Join(cfg.Build.ReservedRoots, ","),
		strconv.Itoa(cfg.Build.TabWidth),
		strconv.FormatBool(cfg.Build.Fold()),
		strconv.FormatBool(cfg.Build.Verify()),
		strconv.FormatBool(cfg.Build.Strict),
		cfg.Declaration.Source,
		cfg.Declaration.Host,
		cfg.Descriptor.Actor,
		cfg.Descriptor.Timestamp,
		strconv.Itoa(cfg.Descriptor.HintScope),
		cfg.Descriptor.Signature,
	}
	return []byte(strings.Join(parts, "\x1f"))
}

// upToDate reports whether the ledger holds key for the module and the
// output on disk is still the one recorded.
func (a *App) upToDate(direction layout.Direction, job layout.Job, key, extra string) bool {
	rec, ok, err := a.ledger.Lookup(direction.String(), job.Rel)
	if err != nil {
		slog.Warn("ledger lookup failed", "module", job.Rel, "error", err)
		return false
	}
	if !ok || rec.InputHash != key {
		return false
	}
	output, err := os.ReadFile(job.Output)
	if err != nil || ledger.Hash(output) != rec.OutputHash {
		return false
	}
	if extra != "" {
		if _, err := os.Stat(extra); err != nil {
			return false
		}
	}
	return true
}

func (a *App) remember(bc buildContext, job layout.Job, key string, output []byte) {
	if a.ledger == nil {
		return
	}
	err := a.ledger.Record(ledger.FileRecord{
		Direction:  bc.direction.String(),
		Rel:        job.Rel,
		InputHash:  key,
		OutputHash: ledger.Hash(output),
		Strategy:   string(bc.strategy),
		RunID:      bc.runID,
	})
	if err != nil {
		slog.Warn("failed to record module in ledger", "module", job.Rel, "error", err)
	}
}

// writeIfChanged leaves files that already hold data untouched so their
// modification time only moves when the content does.
func writeIfChanged(path string, data []byte) error {
	if util.SameContent(path, data) {
		return nil
	}
	if err := util.WriteFileAtomic(path, data, 0o644); err != nil {
		return coreerrors.WrapPath(err, "write", path)
	}
	return nil
}

