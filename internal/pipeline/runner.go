// Package pipeline orchestrates file discovery, concurrent per-file header
// parsing and classification, aggregation, and batch summary reporting.
package pipeline

import (
	"context"
	"io"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/backmassage/exrscan/internal/classify"
	"github.com/backmassage/exrscan/internal/exr"
	"github.com/backmassage/exrscan/internal/logging"
	"github.com/backmassage/exrscan/internal/naming"
	"github.com/backmassage/exrscan/internal/rules"
)

// Options configures one batch run.
type Options struct {
	Root         string
	Rules        *rules.RuleSet // nil: built-in rules
	Workers      int            // <= 0: runtime.NumCPU()
	Scan         ScanOptions
	ReadStrategy exr.ReadStrategy
	SampleLimit  int
	Outliers     bool
	Log          *logging.Logger // nil: discard
	Progress     io.Writer       // nil: no progress line
	OnTransition TransitionFunc

	// parse replaces exr.ParseFile in tests.
	parse func(path string, strategy exr.ReadStrategy) (*exr.FileMetadata, error)
}

// Run discovers files under opts.Root, parses and classifies each one on a
// bounded worker pool, and returns the aggregated report.
//
// A file whose header cannot be read is recorded as a failure and the run
// continues. Cancelling ctx stops dispatch: files already being processed
// finish and merge, the rest are counted as skipped, and the partial report
// is returned with Interrupted set. A classification or aggregation
// invariant violation stops the run and is returned as the error.
func Run(ctx context.Context, opts Options) (*Report, error) {
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}
	rs := opts.Rules
	if rs == nil {
		rs = rules.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	parse := opts.parse
	if parse == nil {
		parse = exr.ParseFile
	}
	strategy := opts.ReadStrategy
	if strategy == "" {
		strategy = exr.ReadMmap
	}

	start := time.Now()
	runID := uuid.NewString()

	files, err := Discover(opts.Root, opts.Scan)
	if err != nil {
		return nil, errors.Wrapf(err, "discover %s", opts.Root)
	}

	log.Info("Found %d files in %s", len(files), opts.Root)
	log.Info("Rules: %s (%d rules, %s)", rs.Source(), rs.Len(), rs.Fingerprint())
	log.Debug("Run %s with %d workers", runID, workers)

	agg := NewAggregate(opts.SampleLimit)
	prog := newProgress(opts.Progress, len(files))

	w := &worker{
		rules:    rs,
		agg:      agg,
		log:      log,
		prog:     prog,
		hook:     opts.OnTransition,
		strategy: strategy,
		parse:    parse,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	dispatched := 0
	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return w.process(gctx, path) })
		dispatched++
	}
	fatal := g.Wait()
	prog.clear()

	if fatal != nil {
		log.Error("Run aborted: %v", fatal)
		return nil, fatal
	}

	agg.AddSkipped(len(files) - dispatched)
	interrupted := ctx.Err() != nil

	report := agg.Report(RunInfo{
		RunID:           runID,
		Root:            opts.Root,
		RuleSource:      rs.Source(),
		RuleFingerprint: rs.Fingerprint(),
		Workers:         workers,
		StartedAt:       start,
		WallTime:        time.Since(start),
		Discovered:      len(files),
		Interrupted:     interrupted,
		Outliers:        opts.Outliers,
	})
	report.Sequences = naming.Summarize(opts.Root, files)
	if interrupted {
		log.Warn("Interrupted: %d files skipped", report.Skipped)
	}
	logSummary(log, report)
	return report, nil
}

// worker holds what every file needs; process is called concurrently.
type worker struct {
	rules    *rules.RuleSet
	agg      *Aggregate
	log      *logging.Logger
	prog     *progress
	hook     TransitionFunc
	strategy exr.ReadStrategy
	parse    func(string, exr.ReadStrategy) (*exr.FileMetadata, error)
}

// process takes one file from Discovered to a terminal state. Only
// invariant violations are returned; per-file failures are merged.
func (w *worker) process(ctx context.Context, path string) error {
	fr := newFileRun(path, w.hook)
	if ctx.Err() != nil {
		w.agg.AddSkipped(1)
		return fr.to(StateSkipped)
	}

	if err := fr.to(StateParsing); err != nil {
		return err
	}
	start := time.Now()
	meta, perr := w.parseWithRetry(ctx, path)
	if perr != nil {
		if err := fr.to(StateParseFailed); err != nil {
			return err
		}
		kind := FailureKind(perr)
		w.prog.interrupt(func() {
			w.log.With(zap.String("file", path), zap.String("kind", kind)).
				Warn("Skip (%s): %s", kind, filepath.Base(path))
		})
		if err := w.agg.MergeFailure(path, perr, time.Since(start)); err != nil {
			return err
		}
		w.prog.step(filepath.Base(path), true)
		return fr.to(StateMerged)
	}

	if err := fr.to(StateParsed); err != nil {
		return err
	}
	if err := fr.to(StateClassifying); err != nil {
		return err
	}
	grouped, err := classify.Classify(meta, w.rules)
	if err != nil {
		return err
	}
	if err := fr.to(StateClassified); err != nil {
		return err
	}
	if err := w.agg.MergeSuccess(meta, grouped); err != nil {
		return err
	}
	w.log.With(zap.String("file", path)).
		Debug("%d channels in %d parts (%s) -> %v", meta.TotalChannels(), len(meta.Parts), meta.Resolution(), grouped.Names())
	w.prog.step(filepath.Base(path), false)
	return fr.to(StateMerged)
}

func logSummary(log *logging.Logger, r *Report) {
	log.Info("==============================")
	log.Info("Done: %d parsed, %d failed, %d skipped of %d", r.Succeeded, r.Failed, r.Skipped, r.Discovered)
	log.Info("  Channels: %d in %d groups", r.TotalChannels, len(r.Groups))
	log.Info("  Wall time: %s (%.1f files/s)", r.WallTime, r.FilesPerSecond)
	log.Debug("  Parse: %s total, %s avg; classify: %s total, %s avg",
		r.ParseTotal, r.ParseAvg, r.ClassifyTotal, r.ClassifyAvg)

	for _, s := range r.Sequences {
		if s.Missing > 0 {
			log.Warn("  Sequence %s: %d frames missing in %d-%d", s.Name, s.Missing, s.First, s.Last)
		}
		if len(s.Duplicates) > 0 {
			log.Warn("  Sequence %s: %d duplicate frames", s.Name, len(s.Duplicates))
		}
	}
	for _, o := range r.Outliers {
		log.Outlier("  %s: %d channels (%s)", filepath.Base(o.Path), o.Channels, o.Class)
	}
	if r.Failed == 0 && !r.Interrupted {
		log.Success("  All files parsed")
	}
}
