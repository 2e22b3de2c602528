package commands

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/backmassage/exrscan/internal/check"
	"github.com/backmassage/exrscan/internal/config"
	"github.com/backmassage/exrscan/internal/display"
	"github.com/backmassage/exrscan/internal/exr"
	"github.com/backmassage/exrscan/internal/logging"
	"github.com/backmassage/exrscan/internal/pipeline"
	"github.com/backmassage/exrscan/internal/rules"
	"github.com/backmassage/exrscan/internal/term"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Scan a directory of EXR files and report channel groups",
		Long: `Scan discovers EXR files under dir, reads each header concurrently,
classifies every channel with the active rules, and writes one report.

Files whose header cannot be read are listed as failures and the scan
continues. Exit status is 1 when any file failed, 2 when the scan itself
could not run, and 130 when interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), configFlag(cmd))
			if err != nil {
				return exitCode(ExitFailure, err)
			}
			if len(args) == 1 {
				cfg.InputDir = args[0]
			}
			cfg.InputDir = config.NormalizeDirArg(cfg.InputDir)
			if err := cfg.Validate(); err != nil {
				return exitCode(ExitFailure, err)
			}
			return exitCode(runScan(cmd.Context(), &cfg, cmd.OutOrStdout()))
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runScan resolves paths, loads rules, and runs one batch, or one batch per
// rule reload in watch mode. Errors are logged; the returned error is only
// set when no logger could be built.
func runScan(ctx context.Context, cfg *config.Config, stdout io.Writer) (int, error) {
	log, err := logging.NewLogger(cfg)
	if err != nil {
		return ExitFailure, errors.Wrap(err, "open log file")
	}
	defer log.Close()

	if err := check.Preflight(cfg); err != nil {
		log.Error("%v", err)
		return ExitSystemic, nil
	}
	inputAbs, err := absPath(cfg.InputDir)
	if err != nil {
		log.Error("Cannot resolve input: %v", err)
		return ExitSystemic, nil
	}
	reportAbs, err := reportPath(cfg.ReportFile)
	if err != nil {
		log.Error("Cannot resolve report path: %v", err)
		return ExitSystemic, nil
	}
	if err := cfg.ValidatePaths(inputAbs, reportAbs); err != nil {
		log.Error("%v", err)
		log.Error("Choose a report path outside: %s", cfg.InputDir)
		return ExitFailure, nil
	}
	if cfg.Watch && cfg.RulesFile == "" {
		log.Error("--watch needs a rule file (--rules)")
		return ExitFailure, nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := rules.NewStore(cfg.RulesFile, log)
	s := &scanner{cfg: cfg, root: inputAbs, log: log, stdout: stdout}
	if cfg.Progress && term.IsTerminal(os.Stdout) {
		s.progress = os.Stdout
	}

	if !cfg.Watch {
		return s.once(ctx, store.Current()), nil
	}
	return s.watch(ctx, store), nil
}

// reportLockTimeout bounds the wait for another run's report lock.
const reportLockTimeout = 10 * time.Second

type scanner struct {
	cfg      *config.Config
	root     string
	log      *logging.Logger
	stdout   io.Writer
	progress io.Writer
}

// once runs a single batch with rs and writes its report.
func (s *scanner) once(ctx context.Context, rs *rules.RuleSet) int {
	report, err := pipeline.Run(ctx, pipeline.Options{
		Root:    s.root,
		Rules:   rs,
		Workers: s.cfg.Workers,
		Scan: pipeline.ScanOptions{
			Extensions: s.cfg.Extensions,
			Exclude:    s.cfg.Exclude,
			Recursive:  s.cfg.Recursive,
		},
		ReadStrategy: exr.ReadStrategy(s.cfg.ReadStrategy),
		SampleLimit:  s.cfg.SampleLimit,
		Outliers:     s.cfg.Outliers,
		Log:          s.log,
		Progress:     s.progress,
	})
	if err != nil {
		s.log.Error("Scan failed: %v", err)
		return ExitSystemic
	}
	if err := s.write(ctx, report); err != nil {
		s.log.Error("Cannot write report: %v", err)
		return ExitSystemic
	}

	switch {
	case report.Interrupted:
		return ExitInterrupted
	case report.Failed > 0:
		return ExitFailure
	default:
		return ExitOK
	}
}

func (s *scanner) write(ctx context.Context, report *pipeline.Report) error {
	if s.cfg.ReportFile == "" {
		return display.WriteReport(s.stdout, report, s.cfg.ReportFormat)
	}
	// An interrupted run still writes its partial report.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportLockTimeout)
	defer cancel()
	if err := display.WriteReportFile(ctx, s.cfg.ReportFile, report, s.cfg.ReportFormat); err != nil {
		return err
	}
	s.log.Success("Report written to %s", s.cfg.ReportFile)
	return nil
}

// watch runs a batch, then another after every successful rule reload,
// until ctx is cancelled. A reload during a batch queues one re-run.
func (s *scanner) watch(ctx context.Context, store *rules.Store) int {
	changed := make(chan struct{}, 1)
	w, err := store.Watch(s.cfg.WatchDebounce, func(*rules.RuleSet) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		s.log.Error("Cannot watch rules: %v", err)
		return ExitFailure
	}
	defer w.Close()

	code := s.once(ctx, store.Current())
	for code != ExitSystemic {
		s.log.Info("Watching %s for changes (Ctrl-C to stop)", store.Path())
		select {
		case <-ctx.Done():
			return code
		case <-changed:
			code = s.once(ctx, store.Current())
		}
	}
	return code
}

// absPath returns the absolute path with symlinks resolved, for comparing
// input vs report hierarchy.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// reportPath resolves the report file's directory; the file itself may not
// exist yet.
func reportPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs)), nil
	}
	return abs, nil
}
