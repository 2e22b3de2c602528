package display

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"

	"github.com/backmassage/exrscan/internal/config"
	"github.com/backmassage/exrscan/internal/pipeline"
)

// lockRetry is how often a held report lock is retried.
const lockRetry = 50 * time.Millisecond

// ErrReportLocked is returned when another exrscan holds the report lock
// until ctx is done.
var ErrReportLocked = errors.New("report file is locked by another run")

// WriteReportFile writes r to path while holding path+".lock", replacing
// the previous report atomically so readers never see a partial file. Text
// reports are always written unstyled.
func WriteReportFile(ctx context.Context, path string, r *pipeline.Report, format config.ReportFormat) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(err, "lock %s", path)
	}
	if !locked {
		return errors.Wrap(ErrReportLocked, path)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temp report in %s", dir)
	}
	defer os.Remove(tmp.Name())

	if err := writeReport(tmp, r, format, false); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}
