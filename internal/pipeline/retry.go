package pipeline

import (
	"context"
	"io/fs"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/backmassage/exrscan/internal/exr"
)

// retryAction identifies which fix was applied before the next read
// attempt (or none).
type retryAction int

const (
	retryNone      retryAction = iota
	retryFileRead              // Switch from mmap to positional reads.
	retryTransient             // Same strategy again after a backoff.
)

const (
	maxAttempts  = 3
	retryBackoff = 25 * time.Millisecond
)

// retryState tracks the fallbacks applied across header read attempts for
// a single file.
type retryState struct {
	attempt     int
	maxAttempts int
	strategy    exr.ReadStrategy
}

func newRetryState(strategy exr.ReadStrategy) *retryState {
	return &retryState{maxAttempts: maxAttempts, strategy: strategy}
}

// advance inspects a failed read, applies the first fix that has not yet
// been used, and returns it. Header format errors, missing files, and
// permission errors are final.
//
// Order: mmap → file reads, then transient errno retry. One fix per call.
func (s *retryState) advance(err error) retryAction {
	s.attempt++
	if s.attempt >= s.maxAttempts {
		return retryNone
	}
	if _, isHeader := exr.KindOf(err); isHeader {
		return retryNone
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return retryNone
	}

	if s.strategy == exr.ReadMmap {
		s.strategy = exr.ReadFile
		return retryFileRead
	}
	if isTransient(err) {
		return retryTransient
	}
	return retryNone
}

// isTransient matches errno values network filesystems return for
// conditions that can clear on their own.
func isTransient(err error) bool {
	for _, errno := range []syscall.Errno{syscall.EINTR, syscall.EAGAIN, syscall.EIO, syscall.ESTALE, syscall.ETIMEDOUT} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// parseWithRetry reads the header of path, applying retryState fixes until
// a read succeeds, no fix applies, or ctx is cancelled.
func (w *worker) parseWithRetry(ctx context.Context, path string) (*exr.FileMetadata, error) {
	rs := newRetryState(w.strategy)
	for {
		meta, err := w.parse(path, rs.strategy)
		if err == nil {
			return meta, nil
		}
		action := rs.advance(err)
		if action == retryNone {
			return nil, err
		}
		w.log.Debug("Retry %s (attempt %d, %s): %v", path, rs.attempt+1, rs.strategy, err)
		if action == retryTransient {
			select {
			case <-ctx.Done():
				return nil, err
			case <-time.After(retryBackoff * time.Duration(rs.attempt)):
			}
		}
	}
}
