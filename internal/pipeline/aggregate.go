package pipeline

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/backmassage/exrscan/internal/classify"
	"github.com/backmassage/exrscan/internal/exr"
)

// ErrAggregation marks a broken aggregate invariant (a file merged twice or
// a tally going negative). It is fatal for the run.
var ErrAggregation = errors.New("aggregation invariant violated")

// groupTally is stored by value; Compute replaces it rather than mutating
// it, so a concurrent Range never sees a half-updated sample slice.
type groupTally struct {
	channels int64
	files    int64
	samples  []string
}

// Aggregate accumulates per-file results from concurrent workers. Every
// method is safe for concurrent use. The final result does not depend on
// the order files were merged in.
type Aggregate struct {
	sampleLimit int

	groups       *xsync.MapOf[string, groupTally]
	failures     *xsync.MapOf[string, Failure]
	merged       *xsync.MapOf[string, struct{}]
	fileChannels *xsync.MapOf[string, int]

	succeeded     atomic.Int64
	failed        atomic.Int64
	skipped       atomic.Int64
	channels      atomic.Int64
	headerBytes   atomic.Int64
	parseNanos    atomic.Int64
	classifyNanos atomic.Int64
}

// NewAggregate returns an empty aggregate keeping up to sampleLimit sample
// channel names per group.
func NewAggregate(sampleLimit int) *Aggregate {
	return &Aggregate{
		sampleLimit:  sampleLimit,
		groups:       xsync.NewMapOf[string, groupTally](),
		failures:     xsync.NewMapOf[string, Failure](),
		merged:       xsync.NewMapOf[string, struct{}](),
		fileChannels: xsync.NewMapOf[string, int](),
	}
}

func (a *Aggregate) claim(path string) error {
	if _, loaded := a.merged.LoadOrStore(path, struct{}{}); loaded {
		return errors.Wrapf(ErrAggregation, "%s merged twice", path)
	}
	return nil
}

// MergeSuccess folds one classified file into the aggregate.
func (a *Aggregate) MergeSuccess(meta *exr.FileMetadata, g *classify.Grouped) error {
	if err := a.claim(meta.Path); err != nil {
		return err
	}

	for _, grp := range g.Groups {
		names := make([]string, len(grp.Channels))
		for i, ch := range grp.Channels {
			names[i] = ch.Name
		}
		n := int64(len(grp.Channels))
		var bad bool
		a.groups.Compute(grp.Name, func(old groupTally, _ bool) (groupTally, bool) {
			next := groupTally{
				channels: old.channels + n,
				files:    old.files + 1,
				samples:  mergeSamples(old.samples, names, a.sampleLimit),
			}
			bad = next.channels < 0 || next.files < 0
			return next, false
		})
		if bad {
			return errors.Wrapf(ErrAggregation, "group %q tally went negative", grp.Name)
		}
	}

	total := g.Total()
	a.fileChannels.Store(meta.Path, total)
	a.channels.Add(int64(total))
	a.headerBytes.Add(meta.HeaderSize)
	a.parseNanos.Add(int64(meta.ParseDuration))
	a.classifyNanos.Add(int64(g.Duration))
	a.succeeded.Add(1)
	return nil
}

// MergeFailure records a file whose header could not be read.
func (a *Aggregate) MergeFailure(path string, cause error, parseDuration time.Duration) error {
	if err := a.claim(path); err != nil {
		return err
	}
	a.failures.Store(path, Failure{Path: path, Kind: FailureKind(cause), Message: cause.Error()})
	a.parseNanos.Add(int64(parseDuration))
	a.failed.Add(1)
	return nil
}

// AddSkipped counts files that were discovered but never processed.
func (a *Aggregate) AddSkipped(n int) {
	a.skipped.Add(int64(n))
}

// Counts returns succeeded, failed and skipped totals so far.
func (a *Aggregate) Counts() (succeeded, failed, skipped int) {
	return int(a.succeeded.Load()), int(a.failed.Load()), int(a.skipped.Load())
}

// FailureKind names the failure class recorded for err: the header error
// kind, or "IOError" for anything else (missing file, permission, read
// errors).
func FailureKind(err error) string {
	if k, ok := exr.KindOf(err); ok {
		return k.String()
	}
	return "IOError"
}

// mergeSamples returns the sampleLimit lexicographically smallest distinct
// names from old and add. old is never modified.
func mergeSamples(old, add []string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	all := make([]string, 0, len(old)+len(add))
	all = append(all, old...)
	all = append(all, add...)
	sort.Strings(all)

	out := make([]string, 0, limit)
	for i, s := range all {
		if i > 0 && s == all[i-1] {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}
