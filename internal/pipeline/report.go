package pipeline

import (
	"sort"
	"time"

	"github.com/backmassage/exrscan/internal/naming"
)

// Duration marshals as a Go duration string ("1.25s") in JSON and YAML.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// GroupSummary is the cross-file tally for one group.
type GroupSummary struct {
	Name     string   `json:"name" yaml:"name"`
	Channels int64    `json:"channels" yaml:"channels"`
	Files    int64    `json:"files" yaml:"files"`
	Samples  []string `json:"samples" yaml:"samples"`
}

// Failure records one file that could not be parsed.
type Failure struct {
	Path    string `json:"path" yaml:"path"`
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// Report is the result of one batch run. It defines shape only; sinks in
// the display package serialize it.
type Report struct {
	RunID           string    `json:"run_id" yaml:"run_id"`
	Root            string    `json:"root" yaml:"root"`
	RuleSource      string    `json:"rule_source" yaml:"rule_source"`
	RuleFingerprint string    `json:"rule_fingerprint" yaml:"rule_fingerprint"`
	Workers         int       `json:"workers" yaml:"workers"`
	StartedAt       time.Time `json:"started_at" yaml:"started_at"`
	WallTime        Duration  `json:"wall_time" yaml:"wall_time"`
	Interrupted     bool      `json:"interrupted" yaml:"interrupted"`

	Discovered int `json:"discovered" yaml:"discovered"`
	Succeeded  int `json:"succeeded" yaml:"succeeded"`
	Failed     int `json:"failed" yaml:"failed"`
	Skipped    int `json:"skipped" yaml:"skipped"`

	TotalChannels int64          `json:"total_channels" yaml:"total_channels"`
	HeaderBytes   int64          `json:"header_bytes" yaml:"header_bytes"`
	Groups        []GroupSummary `json:"groups" yaml:"groups"`

	ParseTotal     Duration `json:"parse_total" yaml:"parse_total"`
	ParseAvg       Duration `json:"parse_avg" yaml:"parse_avg"`
	ClassifyTotal  Duration `json:"classify_total" yaml:"classify_total"`
	ClassifyAvg    Duration `json:"classify_avg" yaml:"classify_avg"`
	FilesPerSecond float64  `json:"files_per_second" yaml:"files_per_second"`

	Failures  []Failure         `json:"failures" yaml:"failures"`
	Outliers  []Outlier         `json:"outliers,omitempty" yaml:"outliers,omitempty"`
	Sequences []naming.Sequence `json:"sequences,omitempty" yaml:"sequences,omitempty"`
}

// RunInfo carries the run-level fields the aggregate does not track.
type RunInfo struct {
	RunID           string
	Root            string
	RuleSource      string
	RuleFingerprint string
	Workers         int
	StartedAt       time.Time
	WallTime        time.Duration
	Discovered      int
	Interrupted     bool
	Outliers        bool
}

// Report renders the aggregate. Groups are sorted by name and failures by
// path, so the result is independent of merge order.
func (a *Aggregate) Report(info RunInfo) *Report {
	succeeded, failed, skipped := a.Counts()
	r := &Report{
		RunID:           info.RunID,
		Root:            info.Root,
		RuleSource:      info.RuleSource,
		RuleFingerprint: info.RuleFingerprint,
		Workers:         info.Workers,
		StartedAt:       info.StartedAt,
		WallTime:        Duration(info.WallTime),
		Interrupted:     info.Interrupted,
		Discovered:      info.Discovered,
		Succeeded:       succeeded,
		Failed:          failed,
		Skipped:         skipped,
		TotalChannels:   a.channels.Load(),
		HeaderBytes:     a.headerBytes.Load(),
		ParseTotal:      Duration(a.parseNanos.Load()),
		ClassifyTotal:   Duration(a.classifyNanos.Load()),
		Groups:          []GroupSummary{},
		Failures:        []Failure{},
	}

	if parsed := succeeded + failed; parsed > 0 {
		r.ParseAvg = Duration(a.parseNanos.Load() / int64(parsed))
		if info.WallTime > 0 {
			r.FilesPerSecond = float64(parsed) / info.WallTime.Seconds()
		}
	}
	if succeeded > 0 {
		r.ClassifyAvg = Duration(a.classifyNanos.Load() / int64(succeeded))
	}

	a.groups.Range(func(name string, t groupTally) bool {
		r.Groups = append(r.Groups, GroupSummary{
			Name:     name,
			Channels: t.channels,
			Files:    t.files,
			Samples:  append([]string{}, t.samples...),
		})
		return true
	})
	sort.Slice(r.Groups, func(i, j int) bool { return r.Groups[i].Name < r.Groups[j].Name })

	a.failures.Range(func(_ string, f Failure) bool {
		r.Failures = append(r.Failures, f)
		return true
	})
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].Path < r.Failures[j].Path })

	if info.Outliers {
		counts := make(map[string]int, a.fileChannels.Size())
		a.fileChannels.Range(func(path string, n int) bool {
			counts[path] = n
			return true
		})
		r.Outliers = findOutliers(counts)
	}
	return r
}

// Group returns the named group summary, or nil.
func (r *Report) Group(name string) *GroupSummary {
	for i := range r.Groups {
		if r.Groups[i].Name == name {
			return &r.Groups[i]
		}
	}
	return nil
}
