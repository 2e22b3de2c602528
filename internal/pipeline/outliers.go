package pipeline

import (
	"sort"
)

// Outlier flags a file whose channel count sits outside the batch's
// interquartile fences, typically a render that dropped or gained AOVs.
type Outlier struct {
	Path     string `json:"path" yaml:"path"`
	Channels int    `json:"channels" yaml:"channels"`
	Class    string `json:"class" yaml:"class"` // "outlier" or "extreme"
}

const (
	classOutlier = "outlier"
	classExtreme = "extreme"
)

// minOutlierBatch is the smallest batch with meaningful quartiles.
const minOutlierBatch = 4

// fences are Tukey's inner (1.5 IQR) and outer (3 IQR) bounds around the
// middle half of a batch's channel counts.
type fences struct {
	inner, outer [2]float64 // {low, high}
}

// newFences reports false when the batch is too small or every middle
// count is the same; either way nothing can stand out.
func newFences(counts []int) (fences, bool) {
	if len(counts) < minOutlierBatch {
		return fences{}, false
	}
	sorted := append([]int(nil), counts...)
	sort.Ints(sorted)

	q1, q3 := quantile(sorted, 0.25), quantile(sorted, 0.75)
	spread := q3 - q1
	if spread <= 0 {
		return fences{}, false
	}
	return fences{
		inner: [2]float64{q1 - 1.5*spread, q3 + 1.5*spread},
		outer: [2]float64{q1 - 3*spread, q3 + 3*spread},
	}, true
}

func (f fences) class(n int) string {
	v := float64(n)
	switch {
	case v < f.outer[0] || v > f.outer[1]:
		return classExtreme
	case v < f.inner[0] || v > f.inner[1]:
		return classOutlier
	}
	return ""
}

// findOutliers returns the files whose channel count falls outside the
// batch's fences, sorted by path.
func findOutliers(counts map[string]int) []Outlier {
	ns := make([]int, 0, len(counts))
	for _, n := range counts {
		ns = append(ns, n)
	}
	f, ok := newFences(ns)
	if !ok {
		return nil
	}

	var out []Outlier
	for path, n := range counts {
		if c := f.class(n); c != "" {
			out = append(out, Outlier{Path: path, Channels: n, Class: c})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// quantile interpolates between the two counts either side of position
// q*(n-1) in sorted. q is in [0, 1].
func quantile(sorted []int, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	i := int(pos)
	if i+1 >= len(sorted) {
		return float64(sorted[len(sorted)-1])
	}
	frac := pos - float64(i)
	return float64(sorted[i]) + frac*float64(sorted[i+1]-sorted[i])
}
