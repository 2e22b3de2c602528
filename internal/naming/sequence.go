package naming

import (
	"path"
	"path/filepath"
	"sort"
)

// FrameRange is an inclusive run of frame numbers.
type FrameRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Sequence summarizes the files that share a directory and stem.
type Sequence struct {
	Name       string       `json:"name" yaml:"name"` // dir/stem relative to the scan root; just dir for frame-only files.
	Files      int          `json:"files" yaml:"files"`
	First      int          `json:"first" yaml:"first"`
	Last       int          `json:"last" yaml:"last"`
	Step       int          `json:"step" yaml:"step"`
	Padding    int          `json:"padding" yaml:"padding"`
	Missing    int          `json:"missing" yaml:"missing"`
	Gaps       []FrameRange `json:"gaps,omitempty" yaml:"gaps,omitempty"`
	Duplicates []string     `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
}

// Complete reports whether the sequence has no gaps and no duplicate frames.
func (s Sequence) Complete() bool { return s.Missing == 0 && len(s.Duplicates) == 0 }

// Summarize groups paths under root into frame sequences. Files without a
// frame number are not part of any sequence. The step is the smallest
// spacing between frames, so renders on twos are not reported as gappy.
// Output is sorted by name.
func Summarize(root string, paths []string) []Sequence {
	frames := make(map[string][]int)
	padding := make(map[string]map[int]int)
	dups := make(map[string][]string)
	idx := NewFrameIndex()

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	for _, p := range sorted {
		dir := filepath.Dir(p)
		parsed := ParseFilename(filepath.Base(p))
		if !parsed.HasFrame {
			continue
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			rel = dir
		}
		name := path.Join(filepath.ToSlash(rel), parsed.Stem)
		if name == "." {
			name = filepath.Base(root)
		}

		if _, ok := idx.Claim(name, parsed.Frame, p); !ok {
			dups[name] = append(dups[name], p)
			continue
		}
		frames[name] = append(frames[name], parsed.Frame)
		if padding[name] == nil {
			padding[name] = make(map[int]int)
		}
		padding[name][parsed.Padding]++
	}

	out := make([]Sequence, 0, len(frames))
	for name, fs := range frames {
		sort.Ints(fs)
		s := Sequence{
			Name:       name,
			Files:      len(fs) + len(dups[name]),
			First:      fs[0],
			Last:       fs[len(fs)-1],
			Step:       minStep(fs),
			Padding:    commonest(padding[name]),
			Duplicates: dups[name],
		}
		// Missing frames sit on the step grid of the frame before the hole,
		// so an off-grid frame (1001, 1003, 1006) still reports 1005.
		for i := 1; i < len(fs); i++ {
			prev := fs[i-1]
			if n := (fs[i] - prev - 1) / s.Step; n > 0 {
				s.Gaps = append(s.Gaps, FrameRange{Start: prev + s.Step, End: prev + n*s.Step})
				s.Missing += n
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// commonest returns the most frequent padding, the narrowest on a tie.
func commonest(counts map[int]int) int {
	best, n := 0, 0
	for p, c := range counts {
		if c > n || (c == n && p < best) {
			best, n = p, c
		}
	}
	return best
}

func minStep(sorted []int) int {
	step := 0
	for i := 1; i < len(sorted); i++ {
		if d := sorted[i] - sorted[i-1]; d > 0 && (step == 0 || d < step) {
			step = d
		}
	}
	if step == 0 {
		return 1
	}
	return step
}
