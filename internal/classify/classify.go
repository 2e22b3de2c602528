// Package classify assigns every channel of a parsed EXR file to a group
// using a rules.RuleSet.
package classify

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/backmassage/exrscan/internal/exr"
	"github.com/backmassage/exrscan/internal/rules"
)

// Group is one named bucket of channels in first-encounter order.
type Group struct {
	Name     string
	Channels []exr.Channel
}

// Grouped is the classification of one file. Groups appear in the order
// their first channel was encountered, walking parts then channels.
type Grouped struct {
	Path        string
	Groups      []Group
	RuleSource  string
	Fingerprint string
	Duration    time.Duration
}

// Total returns the number of classified channels.
func (g *Grouped) Total() int {
	n := 0
	for _, grp := range g.Groups {
		n += len(grp.Channels)
	}
	return n
}

// Lookup returns the named group, or nil.
func (g *Grouped) Lookup(name string) *Group {
	for i := range g.Groups {
		if g.Groups[i].Name == name {
			return &g.Groups[i]
		}
	}
	return nil
}

// Names returns the group names in encounter order.
func (g *Grouped) Names() []string {
	out := make([]string, len(g.Groups))
	for i, grp := range g.Groups {
		out[i] = grp.Name
	}
	return out
}

// Classify groups every channel of meta. It never fails for a well-formed
// meta and rule set; an error means the partition check failed, which is a
// programming error and should stop the run.
func Classify(meta *exr.FileMetadata, rs *rules.RuleSet) (*Grouped, error) {
	if meta == nil || rs == nil {
		return nil, errors.AssertionFailedf("classify: nil metadata or rule set")
	}
	start := time.Now()

	out := &Grouped{
		Path:        meta.Path,
		RuleSource:  rs.Source(),
		Fingerprint: rs.Fingerprint(),
	}
	index := make(map[string]int)
	for _, part := range meta.Parts {
		for _, ch := range part.Channels {
			name := rs.Classify(ch.Name)
			i, ok := index[name]
			if !ok {
				i = len(out.Groups)
				index[name] = i
				out.Groups = append(out.Groups, Group{Name: name})
			}
			out.Groups[i].Channels = append(out.Groups[i].Channels, ch)
		}
	}

	if err := checkPartition(meta, out); err != nil {
		return nil, err
	}
	out.Duration = time.Since(start)
	return out, nil
}

func checkPartition(meta *exr.FileMetadata, g *Grouped) error {
	if got, want := g.Total(), meta.TotalChannels(); got != want {
		return errors.AssertionFailedf("classify %s: groups hold %d channels, file has %d", meta.Path, got, want)
	}
	for _, grp := range g.Groups {
		if len(grp.Channels) == 0 {
			return errors.AssertionFailedf("classify %s: empty group %q", meta.Path, grp.Name)
		}
	}
	return nil
}
