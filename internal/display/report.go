package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"github.com/backmassage/exrscan/internal/config"
	"github.com/backmassage/exrscan/internal/naming"
	"github.com/backmassage/exrscan/internal/pipeline"
	"github.com/backmassage/exrscan/internal/term"
)

// WriteReport serializes r to w in the given format. Text is styled only
// when colors are on and w is a terminal.
func WriteReport(w io.Writer, r *pipeline.Report, format config.ReportFormat) error {
	return writeReport(w, r, format, isTerminal(w))
}

func writeReport(w io.Writer, r *pipeline.Report, format config.ReportFormat, color bool) error {
	switch format {
	case config.ReportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case config.ReportYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case config.ReportText, "":
		return writeText(w, r, paletteFor(color))
	default:
		return errors.Newf("unknown report format %q", format)
	}
}

func writeText(w io.Writer, r *pipeline.Report, c palette) error {
	setStyling(c.on())

	var b strings.Builder
	fmt.Fprintf(&b, "%sRun %s%s\n", c.bold, r.RunID, c.nc)
	fmt.Fprintf(&b, "  Root:     %s\n", r.Root)
	fmt.Fprintf(&b, "  Rules:    %s (%s)\n", r.RuleSource, r.RuleFingerprint)
	fmt.Fprintf(&b, "  Workers:  %d\n", r.Workers)
	fmt.Fprintf(&b, "  Files:    %d discovered, %s, %s, %d skipped\n",
		r.Discovered,
		c.count(r.Succeeded, "parsed", c.green),
		c.count(r.Failed, "failed", c.red),
		r.Skipped)
	fmt.Fprintf(&b, "  Channels: %d (%s of headers read)\n", r.TotalChannels, FormatBytes(r.HeaderBytes))
	fmt.Fprintf(&b, "  Time:     %s wall, %.1f files/s\n", FormatDuration(r.WallTime), r.FilesPerSecond)
	fmt.Fprintf(&b, "  Parse:    %s total, %s avg\n", FormatDuration(r.ParseTotal), FormatDuration(r.ParseAvg))
	fmt.Fprintf(&b, "  Classify: %s total, %s avg\n", FormatDuration(r.ClassifyTotal), FormatDuration(r.ClassifyAvg))
	if r.Interrupted {
		fmt.Fprintf(&b, "  %sInterrupted before all files were dispatched%s\n", c.yellow, c.nc)
	}
	b.WriteString("\n")

	if len(r.Groups) > 0 {
		data := pterm.TableData{{"Group", "Channels", "Files", "Samples"}}
		for _, g := range r.Groups {
			data = append(data, []string{
				g.Name,
				strconv.FormatInt(g.Channels, 10),
				strconv.FormatInt(g.Files, 10),
				strings.Join(g.Samples, ", "),
			})
		}
		if err := table(&b, data); err != nil {
			return err
		}
	}

	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "%sFailures%s\n", c.red, c.nc)
		data := pterm.TableData{{"File", "Kind", "Message"}}
		for _, f := range r.Failures {
			data = append(data, []string{relPath(r.Root, f.Path), f.Kind, f.Message})
		}
		if err := table(&b, data); err != nil {
			return err
		}
	}

	if len(r.Outliers) > 0 {
		fmt.Fprintf(&b, "%sChannel-count outliers%s\n", c.orange, c.nc)
		data := pterm.TableData{{"File", "Channels", "Class"}}
		for _, o := range r.Outliers {
			data = append(data, []string{relPath(r.Root, o.Path), strconv.Itoa(o.Channels), o.Class})
		}
		if err := table(&b, data); err != nil {
			return err
		}
	}

	if len(r.Sequences) > 0 {
		fmt.Fprintf(&b, "%sSequences%s\n", c.bold, c.nc)
		data := pterm.TableData{{"Sequence", "Files", "Range", "Missing", "Duplicates"}}
		for _, s := range r.Sequences {
			rng := fmt.Sprintf("%d-%d", s.First, s.Last)
			if s.Step > 1 {
				rng += fmt.Sprintf(" x%d", s.Step)
			}
			missing := strconv.Itoa(s.Missing)
			if s.Missing > 0 {
				missing = c.yellow + missing + " " + formatGaps(s.Gaps) + c.nc
			}
			data = append(data, []string{s.Name, strconv.Itoa(s.Files), rng, missing, strconv.Itoa(len(s.Duplicates))})
		}
		if err := table(&b, data); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// formatGaps lists the first few missing ranges ("(1004-1005, 1010)").
func formatGaps(gaps []naming.FrameRange) string {
	const maxShown = 3
	parts := make([]string, 0, maxShown+1)
	for i, g := range gaps {
		if i == maxShown {
			parts = append(parts, fmt.Sprintf("+%d more", len(gaps)-maxShown))
			break
		}
		if g.Start == g.End {
			parts = append(parts, strconv.Itoa(g.Start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", g.Start, g.End))
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func table(b *strings.Builder, data pterm.TableData) error {
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "render table")
	}
	b.WriteString(s)
	b.WriteString("\n\n")
	return nil
}

// palette holds the escape sequences one render may use; the zero value
// renders plain text.
type palette struct {
	red, green, yellow, orange, bold, nc string
}

func paletteFor(color bool) palette {
	if !color || !term.Enabled() {
		return palette{}
	}
	return palette{
		red:    term.Red,
		green:  term.Green,
		yellow: term.Yellow,
		orange: term.Orange,
		bold:   term.Bold,
		nc:     term.NC,
	}
}

func (c palette) on() bool { return c.nc != "" }

func (c palette) count(n int, label, color string) string {
	if n == 0 {
		return fmt.Sprintf("%d %s", n, label)
	}
	return fmt.Sprintf("%s%d %s%s", color, n, label, c.nc)
}

// setStyling switches pterm's table styling for the next render. pterm keeps
// this globally, so every render sets it first.
func setStyling(on bool) {
	if on {
		pterm.EnableStyling()
	} else {
		pterm.DisableStyling()
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f)
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
