package display

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/backmassage/exrscan/internal/config"
	"github.com/backmassage/exrscan/internal/naming"
	"github.com/backmassage/exrscan/internal/pipeline"
	"github.com/backmassage/exrscan/internal/rules"
	"github.com/backmassage/exrscan/internal/term"
)

func sampleReport() *pipeline.Report {
	return &pipeline.Report{
		RunID:           "run-1",
		Root:            "/shots/sh010",
		RuleSource:      rules.BuiltinSource,
		RuleFingerprint: "abcdef012345",
		Workers:         4,
		StartedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		WallTime:        pipeline.Duration(1500 * time.Millisecond),
		Discovered:      5,
		Succeeded:       4,
		Failed:          1,
		TotalChannels:   20,
		HeaderBytes:     4096,
		Groups: []pipeline.GroupSummary{
			{Name: "Base", Channels: 16, Files: 4, Samples: []string{"A", "B"}},
			{Name: rules.Unclassified, Channels: 4, Files: 4, Samples: []string{"diffuse.R"}},
		},
		ParseTotal:     pipeline.Duration(8 * time.Millisecond),
		ParseAvg:       pipeline.Duration(2 * time.Millisecond),
		FilesPerSecond: 3.3,
		Failures: []pipeline.Failure{
			{Path: "/shots/sh010/f3.exr", Kind: "BadMagic", Message: "bad magic number"},
		},
	}
}

func TestWriteReportText(t *testing.T) {
	term.Configure(config.ColorNever)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), config.ReportText))
	out := buf.String()

	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "5 discovered, 4 parsed, 1 failed, 0 skipped")
	assert.Contains(t, out, "4.0 KiB")
	assert.Contains(t, out, "Base")
	assert.Contains(t, out, "diffuse.R")
	assert.Contains(t, out, "f3.exr")
	assert.Contains(t, out, "BadMagic")
	assert.NotContains(t, out, "/shots/sh010/f3.exr", "failures are shown relative to the root")
	assert.NotContains(t, out, "\033[", "no ANSI sequences with colors off")
	assert.NotContains(t, out, "Interrupted")
}

func TestWriteReportTextInterrupted(t *testing.T) {
	term.Configure(config.ColorNever)

	r := sampleReport()
	r.Interrupted = true
	r.Skipped = 3
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, r, config.ReportText))
	assert.Contains(t, buf.String(), "Interrupted")
}

func TestWriteReportTextSequences(t *testing.T) {
	term.Configure(config.ColorNever)

	r := sampleReport()
	r.Sequences = []naming.Sequence{
		{Name: "sh010/beauty", Files: 6, First: 1001, Last: 1010, Step: 1, Padding: 4, Missing: 4,
			Gaps: []naming.FrameRange{{Start: 1004, End: 1005}, {Start: 1008, End: 1009}}},
		{Name: "sh020/comp", Files: 3, First: 1, Last: 5, Step: 2, Padding: 4},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, r, config.ReportText))
	out := buf.String()

	assert.Contains(t, out, "sh010/beauty")
	assert.Contains(t, out, "4 (1004-1005, 1008-1009)")
	assert.Contains(t, out, "1-5 x2")
}

func TestFormatGaps(t *testing.T) {
	gaps := []naming.FrameRange{
		{Start: 1, End: 1}, {Start: 3, End: 4}, {Start: 7, End: 7}, {Start: 9, End: 9}, {Start: 12, End: 20},
	}
	assert.Equal(t, "(1, 3-4, 7, +2 more)", formatGaps(gaps))
	assert.Equal(t, "(5)", formatGaps([]naming.FrameRange{{Start: 5, End: 5}}))
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), config.ReportJSON))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "run-1", raw["run_id"])
	assert.Equal(t, "1.5s", raw["wall_time"])
	assert.Equal(t, float64(20), raw["total_channels"])
	assert.NotContains(t, raw, "outliers")

	var back pipeline.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, pipeline.Duration(1500*time.Millisecond), back.WallTime)
	assert.Equal(t, sampleReport().Groups, back.Groups)
	assert.Equal(t, sampleReport().Failures, back.Failures)
}

func TestWriteReportYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, sampleReport(), config.ReportYAML))

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "run-1", raw["run_id"])
	assert.Equal(t, "1.5s", raw["wall_time"])
	assert.Equal(t, "abcdef012345", raw["rule_fingerprint"])
}

func TestWriteReportUnknownFormat(t *testing.T) {
	err := WriteReport(&bytes.Buffer{}, sampleReport(), config.ReportFormat("xml"))
	assert.Error(t, err)
}

func TestWriteRules(t *testing.T) {
	term.Configure(config.ColorNever)

	var buf bytes.Buffer
	require.NoError(t, WriteRules(&buf, rules.Default()))
	out := buf.String()

	assert.Contains(t, out, rules.BuiltinSource)
	assert.Contains(t, out, rules.Default().Fingerprint())
	assert.Contains(t, out, "Cryptomatte")
	assert.Contains(t, out, "wildcard")
	assert.Contains(t, out, "Light*")
}

func TestWriteRuleTest(t *testing.T) {
	term.Configure(config.ColorNever)

	var buf bytes.Buffer
	require.NoError(t, WriteRuleTest(&buf, rules.Default(), []string{"R", "LightKey.R", "mystery"}))
	out := buf.String()

	assert.Contains(t, out, "LightKey.R")
	assert.Contains(t, out, rules.GroupLight)
	assert.Contains(t, out, rules.Unclassified)
}

func TestPrintBanner(t *testing.T) {
	term.Configure(config.ColorNever)

	var buf bytes.Buffer
	PrintBanner(&buf, "v1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
	assert.NotContains(t, buf.String(), "\033[")
}

func TestWriteReportStylesOnlyTerminals(t *testing.T) {
	term.Configure(config.ColorAlways)
	defer term.Configure(config.ColorNever)

	var piped bytes.Buffer
	require.NoError(t, WriteReport(&piped, sampleReport(), config.ReportText))
	assert.NotContains(t, piped.String(), "\033[")

	var styled bytes.Buffer
	require.NoError(t, writeReport(&styled, sampleReport(), config.ReportText, true))
	assert.Contains(t, styled.String(), term.Green+"4 parsed"+term.NC)
}
