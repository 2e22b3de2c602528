// Package config holds runtime configuration: defaults, validation, and
// the viper binding that layers a config file, EXRSCAN_* environment
// variables, and CLI flags over those defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// --- Enum types for validated string fields ---

// ReadStrategy selects how header bytes are read from disk.
type ReadStrategy string

const (
	ReadMmap ReadStrategy = "mmap" // Memory-map the file (default); falls back to file reads.
	ReadFile ReadStrategy = "file" // Positional reads on an *os.File.
)

// ReportFormat selects the report sink.
type ReportFormat string

const (
	ReportText ReportFormat = "text" // Human-readable tables (default).
	ReportJSON ReportFormat = "json"
	ReportYAML ReportFormat = "yaml"
)

// LogFormat selects the log encoder.
type LogFormat string

const (
	LogConsole LogFormat = "console" // Timestamped, optionally colored lines (default).
	LogJSON    LogFormat = "json"    // One JSON object per line.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig] and
// then overlaid by [Load] before being passed (by pointer) to packages that
// need it.
type Config struct {
	// Paths.
	InputDir   string `mapstructure:"input_dir"`
	RulesFile  string `mapstructure:"rules"`       // Empty: built-in rules.
	ReportFile string `mapstructure:"report_file"` // Empty: stdout.
	LogFile    string `mapstructure:"log_file"`    // Optional log file path.
	ConfigFile string `mapstructure:"-"`           // Set from --config; informational.

	// Scan behavior.
	Workers      int          `mapstructure:"workers"`    // Default: 0, meaning runtime.NumCPU().
	Extensions   []string     `mapstructure:"extensions"` // Default: [".exr"].
	Exclude      []string     `mapstructure:"exclude"`    // Glob patterns, "**" supported.
	Recursive    bool         `mapstructure:"recursive"`  // Default: true.
	ReadStrategy ReadStrategy `mapstructure:"read_strategy"`

	// Report.
	ReportFormat ReportFormat `mapstructure:"report_format"`
	SampleLimit  int          `mapstructure:"sample_limit"` // Sample channel names kept per group. Default: 5.
	Outliers     bool         `mapstructure:"outliers"`     // Default: true. Flag files with unusual channel counts.

	// Rule reload.
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"` // Default: 250ms.

	// Display and logging.
	Verbose   bool      `mapstructure:"verbose"`
	Progress  bool      `mapstructure:"progress"` // Default: true. Live progress line on a TTY.
	ColorMode ColorMode `mapstructure:"color"`    // Default: "auto".
	LogFormat LogFormat `mapstructure:"log_format"`
	CheckOnly bool      `mapstructure:"-"` // Run check diagnostics and exit.
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{
		Workers:       0,
		Extensions:    []string{".exr"},
		Recursive:     true,
		ReadStrategy:  ReadMmap,
		ReportFormat:  ReportText,
		SampleLimit:   5,
		Outliers:      true,
		WatchDebounce: 250 * time.Millisecond,
		Progress:      true,
		ColorMode:     ColorAuto,
		LogFormat:     LogConsole,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and numeric ranges and canonicalizes the
// extension list. When not in CheckOnly mode it also requires an input
// directory.
func (c *Config) Validate() error {
	switch c.ReadStrategy {
	case ReadMmap, ReadFile:
		// valid
	default:
		return errors.Newf("invalid read strategy %q (use 'mmap' or 'file')", c.ReadStrategy)
	}

	switch c.ReportFormat {
	case ReportText, ReportJSON, ReportYAML:
		// valid
	default:
		return errors.Newf("invalid report format %q (use 'text', 'json' or 'yaml')", c.ReportFormat)
	}

	switch c.LogFormat {
	case LogConsole, LogJSON:
		// valid
	default:
		return errors.Newf("invalid log format %q (use 'console' or 'json')", c.LogFormat)
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.Newf("invalid color mode %q (use 'auto', 'always' or 'never')", c.ColorMode)
	}

	if c.Workers < 0 {
		return errors.Newf("workers must be >= 0 (0 means one per CPU), got %d", c.Workers)
	}
	if c.SampleLimit < 0 {
		return errors.Newf("sample limit must be >= 0, got %d", c.SampleLimit)
	}
	if c.WatchDebounce < 0 {
		return errors.Newf("watch debounce must be >= 0, got %s", c.WatchDebounce)
	}

	exts, err := normalizeExtensions(c.Extensions)
	if err != nil {
		return err
	}
	c.Extensions = exts

	if c.CheckOnly {
		return nil
	}
	if c.InputDir == "" {
		return errors.New("need exactly one input_dir")
	}
	return nil
}

// normalizeExtensions lowercases extensions and adds the leading dot.
// Accepted forms: "exr", ".EXR", " .exr ".
func normalizeExtensions(raw []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, e := range raw {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.ContainsAny(e[1:], `./\`) {
			return nil, fmt.Errorf("invalid extension %q", e)
		}
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("at least one file extension is required")
	}
	return out, nil
}

// ValidatePaths ensures the report and log files do not land inside the
// scanned tree with a scanned extension, which would make a re-run pick
// them up. Arguments must be absolute, symlink-resolved paths.
func (c *Config) ValidatePaths(inputAbs, reportAbs string) error {
	if reportAbs == "" {
		return nil
	}
	sep := string(filepath.Separator)
	if reportAbs == inputAbs {
		return errors.New("report file must not be the input directory")
	}
	if strings.HasPrefix(reportAbs, inputAbs+sep) {
		ext := strings.ToLower(filepath.Ext(reportAbs))
		for _, e := range c.Extensions {
			if ext == e {
				return errors.Newf("report file %s would be picked up by the scan", reportAbs)
			}
		}
	}
	return nil
}
