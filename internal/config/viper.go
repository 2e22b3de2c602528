package config

// This file binds Config to viper. Sources, lowest precedence first:
// DefaultConfig, the config file (exrscan.{toml,yaml,json} in the working
// directory, or --config), EXRSCAN_* environment variables, then flags.
// Negated flags (e.g. --no-recursive) are applied last, after Unmarshal.

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every config key to form its environment
// variable: workers -> EXRSCAN_WORKERS.
const EnvPrefix = "EXRSCAN"

// ConfigName is the base name searched for in the working directory.
const ConfigName = "exrscan"

// flagKeys maps flag names to config keys. Flags not listed here are
// negations handled in applyNegatedFlags.
var flagKeys = map[string]string{
	"rules":          "rules",
	"workers":        "workers",
	"ext":            "extensions",
	"exclude":        "exclude",
	"recursive":      "recursive",
	"read-strategy":  "read_strategy",
	"report":         "report_file",
	"format":         "report_format",
	"samples":        "sample_limit",
	"watch":          "watch",
	"watch-debounce": "watch_debounce",
	"verbose":        "verbose",
	"color":          "color",
	"log-file":       "log_file",
	"log-format":     "log_format",
}

// RegisterFlags defines the scan flags on fs with defaults from
// DefaultConfig.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()

	fs.StringP("rules", "r", d.RulesFile, "Rule file (.toml, .yaml, .json); built-in rules when empty")
	fs.IntP("workers", "j", d.Workers, "Concurrent workers (0 = one per CPU)")
	fs.StringSlice("ext", d.Extensions, "File extensions to scan")
	fs.StringSlice("exclude", d.Exclude, "Glob patterns to skip (\"**\" matches across directories)")
	fs.Bool("recursive", d.Recursive, "Descend into subdirectories")
	fs.Bool("no-recursive", false, "Only scan the top-level directory")
	fs.String("read-strategy", string(d.ReadStrategy), "Header read strategy: mmap | file")

	fs.StringP("report", "o", d.ReportFile, "Write the report to this file instead of stdout")
	fs.StringP("format", "f", string(d.ReportFormat), "Report format: text | json | yaml")
	fs.Int("samples", d.SampleLimit, "Sample channel names kept per group")
	fs.Bool("no-outliers", false, "Do not flag files with unusual channel counts")

	fs.BoolP("watch", "w", d.Watch, "Re-run the scan whenever the rule file changes")
	fs.Duration("watch-debounce", d.WatchDebounce, "Quiet period before a changed rule file is reloaded")

	fs.BoolP("verbose", "v", d.Verbose, "Debug logging")
	fs.Bool("no-progress", false, "Disable the live progress line")
	fs.String("color", string(d.ColorMode), "Color output: auto | always | never")
	fs.Bool("force-color", false, "Same as --color=always")
	fs.Bool("no-color", false, "Same as --color=never")
	fs.String("log-file", d.LogFile, "Append log output to this file")
	fs.String("log-format", string(d.LogFormat), "Log format: console | json")
}

// Load resolves a Config from every source. configFile may be empty, in
// which case an exrscan.* file in the working directory is used if present.
// fs may be nil when no flags apply.
func Load(fs *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "read config file")
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, errors.Wrapf(err, "bind --%s", name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if fs != nil {
		applyNegatedFlags(fs, &cfg)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("input_dir", d.InputDir)
	v.SetDefault("rules", d.RulesFile)
	v.SetDefault("report_file", d.ReportFile)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("extensions", d.Extensions)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("recursive", d.Recursive)
	v.SetDefault("read_strategy", string(d.ReadStrategy))
	v.SetDefault("report_format", string(d.ReportFormat))
	v.SetDefault("sample_limit", d.SampleLimit)
	v.SetDefault("outliers", d.Outliers)
	v.SetDefault("watch", d.Watch)
	v.SetDefault("watch_debounce", d.WatchDebounce)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("progress", d.Progress)
	v.SetDefault("color", string(d.ColorMode))
	v.SetDefault("log_format", string(d.LogFormat))
}

// applyNegatedFlags applies --no-* and color shorthands. They only take
// effect when passed, so a config file or env value holds otherwise.
func applyNegatedFlags(fs *pflag.FlagSet, cfg *Config) {
	set := func(name string) bool {
		if !fs.Changed(name) {
			return false
		}
		b, err := fs.GetBool(name)
		return err == nil && b
	}
	if set("no-recursive") {
		cfg.Recursive = false
	}
	if set("no-outliers") {
		cfg.Outliers = false
	}
	if set("no-progress") {
		cfg.Progress = false
	}
	if set("force-color") {
		cfg.ColorMode = ColorAlways
	}
	if set("no-color") {
		cfg.ColorMode = ColorNever
	}
}
