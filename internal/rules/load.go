package rules

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ErrNoRules is returned when a rule file decodes cleanly but defines nothing.
var ErrNoRules = errors.New("rule file defines no rules")

// Logger is the subset of the application logger used while loading rules.
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

// ruleFile is the on-disk shape. TOML files use [[rule]] tables; YAML and
// JSON files may use either "rule" or "rules" as the list key.
type ruleFile struct {
	Rule  []Rule `toml:"rule" yaml:"rule" json:"rule"`
	Rules []Rule `toml:"rules" yaml:"rules" json:"rules"`
}

func (f ruleFile) all() []Rule {
	return append(append([]Rule(nil), f.Rule...), f.Rules...)
}

// Load reads and compiles a rule file. The format is chosen by extension:
// .toml, .yaml/.yml, or .json. Unknown keys are an error.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read rules %s", path)
	}
	rules, err := Decode(filepath.Ext(path), data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse rules %s", path)
	}
	rs, err := NewRuleSet(path, rules)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid rules %s", path)
	}
	return rs, nil
}

// Decode parses rule file contents. ext selects the format and includes the
// leading dot.
func Decode(ext string, data []byte) ([]Rule, error) {
	var f ruleFile
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Newf("unknown key %q", undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, err
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Newf("unsupported rule file extension %q (use .toml, .yaml, .yml or .json)", ext)
	}

	rules := f.all()
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	return rules, nil
}

// LoadOrDefault loads path, falling back to Default when path is empty or
// cannot be loaded. A fallback caused by a bad file is logged as a warning.
func LoadOrDefault(path string, log Logger) *RuleSet {
	if path == "" {
		return Default()
	}
	rs, err := Load(path)
	if err != nil {
		if log != nil {
			log.Warn("Using built-in rules: %v", err)
		}
		return Default()
	}
	if log != nil {
		log.Info("Loaded %d rules from %s", rs.Len(), path)
	}
	return rs
}
