// Package rules holds channel classification rules: the rule model, the
// pattern matcher, the immutable compiled RuleSet, the built-in default set,
// file loading, and a reloadable Store.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Unclassified is the reserved group for channels no rule matches.
const Unclassified = "Unclassified"

// MatchKind selects how a rule's pattern is compared with a channel name.
type MatchKind string

const (
	// MatchPrefix matches names that start with the pattern followed by
	// "." or the end of the name.
	MatchPrefix MatchKind = "prefix"
	// MatchWildcard matches the whole name against a glob with * and ?.
	MatchWildcard MatchKind = "wildcard"
)

// ParseMatchKind accepts the canonical names plus a few spellings seen in
// hand-written rule files.
func ParseMatchKind(s string) (MatchKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prefix", "exact-prefix", "exact_prefix":
		return MatchPrefix, nil
	case "wildcard", "glob", "pattern":
		return MatchWildcard, nil
	default:
		return "", fmt.Errorf("invalid match kind %q (use 'prefix' or 'wildcard')", s)
	}
}

// UnmarshalText lets TOML, YAML and JSON decoders accept the aliases.
func (k *MatchKind) UnmarshalText(b []byte) error {
	v, err := ParseMatchKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Rule assigns channels whose names match Pattern to Group. Lower Priority
// is evaluated first; equal priorities keep declaration order.
type Rule struct {
	Group    string    `toml:"group" yaml:"group" json:"group"`
	Priority int       `toml:"priority" yaml:"priority" json:"priority"`
	Kind     MatchKind `toml:"match" yaml:"match" json:"match"`
	Pattern  string    `toml:"pattern" yaml:"pattern" json:"pattern"`
}

func (r Rule) String() string {
	return fmt.Sprintf("%d %s %s:%q", r.Priority, r.Group, r.Kind, r.Pattern)
}

func (r Rule) validate() error {
	switch {
	case strings.TrimSpace(r.Group) == "":
		return fmt.Errorf("rule %s: group must not be empty", r)
	case r.Kind != MatchPrefix && r.Kind != MatchWildcard:
		return fmt.Errorf("rule %s: invalid match kind %q", r, r.Kind)
	case r.Pattern == "":
		return fmt.Errorf("rule %s: pattern must not be empty", r)
	case strings.ContainsAny(r.Pattern, "\x00\n"):
		return fmt.Errorf("rule %s: pattern contains control characters", r)
	}
	return nil
}

type compiledRule struct {
	Rule
	pat pattern
}

// RuleSet is an ordered, compiled, immutable set of rules. Build one with
// NewRuleSet, then share it by pointer; nothing mutates it afterwards.
type RuleSet struct {
	rules       []compiledRule
	groups      []string
	source      string
	fingerprint string
}

// NewRuleSet validates and compiles rules. source describes where they came
// from (a file path or "builtin"). Every invalid rule is reported.
func NewRuleSet(source string, rules []Rule) (*RuleSet, error) {
	var errs *multierror.Error
	for _, r := range rules {
		if err := r.validate(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		compiled[i] = compiledRule{Rule: r, pat: compile(r)}
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority < compiled[j].Priority
	})

	seen := make(map[string]bool)
	var groups []string
	for _, r := range rules {
		if !seen[r.Group] {
			seen[r.Group] = true
			groups = append(groups, r.Group)
		}
	}

	return &RuleSet{
		rules:       compiled,
		groups:      groups,
		source:      source,
		fingerprint: fingerprint(compiled),
	}, nil
}

// Classify returns the group of the first rule matching name, or
// Unclassified.
func (rs *RuleSet) Classify(name string) string {
	for i := range rs.rules {
		if rs.rules[i].pat.match(name) {
			return rs.rules[i].Group
		}
	}
	return Unclassified
}

// Rules returns a copy of the rules in evaluation order.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	for i := range rs.rules {
		out[i] = rs.rules[i].Rule
	}
	return out
}

// Groups returns the distinct group names in declaration order.
func (rs *RuleSet) Groups() []string {
	return append([]string(nil), rs.groups...)
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Source returns where the rules were loaded from.
func (rs *RuleSet) Source() string { return rs.source }

// Fingerprint is a short content hash of the evaluation-ordered rules.
func (rs *RuleSet) Fingerprint() string { return rs.fingerprint }

func fingerprint(rules []compiledRule) string {
	h := sha256.New()
	for _, r := range rules {
		fmt.Fprintf(h, "%d\x00%s\x00%s\x00%s\n", r.Priority, r.Group, r.Kind, r.Pattern)
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
