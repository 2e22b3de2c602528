package rules

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleSet_PriorityWins(t *testing.T) {
	rs, err := NewRuleSet("test", []Rule{
		{Group: "B", Priority: 5, Kind: MatchWildcard, Pattern: "*.R"},
		{Group: "A", Priority: 1, Kind: MatchWildcard, Pattern: "diffuse*"},
	})
	require.NoError(t, err)

	assert.Equal(t, "A", rs.Classify("diffuse_direct.R"))
	assert.Equal(t, "B", rs.Classify("spec.R"))
	assert.Equal(t, Unclassified, rs.Classify("spec.G"))
}

func TestRuleSet_PrefixStopsAtSegmentBoundary(t *testing.T) {
	rs, err := NewRuleSet("test", []Rule{
		{Group: "A", Priority: 1, Kind: MatchPrefix, Pattern: "diffuse"},
		{Group: "B", Priority: 2, Kind: MatchPrefix, Pattern: "diffuse_direct"},
	})
	require.NoError(t, err)

	// "diffuse" is not a whole segment of "diffuse_direct.R", so the
	// lower-priority rule is the first that matches.
	assert.Equal(t, "B", rs.Classify("diffuse_direct.R"))
	assert.Equal(t, "A", rs.Classify("diffuse.R"))
	assert.Equal(t, "A", rs.Classify("diffuse"))
}

func TestRuleSet_TiesKeepDeclarationOrder(t *testing.T) {
	rs, err := NewRuleSet("test", []Rule{
		{Group: "first", Priority: 1, Kind: MatchWildcard, Pattern: "*"},
		{Group: "second", Priority: 1, Kind: MatchWildcard, Pattern: "*"},
		{Group: "early", Priority: 0, Kind: MatchPrefix, Pattern: "Z"},
	})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		assert.Equal(t, "first", rs.Classify("anything"))
	}
	assert.Equal(t, "early", rs.Classify("Z"))
	assert.Equal(t, []string{"early", "first", "second"}, groupsOf(rs.Rules()))
	assert.Equal(t, []string{"first", "second", "early"}, rs.Groups())
}

func TestRuleSet_Fingerprint(t *testing.T) {
	a, err := NewRuleSet("a", []Rule{{Group: "g", Priority: 1, Kind: MatchPrefix, Pattern: "x"}})
	require.NoError(t, err)
	b, err := NewRuleSet("b", []Rule{{Group: "g", Priority: 1, Kind: MatchPrefix, Pattern: "x"}})
	require.NoError(t, err)
	c, err := NewRuleSet("c", []Rule{{Group: "g", Priority: 2, Kind: MatchPrefix, Pattern: "x"}})
	require.NoError(t, err)

	assert.Len(t, a.Fingerprint(), 12)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Equal(t, "a", a.Source())
}

func TestNewRuleSet_ReportsEveryInvalidRule(t *testing.T) {
	_, err := NewRuleSet("bad", []Rule{
		{Group: "", Kind: MatchPrefix, Pattern: "x"},
		{Group: "ok", Kind: MatchPrefix, Pattern: "x"},
		{Group: "g", Kind: "regex", Pattern: "x"},
		{Group: "g", Kind: MatchWildcard, Pattern: ""},
	})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "3 errors occurred")
	assert.Contains(t, msg, "group must not be empty")
	assert.Contains(t, msg, "invalid match kind")
	assert.Contains(t, msg, "pattern must not be empty")
}

func TestDefault(t *testing.T) {
	rs := Default()
	assert.Same(t, rs, Default())
	assert.Equal(t, BuiltinSource, rs.Source())
	assert.Equal(t, len(DefaultRules()), rs.Len())

	tests := map[string]string{
		"R":                GroupBase,
		"A":                GroupBase,
		"Beauty.G":         GroupBase,
		"ZDepth":           GroupScene,
		"Translucency0.R":  GroupScene,
		"RenderStamp.R":    GroupTechnical,
		"Sun.B":            GroupLight,
		"LightMix.R":       GroupLight,
		"Light_Key.R":      GroupLight,
		"Cryptomatte00.R":  GroupCryptomatte,
		"CryptoObject.A":   GroupCryptomatte,
		"ID_Material.R":    GroupSceneObjects,
		"_reflect.G":       GroupSceneObjects,
		"diffuse_direct.R": Unclassified,
		"RGB":              Unclassified,
		"renderstamp.R":    Unclassified,
	}
	for name, want := range tests {
		assert.Equal(t, want, rs.Classify(name), name)
	}
}

func TestDecode_Formats(t *testing.T) {
	tomlSrc := `
[[rule]]
group = "Light"
priority = 1
match = "wildcard"
pattern = "light*.R"

[[rule]]
group = "Base"
priority = 0
match = "exact-prefix"
pattern = "R"
`
	yamlSrc := `
rules:
  - group: Light
    priority: 1
    match: glob
    pattern: "light*.R"
  - group: Base
    priority: 0
    match: prefix
    pattern: R
`
	jsonSrc := `{"rules":[
  {"group":"Light","priority":1,"match":"wildcard","pattern":"light*.R"},
  {"group":"Base","priority":0,"match":"prefix","pattern":"R"}
]}`

	want := []Rule{
		{Group: "Light", Priority: 1, Kind: MatchWildcard, Pattern: "light*.R"},
		{Group: "Base", Priority: 0, Kind: MatchPrefix, Pattern: "R"},
	}
	for ext, src := range map[string]string{".toml": tomlSrc, ".yaml": yamlSrc, ".yml": yamlSrc, ".JSON": jsonSrc} {
		t.Run(ext, func(t *testing.T) {
			got, err := Decode(ext, []byte(src))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		src  string
	}{
		{"unknown toml key", ".toml", "[[rule]]\ngroup = \"g\"\nmatch = \"prefix\"\npattern = \"x\"\ncolour = 1\n"},
		{"unknown yaml key", ".yaml", "rules:\n  - group: g\n    match: prefix\n    pattern: x\n    colour: 1\n"},
		{"unknown json key", ".json", `{"rules":[{"group":"g","match":"prefix","pattern":"x","colour":1}]}`},
		{"bad match kind", ".toml", "[[rule]]\ngroup = \"g\"\nmatch = \"regex\"\npattern = \"x\"\n"},
		{"empty", ".toml", ""},
		{"syntax", ".json", `{"rules":[`},
		{"extension", ".ini", "x=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.ext, []byte(tt.src))
			assert.Error(t, err)
		})
	}

	_, err := Decode(".toml", nil)
	assert.ErrorIs(t, err, ErrNoRules)
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()
	log := &recordingLogger{}

	assert.Same(t, Default(), LoadOrDefault("", log))
	assert.Empty(t, log.warns())

	assert.Same(t, Default(), LoadOrDefault(filepath.Join(dir, "missing.toml"), log))
	assert.Len(t, log.warns(), 1)

	bad := writeRules(t, dir, "bad.toml", "[[rule]]\ngroup = \"\"\nmatch = \"prefix\"\npattern = \"x\"\n")
	assert.Same(t, Default(), LoadOrDefault(bad, log))
	assert.Len(t, log.warns(), 2)

	good := writeRules(t, dir, "good.toml", "[[rule]]\ngroup = \"g\"\nmatch = \"prefix\"\npattern = \"x\"\n")
	rs := LoadOrDefault(good, log)
	assert.Equal(t, good, rs.Source())
	assert.Equal(t, "g", rs.Classify("x.R"))
	assert.Len(t, log.warns(), 2)
}

func TestStore_ReloadKeepsSnapshots(t *testing.T) {
	dir := t.TempDir()
	path := writeRules(t, dir, "rules.toml", ruleTOML("old", "x"))

	s := NewStore(path, nil)
	before := s.Current()
	assert.Equal(t, "old", before.Classify("x"))

	writeRules(t, dir, "rules.toml", ruleTOML("new", "x"))
	after, err := s.Reload()
	require.NoError(t, err)
	assert.Equal(t, "new", after.Classify("x"))
	assert.Same(t, after, s.Current())
	assert.Equal(t, "old", before.Classify("x"), "held snapshot must not change")

	writeRules(t, dir, "rules.toml", "not = [valid")
	kept, err := s.Reload()
	assert.Error(t, err)
	assert.Same(t, after, kept)
	assert.Same(t, after, s.Current())
}

func TestStore_BuiltinReloadIsNoop(t *testing.T) {
	s := NewStore("", nil)
	rs, err := s.Reload()
	require.NoError(t, err)
	assert.Same(t, Default(), rs)

	_, err = s.Watch(0, nil)
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeRules(t, dir, "rules.toml", ruleTOML("old", "x"))
	s := NewStore(path, nil)

	reloaded := make(chan *RuleSet, 4)
	w, err := s.Watch(20*time.Millisecond, func(rs *RuleSet) { reloaded <- rs })
	require.NoError(t, err)
	defer w.Close()

	writeRules(t, dir, "unrelated.toml", ruleTOML("noise", "x"))
	writeRules(t, dir, "rules.toml", ruleTOML("new", "x"))

	select {
	case rs := <-reloaded:
		assert.Equal(t, "new", rs.Classify("x"))
		assert.Equal(t, "new", s.Current().Classify("x"))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func ruleTOML(group, pattern string) string {
	return "[[rule]]\ngroup = \"" + group + "\"\npriority = 1\nmatch = \"prefix\"\npattern = \"" + pattern + "\"\n"
}

func writeRules(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func groupsOf(rules []Rule) []string {
	var out []string
	for _, r := range rules {
		out = append(out, r.Group)
	}
	return out
}

type recordingLogger struct {
	mu   sync.Mutex
	warn []string
}

func (l *recordingLogger) Info(string, ...interface{}) {}

func (l *recordingLogger) Warn(format string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warn = append(l.warn, format)
}

func (l *recordingLogger) warns() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warn...)
}
