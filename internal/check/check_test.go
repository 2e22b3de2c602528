package check

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/exrscan/internal/config"
)

type mockLogger struct {
	lines []string
}

func (m *mockLogger) add(tag, format string, args ...interface{}) {
	m.lines = append(m.lines, tag+" "+fmt.Sprintf(format, args...))
}

func (m *mockLogger) Info(f string, a ...interface{})    { m.add("INFO", f, a...) }
func (m *mockLogger) Success(f string, a ...interface{}) { m.add("SUCCESS", f, a...) }
func (m *mockLogger) Warn(f string, a ...interface{})    { m.add("WARN", f, a...) }
func (m *mockLogger) Error(f string, a ...interface{})   { m.add("ERROR", f, a...) }
func (m *mockLogger) Debug(f string, a ...interface{})   { m.add("DEBUG", f, a...) }

func (m *mockLogger) has(prefix string) bool {
	for _, l := range m.lines {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

func TestPreflight(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.exr")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	cfg := config.DefaultConfig()
	cfg.InputDir = dir
	assert.NoError(t, Preflight(&cfg))

	cfg.InputDir = file
	assert.True(t, errors.Is(Preflight(&cfg), ErrInputNotDir))

	cfg.InputDir = filepath.Join(dir, "missing")
	assert.True(t, errors.Is(Preflight(&cfg), ErrInputNotFound))
}

func TestRunCheckBuiltinRules(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Workers = 1
	log := &mockLogger{}

	assert.True(t, RunCheck(&cfg, log))
	assert.True(t, log.has("INFO Rules: built-in"))
	assert.False(t, log.has("ERROR"), "%v", log.lines)
}

func TestRunCheckRulesFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(good, []byte("rules:\n  - group: Base\n    priority: 1\n    match: prefix\n    pattern: R\n"), 0o644))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules:\n  - group: \"\"\n    priority: 1\n    match: prefix\n    pattern: R\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Workers = 1
	cfg.InputDir = dir

	cfg.RulesFile = good
	log := &mockLogger{}
	assert.True(t, RunCheck(&cfg, log))
	assert.True(t, log.has("SUCCESS Rules: "+good))
	assert.True(t, log.has("SUCCESS Input: "+dir))

	cfg.RulesFile = bad
	log = &mockLogger{}
	assert.False(t, RunCheck(&cfg, log))
	assert.True(t, log.has("ERROR Rules:"))
}

func TestRunCheckMissingInput(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Workers = 1
	cfg.InputDir = filepath.Join(t.TempDir(), "nope")
	log := &mockLogger{}

	assert.False(t, RunCheck(&cfg, log))
	assert.True(t, log.has("ERROR Input:"))
}
