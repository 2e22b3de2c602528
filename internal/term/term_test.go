package term

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/exrscan/internal/config"
)

func TestConfigure(t *testing.T) {
	defer Configure(config.ColorNever)

	Configure(config.ColorAlways)
	assert.True(t, Enabled())
	assert.Equal(t, "\033[1;91m", Red)
	assert.Equal(t, "\033[0m", NC)

	Configure(config.ColorNever)
	assert.False(t, Enabled())
	for _, s := range styles {
		assert.Empty(t, *s.dst)
	}
}

func TestWantColorAuto(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, wantColor(config.ColorAuto))
	assert.True(t, wantColor(config.ColorAlways), "an explicit mode wins over NO_COLOR")

	t.Setenv("NO_COLOR", "")
	t.Setenv("TERM", "DUMB")
	assert.False(t, wantColor(config.ColorAuto))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(nil))

	f, err := os.CreateTemp(t.TempDir(), "plain")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}
