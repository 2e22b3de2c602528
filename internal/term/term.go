// Package term decides whether console output is styled and holds the
// escape sequences for the styles exrscan uses.
//
// The style strings are empty until [Configure] turns them on, so callers
// can splice them into format strings unconditionally. Output that must stay
// plain whatever the console mode (report files, pipes) should not read them
// directly.
package term

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/backmassage/exrscan/internal/config"
)

// Styles in use. NC resets.
var (
	Red     string
	Green   string
	Yellow  string
	Orange  string
	Magenta string
	Bold    string
	NC      string
)

var styles = []struct {
	dst  *string
	code string
}{
	{&Red, "\033[1;91m"},
	{&Green, "\033[1;92m"},
	{&Yellow, "\033[1;93m"},
	{&Orange, "\033[1;38;5;208m"},
	{&Magenta, "\033[1;95m"},
	{&Bold, "\033[1m"},
	{&NC, "\033[0m"},
}

// Configure sets every style for mode. logging.NewLogger calls it at startup.
func Configure(mode config.ColorMode) {
	on := wantColor(mode)
	for _, s := range styles {
		if on {
			*s.dst = s.code
		} else {
			*s.dst = ""
		}
	}
}

// Enabled reports whether styles are on.
func Enabled() bool { return NC != "" }

// wantColor honours an explicit mode. Auto needs a terminal on stdout, no
// NO_COLOR (https://no-color.org) and a TERM other than dumb.
func wantColor(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" || strings.EqualFold(os.Getenv("TERM"), "dumb") {
		return false
	}
	return IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is a terminal; Cygwin and MSYS ptys count.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
