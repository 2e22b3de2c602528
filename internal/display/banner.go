package display

import (
	"fmt"
	"io"

	"github.com/backmassage/exrscan/internal/term"
)

// PrintBanner writes the ASCII art banner and version; Magenta when colors
// are enabled.
func PrintBanner(w io.Writer, version string) {
	fmt.Fprint(w, term.Magenta)
	fmt.Fprint(w, `  _____  ______ ___  ___ __ _ _ __
 / _ \ \/ / '__/ __|/ __/ _`+"`"+` | '_ \
|  __/>  <| |  \__ \ (_| (_| | | | |
 \___/_/\_\_|  |___/\___\__,_|_| |_|
`)
	fmt.Fprintf(w, "%s  EXR header scanner %s\n", term.NC, version)
}
