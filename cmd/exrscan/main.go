// Command exrscan reads OpenEXR headers across a directory tree, groups every
// channel by the active rule set, and reports per-group tallies.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/backmassage/exrscan/cmd/exrscan/commands"
)

func main() {
	root := commands.NewRootCmd()
	if err := root.Execute(); err != nil {
		var exit *commands.ExitError
		if errors.As(err, &exit) {
			if exit.Err != nil {
				fmt.Fprintf(os.Stderr, "exrscan: %v\n", exit.Err)
			}
			os.Exit(exit.Code)
		}
		fmt.Fprintf(os.Stderr, "exrscan: %v\n", err)
		os.Exit(commands.ExitFailure)
	}
}
