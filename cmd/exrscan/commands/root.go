// Package commands defines the exrscan cobra command tree.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Exit codes returned through ExitError.
const (
	ExitOK          = 0
	ExitFailure     = 1   // Usage or config error, or at least one file failed.
	ExitSystemic    = 2   // Root unreadable, report unwritable, or an invariant violation.
	ExitInterrupted = 130 // SIGINT/SIGTERM before the batch finished.
)

// ExitError carries a process exit code out of a command. Err is nil when
// the problem has already been logged.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func exitCode(code int, err error) error {
	if code == ExitOK {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "exrscan",
		Short: "exrscan - EXR channel inventory",
		Long: `exrscan reads only the headers of OpenEXR files, groups every channel
(AOV) by priority-ordered classification rules, and reports what a batch of
renders contains.

Available commands:
  scan    - Scan a directory and report channel groups
  rules   - Show or test the active classification rules
  check   - Check host resources and configuration
  version - Show version information

Examples:
  exrscan scan ./renders                 # Text report on stdout
  exrscan scan ./renders -f json -o r.json
  exrscan scan ./renders -r rules.toml --watch
  exrscan rules test Beauty.R LightKey.G`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Config file (default: ./exrscan.{toml,yaml,json} if present)")

	root.AddCommand(newScanCmd())
	root.AddCommand(newRulesCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func configFlag(cmd *cobra.Command) string {
	s, _ := cmd.Flags().GetString("config")
	return s
}
