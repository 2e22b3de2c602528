package commands

import (
	"github.com/spf13/cobra"

	"github.com/backmassage/exrscan/internal/check"
	"github.com/backmassage/exrscan/internal/config"
	"github.com/backmassage/exrscan/internal/display"
	"github.com/backmassage/exrscan/internal/logging"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [dir]",
		Short: "Check host resources, descriptor limits, and the rule file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), configFlag(cmd))
			if err != nil {
				return exitCode(ExitFailure, err)
			}
			cfg.CheckOnly = true
			if len(args) == 1 {
				cfg.InputDir = config.NormalizeDirArg(args[0])
			}
			if err := cfg.Validate(); err != nil {
				return exitCode(ExitFailure, err)
			}

			log, err := logging.NewLogger(&cfg)
			if err != nil {
				return exitCode(ExitFailure, err)
			}
			defer log.Close()

			display.PrintBanner(cmd.OutOrStdout(), Version)
			if !check.RunCheck(&cfg, log) {
				return exitCode(ExitFailure, nil)
			}
			return nil
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}
