package commands

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/backmassage/exrscan/internal/config"
	"github.com/backmassage/exrscan/internal/display"
	"github.com/backmassage/exrscan/internal/rules"
	"github.com/backmassage/exrscan/internal/term"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the effective classification rules in evaluation order",
		Long: `Rules prints the rule set a scan would use: --file when given, else the
rules file from the config, else the built-in rules.

Unlike scan, an invalid rule file is an error here rather than a fallback.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := loadRules(cmd)
			if err != nil {
				return exitCode(ExitFailure, err)
			}
			return display.WriteRules(cmd.OutOrStdout(), rs)
		},
	}
	cmd.PersistentFlags().StringP("file", "r", "", "Rule file (.toml, .yaml, .json)")
	cmd.PersistentFlags().String("color", string(config.ColorAuto), "Color output: auto | always | never")

	cmd.AddCommand(&cobra.Command{
		Use:   "test <channel>...",
		Short: "Show which group each channel name lands in",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := loadRules(cmd)
			if err != nil {
				return exitCode(ExitFailure, err)
			}
			return display.WriteRuleTest(cmd.OutOrStdout(), rs, args)
		},
	})
	return cmd
}

func loadRules(cmd *cobra.Command) (*rules.RuleSet, error) {
	color, _ := cmd.Flags().GetString("color")
	mode := config.ColorMode(color)
	switch mode {
	case config.ColorAuto, config.ColorAlways, config.ColorNever:
	default:
		return nil, errors.Newf("invalid color mode %q (use 'auto', 'always' or 'never')", color)
	}
	term.Configure(mode)

	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		cfg, err := config.Load(nil, configFlag(cmd))
		if err != nil {
			return nil, err
		}
		path = cfg.RulesFile
	}
	if path == "" {
		return rules.Default(), nil
	}
	return rules.Load(path)
}
