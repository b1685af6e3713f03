package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/rules"
)

var validateFlags struct {
	rulesFile string
	format    string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and a rule file",
	Long: `Validate the configuration and a rule file without starting the server.

Every invalid point in the rule file is reported, not just the first.

Examples:
  # Validate the rule file named in the config
  tollgate validate --config config.yaml

  # Validate a specific rule file and print its points as JSON
  tollgate validate --rules rules.yaml --format json`,
	RunE: validateRules,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.rulesFile, "rules", "r", "", "rule file (defaults to rules.file from the config)")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json, csv")
}

func validateRules(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := validateFlags.rulesFile
	if path == "" {
		path = cfg.Rules.File
	}
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "configuration valid, no rule file configured")
		return nil
	}

	set, err := rules.Load(path)
	if err != nil {
		var verr *rules.ValidationError
		if errors.As(err, &verr) {
			for _, fe := range verr.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", fe.Error())
			}
		}
		return cli.NewConfigError(path, err)
	}

	table := cli.NewTable("POINT", "POINT_RULE", "PATTERN", "RULE")
	for _, name := range set.Names {
		rule := set.Rules[name]
		pointRule := "-"
		if rule.PointRule != nil {
			pointRule = rule.PointRule.String()
		}
		keyRules := rule.MonitorKeyRules()
		if len(keyRules) == 0 {
			table.AddRow(name, pointRule, "-", "-")
			continue
		}
		for _, kr := range keyRules {
			table.AddRow(name, pointRule, kr.Pattern, kr.Rule.String())
		}
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}
