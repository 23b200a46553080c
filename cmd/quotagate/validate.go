package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"materna360/quotagate/pkg/cli"
	"materna360/quotagate/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load the configuration (file plus QUOTAGATE_* environment overrides),
apply defaults and report every invalid field.

Examples:
  quotagate validate --config config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err)
	}

	out := cmd.OutOrStdout()
	source := cfgFile
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(out, "✓ Configuration valid (%s)\n", source)

	return cli.NewFormatter(cli.FormatText).FormatTo(out, cli.Fields{
		{Key: "listen_address", Value: cfg.Server.ListenAddress},
		{Key: "daily_limit", Value: cfg.Quota.DailyLimit},
		{Key: "timezone", Value: cfg.Quota.Timezone},
		{Key: "ledger", Value: cfg.Ledger.Backend},
		{Key: "identity", Value: cfg.Identity.Mode},
		{Key: "generator", Value: cfg.Generator.Provider},
		{Key: "retention_days", Value: cfg.Quota.Retention.Days},
	})
}
