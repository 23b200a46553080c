package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"materna360/quotagate/pkg/cli"
	"materna360/quotagate/pkg/quota/retention"
)

var pruneFlags struct {
	days int
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete ledger rows outside the retention window",
	Long: `Delete quota rows for days older than the retention window. The server
does this on quota.retention.schedule; this command runs it once.

Examples:
  # Use quota.retention.days from config
  quotagate prune

  # Keep only the last 7 days
  quotagate prune --days 7`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().IntVar(&pruneFlags.days, "days", 0, "override retention days (including today)")
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	days := cfg.Quota.Retention.Days
	if cmd.Flags().Changed("days") {
		days = pruneFlags.days
	}
	if days < 1 {
		return cli.NewConfigError("quota.retention.days", fmt.Errorf("retention is disabled, nothing to prune"))
	}

	cal, err := newCalendar(&cfg.Quota)
	if err != nil {
		return err
	}
	l, err := openLedger(cmd.Context(), &cfg.Ledger)
	if err != nil {
		return cli.NewCommandError("prune", err)
	}
	defer l.Close()

	pruner, err := retention.NewPruner(l, cal, retention.Config{Days: days})
	if err != nil {
		return cli.NewConfigError("quota.retention", err)
	}

	deleted, err := pruner.Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d rows before %s\n", deleted, pruner.Cutoff())
	return nil
}
