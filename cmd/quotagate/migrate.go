package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"materna360/quotagate/pkg/cli"
	"materna360/quotagate/pkg/config"
	"materna360/quotagate/pkg/quota/ledger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the Postgres ledger schema",
	Long: `Apply or inspect the embedded Postgres migrations that create the
quota_usage table and the try_consume_quota and release_quota procedures.

The same migrations can be applied to a hosted database backing the rpc
ledger by pointing ledger.postgres.dsn at it.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE:  runMigrate(true),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the applied migration version",
	RunE:  runMigrate(false),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(apply bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Ledger.Postgres.DSN == "" {
			return cli.NewConfigError("ledger.postgres.dsn", fmt.Errorf("required for migrations"))
		}

		ctx := cmd.Context()
		pgCfg := cfg.Ledger.Postgres
		pgCfg.AutoMigrate = false
		l, err := openLedger(ctx, &config.LedgerConfig{Backend: "postgres", Postgres: pgCfg})
		if err != nil {
			return cli.NewCommandError("migrate", err)
		}
		defer l.Close()

		db := l.(*ledger.PostgresLedger).DB()
		if apply {
			if err := ledger.Migrate(ctx, db); err != nil {
				return cli.NewCommandError("migrate", err)
			}
		}

		version, err := ledger.MigrationVersion(ctx, db)
		if err != nil {
			return cli.NewCommandError("migrate", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
		return nil
	}
}
