package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"materna360/quotagate/pkg/cli"
	"materna360/quotagate/pkg/quota"
)

var quotaFlags struct {
	output string
}

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect or adjust an actor's daily quota",
	Long: `Operate directly on the configured ledger.

Actors are written as they appear in logs: user:<id> for signed-in users and
anon:<token> for anonymous browsers.`,
}

var quotaUsageCmd = &cobra.Command{
	Use:   "usage <actor>",
	Short: "Show today's usage for an actor",
	Args:  cobra.ExactArgs(1),
	RunE:  quotaUsage,
}

var quotaReleaseCmd = &cobra.Command{
	Use:   "release <actor>",
	Short: "Give back one unit of today's quota",
	Args:  cobra.ExactArgs(1),
	RunE:  quotaRelease,
}

func init() {
	quotaCmd.PersistentFlags().StringVarP(&quotaFlags.output, "output", "o", "text", "output format: text, json")
	quotaCmd.AddCommand(quotaUsageCmd, quotaReleaseCmd)
	rootCmd.AddCommand(quotaCmd)
}

// openGate builds a gate over the configured ledger for one-off commands.
func openGate(cmd *cobra.Command) (*quota.Gate, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	cal, err := newCalendar(&cfg.Quota)
	if err != nil {
		return nil, nil, err
	}
	l, err := openLedger(cmd.Context(), &cfg.Ledger)
	if err != nil {
		return nil, nil, cli.NewCommandError(cmd.Name(), err)
	}

	gate, err := quota.NewGate(quota.Config{
		Ledger:     l,
		Calendar:   cal,
		DailyLimit: cfg.Quota.DailyLimit,
		Backend:    cfg.Ledger.Backend,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		l.Close()
		return nil, nil, cli.NewCommandError(cmd.Name(), err)
	}
	return gate, func() { l.Close() }, nil
}

func printUsage(cmd *cobra.Command, u quota.Usage) error {
	format, err := cli.ParseFormat(quotaFlags.output)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), cli.Fields{
		{Key: "actor", Value: u.ActorID},
		{Key: "date_key", Value: u.DateKey},
		{Key: "limit", Value: u.Limit},
		{Key: "used", Value: u.Used},
		{Key: "remaining", Value: u.Remaining},
		{Key: "resets_at", Value: u.ResetsAt},
	})
}

func quotaUsage(cmd *cobra.Command, args []string) error {
	gate, closeFn, err := openGate(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	u, err := gate.Usage(cmd.Context(), args[0])
	if err != nil {
		return cli.NewCommandError("quota usage", err)
	}
	return printUsage(cmd, u)
}

func quotaRelease(cmd *cobra.Command, args []string) error {
	gate, closeFn, err := openGate(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	actorID := args[0]
	before, err := gate.Usage(ctx, actorID)
	if err != nil {
		return cli.NewCommandError("quota release", err)
	}
	if before.Used == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s has no usage today, nothing to release\n", actorID)
		return printUsage(cmd, before)
	}

	gate.Release(ctx, quota.Decision{
		Consumed: true,
		ActorID:  actorID,
		DateKey:  before.DateKey,
	})

	after, err := gate.Usage(ctx, actorID)
	if err != nil {
		return cli.NewCommandError("quota release", err)
	}
	if after.Used >= before.Used {
		return cli.NewCommandError("quota release", fmt.Errorf("release did not take effect"))
	}
	return printUsage(cmd, after)
}
