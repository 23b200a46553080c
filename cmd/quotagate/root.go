package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"materna360/quotagate/pkg/cli"
)

var (
	// Global flags
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "quotagate",
	Short: "Materna360 daily AI-suggestion quota gate",
	Long: `quotagate serves the Materna360 AI suggestion endpoint behind a per-actor
daily quota.

Each request is attributed to a signed-in user or an anonymous browser
cookie, consumes one unit of today's quota (America/Sao_Paulo calendar day by
default), and gets the unit back if generation fails. Quota exhaustion is a
gentle decline, never an error.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("QUOTAGATE_CONFIG"),
		"config file path (defaults and QUOTAGATE_* environment when empty)")
}
