/*
Package cli provides command-line helpers shared by the quotagate commands.

Output Formatting:

Commands print results as aligned text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, usage); err != nil {
		return err
	}

Text output understands Fields, an ordered list of key/value pairs.

Errors:

ConfigError and CommandError carry context for the user; ExitCode maps
them to process exit codes.

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
