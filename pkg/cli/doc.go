/*
Package cli provides command-line helpers for the trainloop command.

Output Formatting:

Results render as text, JSON or CSV. Tabular results (anything implementing
Tabular) are aligned in text mode and are the only results CSV accepts:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
