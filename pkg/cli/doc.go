/*
Package cli provides command-line helpers for the tollgate command.

Output Formatting:

Command results can be printed as text, JSON or CSV. Tabular results use
Table so that every format renders the same rows:

	table := cli.NewTable("POINT", "ADMITTED", "REJECTED")
	table.AddRow("configPublish", "500", "12")
	if err := cli.NewFormatter(cli.FormatText).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Progress Reporting:

Long simulations report progress on a single terminal line:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(total)
	progress.Update(done)
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

Exit Codes:

ExitCode maps command errors to process exit codes: 2 for configuration
errors, 3 for rejected admission checks, 1 for everything else.
*/
package cli
