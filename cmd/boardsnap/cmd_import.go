package main

import (
	"boardsnap/internal/notify"

	"github.com/spf13/cobra"
)

// importCmd replays a snapshot into a live board
var importCmd = &cobra.Command{
	Use:   "import <board-url> <snapshot>",
	Short: "Rebuild a snapshot in a board",
	Long: `Opens the target board and recreates every column, card and element
of the snapshot through the board editor.

The snapshot may be a local file or s3://bucket/key. Cards that fail are
skipped and reported; elements without an add control are written as text
where possible. Exit status 2 means the import finished with such issues.`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(timeout)
	defer cancel()

	l := openLedger()
	defer closeLedger(l)
	term := notify.NewTerminal(cmd.OutOrStdout())

	mgr, page, err := openBoard(ctx, args[0])
	if err != nil {
		return err
	}
	defer closeBrowser(mgr)

	run, err := newRunner(l, term).Import(ctx, page, args[0], args[1])
	term.Summary(run)
	return runOutcome(run, err)
}
