package main

import (
	"boardsnap/internal/notify"

	"github.com/spf13/cobra"
)

var exportOutput string

// exportCmd writes a snapshot of a live board
var exportCmd = &cobra.Command{
	Use:   "export <board-url>",
	Short: "Export a board to a JSON snapshot",
	Long: `Opens the board, reads every column, card and content element and
writes board-export-v8.7-<timestamp>.json.

The output may be a local directory or an s3://bucket/prefix location.

Examples:
  boardsnap export https://niedersachsen.cloud/boards/65a1... -o exports
  boardsnap export https://niedersachsen.cloud/boards/65a1... -o s3://boards/klasse-7a`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output directory or s3:// location (default: store.output_dir)")
}

func runExport(cmd *cobra.Command, args []string) error {
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
	waitForColumns(ctx, page)

	run, err := newRunner(l, term).Export(ctx, page, args[0], exportOutput)
	term.Summary(run)
	return runOutcome(run, err)
}
