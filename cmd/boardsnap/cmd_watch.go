package main

import (
	"context"
	"fmt"

	"boardsnap/internal/inbox"
	"boardsnap/internal/notify"

	"github.com/spf13/cobra"
)

// watchCmd imports snapshots dropped into a directory
var watchCmd = &cobra.Command{
	Use:   "watch <board-url> <dir>",
	Short: "Import every snapshot dropped into a directory",
	Long: `Keeps the board open and imports each .json file that appears in dir,
including files already there. Imported files move to dir/done, files that
failed to import to dir/failed.

Runs until interrupted.`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(0)
	defer cancel()
	boardURL, dir := args[0], args[1]

	l := openLedger()
	defer closeLedger(l)
	term := notify.NewTerminal(cmd.OutOrStdout())

	mgr, page, err := openBoard(ctx, boardURL)
	if err != nil {
		return err
	}
	defer closeBrowser(mgr)
	r := newRunner(l, term)

	w := inbox.New(dir, func(ctx context.Context, path string) error {
		run, err := r.Import(ctx, page, boardURL, path)
		term.Summary(run)
		return err
	})
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for snapshots. Press Ctrl+C to stop.\n", dir)
	if err := w.Run(ctx); err != nil {
		return err
	}

	st := w.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d snapshot(s), %d failed.\n", st.Handled, st.Failed)
	return nil
}
