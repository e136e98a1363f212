package main

import (
	"context"
	"fmt"

	"boardsnap/internal/browser"
	"boardsnap/internal/logging"
	"boardsnap/internal/notify"
	"boardsnap/internal/panel"
	"boardsnap/internal/replay"

	"github.com/spf13/cobra"
)

// attachCmd keeps the export/import panel on a board tab
var attachCmd = &cobra.Command{
	Use:   "attach <board-url>",
	Short: "Serve the in-page Export/Import panel on a board",
	Long: `Opens the board (or binds to an already open tab at that URL when
the browser was attached via browser.debugger_url) and keeps a small panel
with Export and Import buttons mounted on it. Button presses are handled
one at a time; progress is shown on the page and in the terminal.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttach,
}

func runAttach(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(0)
	defer cancel()
	boardURL := args[0]

	mgr, err := startBrowser(ctx)
	if err != nil {
		return err
	}
	defer closeBrowser(mgr)

	page, err := attachOrOpen(ctx, mgr, boardURL)
	if err != nil {
		return err
	}
	waitForColumns(ctx, page)

	l := openLedger()
	defer closeLedger(l)
	term := notify.NewTerminal(cmd.OutOrStdout())
	obs := replay.ObserverFunc(func(level replay.Level, msg string) {
		term.Notify(level, msg)
		if err := page.ShowStatus(context.WithoutCancel(ctx), string(level), msg); err != nil {
			logging.Get(logging.CategoryPanel).Debug("status toast: %v", err)
		}
	})
	r := newRunner(l, obs)

	reqs, stop, err := page.PanelRequests(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = stop() }()

	keeper := panel.NewKeeper(page, cfg.GetPanelInterval())
	if _, err := keeper.Ensure(ctx); err != nil {
		return fmt.Errorf("mount panel: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Panel mounted on %s. Press Ctrl+C to stop.\n", boardURL)

	return panel.Run(ctx, keeper, reqs, func(ctx context.Context, req panel.Request) error {
		var err error
		switch req.Action {
		case panel.ActionExport:
			_, err = r.Export(ctx, page, boardURL, "")
		case panel.ActionImport:
			_, err = r.ImportData(ctx, page, boardURL, req.Name, req.Data)
		}
		return err
	})
}

// attachOrOpen binds to an open tab at boardURL in an attached browser,
// otherwise opens a new one.
func attachOrOpen(ctx context.Context, mgr *browser.SessionManager, boardURL string) (*browser.Page, error) {
	if getBrowserConfig().DebuggerURL != "" {
		if id, err := mgr.FindTarget(ctx, boardURL); err == nil {
			logging.Browser("binding to open tab %s", id)
			return mgr.Attach(ctx, id)
		}
	}
	return mgr.Open(ctx, boardURL)
}
