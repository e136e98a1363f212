package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"boardsnap/internal/browser"
	"boardsnap/internal/extract"
	"boardsnap/internal/ledger"
	"boardsnap/internal/logging"
	"boardsnap/internal/replay"
	"boardsnap/internal/runner"
)

// controlFile holds the DevTools URL of a browser started with
// `boardsnap browser launch`.
var controlFile = filepath.Join(".boardsnap", "control.txt")

// getBrowserConfig maps the loaded config, preferring a launched browser
// when one is running.
func getBrowserConfig() browser.Config {
	bc := browser.FromConfig(cfg.Browser)
	if bc.DebuggerURL != "" {
		return bc
	}
	if data, err := os.ReadFile(controlFile); err == nil {
		if url := strings.TrimSpace(string(data)); url != "" {
			logging.BootDebug("connecting to launched browser at %s", url)
			bc.DebuggerURL = url
		}
	}
	return bc
}

// startBrowser starts a session manager.
func startBrowser(ctx context.Context) (*browser.SessionManager, error) {
	mgr := browser.NewSessionManager(getBrowserConfig())
	if err := mgr.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return mgr, nil
}

// openBoard opens boardURL in a new tab.
func openBoard(ctx context.Context, boardURL string) (*browser.SessionManager, *browser.Page, error) {
	mgr, err := startBrowser(ctx)
	if err != nil {
		return nil, nil, err
	}
	page, err := mgr.Open(ctx, boardURL)
	if err != nil {
		closeBrowser(mgr)
		return nil, nil, err
	}
	return mgr, page, nil
}

// waitForColumns gives the board app time to render. An empty board never
// shows a column, so a timeout only warns.
func waitForColumns(ctx context.Context, page *browser.Page) {
	if err := page.WaitFor(ctx, extract.ColumnSelector, cfg.GetNavigationTimeout()); err != nil {
		logging.BrowserWarn("no columns rendered: %v", err)
	}
}

func closeBrowser(mgr *browser.SessionManager) {
	if mgr == nil {
		return
	}
	if err := mgr.Shutdown(context.Background()); err != nil {
		logging.BootWarn("failed to shutdown browser: %v", err)
	}
}

// openLedger opens the run ledger. Ledger problems never block a run.
func openLedger() *ledger.Ledger {
	if cfg.Ledger.Path == "" {
		return nil
	}
	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		logging.BootWarn("run ledger unavailable: %v", err)
		return nil
	}
	return l
}

func closeLedger(l *ledger.Ledger) {
	if l != nil {
		_ = l.Close()
	}
}

func newRunner(l *ledger.Ledger, obs replay.Observer) *runner.Runner {
	opts := []runner.Option{runner.WithObserver(obs)}
	if l != nil {
		opts = append(opts, runner.WithLedger(l))
	}
	return runner.New(cfg, opts...)
}

// runOutcome turns a finished run into the command's error.
func runOutcome(run *ledger.Run, err error) error {
	if err != nil {
		return err
	}
	if run != nil && run.Status == ledger.StatusPartial {
		return errPartial
	}
	return nil
}

// pageOpener opens one tab per API request in a shared browser.
type pageOpener struct {
	mgr *browser.SessionManager
}

func (o pageOpener) Open(ctx context.Context, boardURL string) (runner.Page, func(), error) {
	if o.mgr == nil {
		return nil, nil, errors.New("browser not started")
	}
	page, err := o.mgr.Open(ctx, boardURL)
	if err != nil {
		return nil, nil, err
	}
	waitForColumns(ctx, page)
	release := func() {
		if err := o.mgr.Close(context.Background(), page.Session().ID); err != nil {
			logging.BrowserWarn("close %s: %v", boardURL, err)
		}
	}
	return page, release, nil
}
