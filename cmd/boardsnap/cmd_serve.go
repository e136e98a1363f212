package main

import (
	"errors"

	"boardsnap/internal/server"

	"github.com/spf13/cobra"
)

var serveAddr string

// serveCmd runs the HTTP control API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control API",
	Long: `Serves export, import and the run history over HTTP:

  POST /api/export     {"board": url, "target": dir|s3://...}
  POST /api/import     {"board": url, "snapshot": path|s3://...} or {"board": url, "document": {...}}
  GET  /api/runs       ?limit=N
  GET  /api/runs/{id}

Runs execute one at a time in a shared browser.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(0)
	defer cancel()

	l := openLedger()
	if l == nil {
		return errors.New("serve needs a run ledger: set ledger.path")
	}
	defer closeLedger(l)

	mgr, err := startBrowser(ctx)
	if err != nil {
		return err
	}
	defer closeBrowser(mgr)

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv := server.New(newRunner(l, nil), l, pageOpener{mgr: mgr})
	return srv.ListenAndServe(ctx, addr)
}
