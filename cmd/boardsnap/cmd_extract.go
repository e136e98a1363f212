package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"boardsnap/internal/dom"
	"boardsnap/internal/notify"
	"boardsnap/internal/replay"
	"boardsnap/internal/resolver"
	"boardsnap/internal/snapshot"
	"boardsnap/internal/store"

	"github.com/spf13/cobra"
)

var (
	extractResolve bool
	extractOutput  string
)

// extractCmd exports a saved board page without a browser
var extractCmd = &cobra.Command{
	Use:   "extract <page.html>",
	Short: "Export a saved board page offline",
	Long: `Builds a snapshot from board HTML saved by the browser.

External tool ids are left empty unless --resolve is given, in which case
they are looked up through the board API using nbc.token.
Without --output the snapshot is written to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractResolve, "resolve", false, "Resolve external tool ids through the board API")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Output directory or s3:// location")
}

// offlineResolver performs no lookups.
type offlineResolver struct{}

func (offlineResolver) ContextID(context.Context, string, string) string { return "" }

func (offlineResolver) ToolID(context.Context, string) (string, error) { return "", nil }

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(timeout)
	defer cancel()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	root, err := dom.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	var ids snapshot.IdentityResolver = offlineResolver{}
	if extractResolve {
		ids = resolver.New(resolver.Options{
			BaseURL: cfg.NBC.BaseURL,
			Token:   cfg.NBC.Token,
			Timeout: cfg.GetRequestTimeout(),
		})
	}

	doc, rep := snapshot.NewSerializer(ids).Serialize(ctx, root)
	term := notify.NewTerminal(cmd.ErrOrStderr())
	for _, is := range rep.Issues {
		term.Notify(replay.LevelError, is.String())
	}

	if extractOutput == "" {
		if err := snapshot.Encode(cmd.OutOrStdout(), doc); err != nil {
			return err
		}
		term.Notify(replay.LevelSuccess, rep.Message())
		return nil
	}

	data, err := snapshot.Marshal(doc)
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.Store, extractOutput)
	if err != nil {
		return err
	}
	loc, err := st.Save(ctx, snapshot.FileName(time.Now()), data)
	if err != nil {
		return err
	}
	term.Notify(replay.LevelSuccess, rep.Message()+" -> "+loc)
	return nil
}
