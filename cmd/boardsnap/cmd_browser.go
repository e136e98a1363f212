package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"boardsnap/internal/logging"

	"github.com/spf13/cobra"
)

// browserCmd manages the Chrome instance boardsnap drives
var browserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Browser session commands",
}

var browserLaunchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch a browser that later commands reuse",
	Long: `Launches Chrome and keeps it running. Until it is stopped, other
boardsnap commands connect to it instead of starting their own, so a single
login serves every run.`,
	Args: cobra.NoArgs,
	RunE: browserLaunch,
}

var browserLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Open the board login page and keep the session",
	Long: `Opens the niedersachsen.cloud login page in a visible browser. Log in,
then press Ctrl+C: the session cookies are written to browser.session_store
and restored for later runs.`,
	Args: cobra.NoArgs,
	RunE: browserLogin,
}

func init() {
	browserCmd.AddCommand(browserLaunchCmd)
	browserCmd.AddCommand(browserLoginCmd)
}

// browserLaunch launches the browser instance
func browserLaunch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(0)
	defer cancel()
	logging.Browser("launching browser")

	// Never reuse a stale control file for the browser we are launching.
	if err := os.Remove(controlFile); err != nil && !os.IsNotExist(err) {
		logging.BootWarn("failed to remove browser control file: %v", err)
	}
	mgr, err := startBrowser(ctx)
	if err != nil {
		return err
	}
	defer closeBrowser(mgr)

	if err := os.MkdirAll(filepath.Dir(controlFile), 0o755); err == nil {
		if err := os.WriteFile(controlFile, []byte(mgr.ControlURL()), 0o644); err != nil {
			logging.BootWarn("failed to write browser control file: %v", err)
		}
	}
	defer func() {
		if err := os.Remove(controlFile); err != nil && !os.IsNotExist(err) {
			logging.BootWarn("failed to remove browser control file: %v", err)
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Browser launched. Control URL: %s\n", mgr.ControlURL())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to shutdown")
	<-ctx.Done()
	return nil
}

// browserLogin opens the login page and saves cookies on exit
func browserLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(0)
	defer cancel()

	cfg.Browser.Headless = false
	loginURL := strings.TrimRight(cfg.NBC.BaseURL, "/") + "/login"
	mgr, _, err := openBoard(ctx, loginURL)
	if err != nil {
		return err
	}
	defer closeBrowser(mgr)

	fmt.Fprintf(cmd.OutOrStdout(), "Log in at %s, then press Ctrl+C to save the session to %s\n",
		loginURL, cfg.Browser.SessionStore)
	<-ctx.Done()
	return nil
}
