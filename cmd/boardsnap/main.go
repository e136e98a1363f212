// Command boardsnap exports niedersachsen.cloud boards to JSON snapshots and
// replays snapshots into live boards.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boardsnap/internal/config"
	"boardsnap/internal/logging"
	"boardsnap/internal/telemetry"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	cfg               *config.Config
	shutdownTelemetry = func(context.Context) error { return nil }
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "boardsnap",
	Short: "Export and import niedersachsen.cloud boards",
	Long: `boardsnap drives a niedersachsen.cloud board in Chrome.

Export reads every column, card and content element of a board and writes
a versioned JSON snapshot, resolving the ids of external tools through the
board API. Import rebuilds a snapshot in another board by operating the
board editor the way a user would.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}
		cfg = loaded

		if err := logging.Initialize(cfg.Logging.Options()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.BootDebug("config loaded from %s", configPath)

		shutdown, err := telemetry.Setup(cmd.Context(), cfg.Telemetry)
		if err != nil {
			logging.BootWarn("tracing disabled: %v", err)
		} else {
			shutdownTelemetry = shutdown
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logging.BootWarn("flush traces: %v", err)
		}
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Timeout for one-shot commands")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(browserCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// errPartial marks a run that finished with failed cards or degraded
// elements.
var errPartial = errors.New("run finished with issues")

func exitCode(err error) int {
	if errors.Is(err, errPartial) {
		return 2
	}
	return 1
}

// signalContext is cancelled on SIGINT/SIGTERM. limit > 0 also bounds it.
func signalContext(limit time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if limit <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, limit)
	return ctx, func() {
		cancel()
		stop()
	}
}
