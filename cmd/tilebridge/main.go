// Package main is the entry point for the tilebridge CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"tilebridge/pkg/bridge"
	"tilebridge/pkg/config"
	"tilebridge/pkg/logger"
	"tilebridge/pkg/shortcuts"
	"tilebridge/pkg/state"
	"tilebridge/pkg/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tilebridge",
	Short: "tilebridge - persistent state bridge for tiling scripts",
	Long: `tilebridge keeps window, layout and surface-group state for tiling
scripts and serves it to them over a WebSocket gateway.

The state commands operate directly on the configured backend, which is
useful for inspecting or repairing what scripts have stored.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get().String())
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// coreModules is shared by the server and the offline state commands.
func coreModules() fx.Option {
	return fx.Options(
		fx.Supply(config.Path(configPath)),
		config.Module,
		logger.Module,
		state.Module,
		shortcuts.Module,
		bridge.Module,
	)
}

// withBridge starts the core modules, hands the bridge and its store to fn
// and stops the app again.
func withBridge(fn func(ctx context.Context, b *bridge.Bridge, kv state.KV, cfg *config.Config) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		b   *bridge.Bridge
		kv  state.KV
		cfg *config.Config
	)

	app := fx.New(
		coreModules(),
		fx.Populate(&b, &kv, &cfg),
		fx.NopLogger,
	)

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("starting app: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := app.Stop(stopCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping app: %v\n", err)
		}
	}()

	if cfg.State.Backend == config.BackendMemory {
		fmt.Fprintln(os.Stderr, "Warning: state backend is memory; nothing is read from or written to persistent storage.")
	}

	return fn(ctx, b, kv, cfg)
}
