package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/record-sync/internal/app"
	"github.com/stacklok/record-sync/internal/telemetry"
)

const defaultGracefulTimeout = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync engine and its control API",
	Long: `Run the sync engine for the configured owner and serve the control API.

The configuration file (--config) selects:
- the local store (sqlite, file or memory) and the remote store (postgres or memory)
- the synchronized table and the engine timings
- the control API address, the status directory and telemetry

The process runs until it receives SIGINT or SIGTERM.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("address", "", "Address to listen on, overriding api.address")
	runCmd.Flags().String("status-dir", "", "Directory the status of each owner is mirrored to, overriding statusDir")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	opts := []app.SyncAppOptions{
		app.WithConfig(cfg),
		app.WithMeterProvider(tel.MeterProvider()),
		app.WithTracerProvider(tel.TracerProvider()),
	}
	if address, _ := cmd.Flags().GetString("address"); address != "" {
		opts = append(opts, app.WithAddress(address))
	}
	if dir, _ := cmd.Flags().GetString("status-dir"); dir != "" {
		opts = append(opts, app.WithStatusDirectory(dir))
	}

	syncApp, err := app.NewSyncApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create sync app: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- syncApp.Start()
	}()

	select {
	case err := <-errCh:
		if stopErr := syncApp.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop sync app", "error", stopErr)
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Received shutdown signal")
	if err := syncApp.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return <-errCh
}
