// Package app provides application lifecycle management for the record sync service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stacklok/record-sync/internal/config"
	pkgsync "github.com/stacklok/record-sync/internal/sync"
)

// SyncApp encapsulates all components needed to run the sync engine and its
// control API. It provides lifecycle management and graceful shutdown.
type SyncApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start initializes the engine and serves the control API.
// It blocks until the HTTP server stops or encounters an error.
func (app *SyncApp) Start() error {
	if err := app.components.Engine.Initialize(app.ctx); err != nil {
		return fmt.Errorf("failed to initialize sync engine: %w", err)
	}

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// Detection stops first, then the HTTP server, then the stores are closed.
func (app *SyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	app.components.Engine.Cleanup()
	// Final statuses reach the persistence before the stores close.
	app.components.Engine.FlushStatus()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := app.httpServer.Shutdown(shutdownCtx)

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *SyncApp) GetConfig() *config.Config {
	return app.config
}

// GetEngine returns the sync engine
func (app *SyncApp) GetEngine() *pkgsync.Engine {
	return app.components.Engine
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *SyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
