// Package app provides application lifecycle management for the drive-mirror server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/stacklok/drive-mirror/internal/config"
	"github.com/stacklok/drive-mirror/internal/drives"
)

// MirrorApp encapsulates all components needed to run the drive-mirror server.
// It provides lifecycle management and graceful shutdown capabilities.
type MirrorApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// cancelFunc ends the application context, aborting a running mirror
	cancelFunc context.CancelFunc
}

// Start listens on the configured address and serves until Stop is called
func (app *MirrorApp) Start() error {
	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(ln)
}

// Serve serves on an existing listener. It blocks until the HTTP server stops
// or encounters an error.
func (app *MirrorApp) Serve(ln net.Listener) error {
	slog.Info("Server listening", "address", ln.Addr().String())
	if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// A running mirror is cancelled before the HTTP server drains.
func (app *MirrorApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	app.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if app.components.Telemetry != nil {
		if err := app.components.Telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down telemetry: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// Cancel ends the application context, aborting a running mirror without
// shutting the server down
func (app *MirrorApp) Cancel() {
	if app.cancelFunc != nil {
		app.cancelFunc()
	}
}

// Reload re-reads the drive list file
func (app *MirrorApp) Reload() (drives.Snapshot, error) {
	return app.components.Drives.Reload()
}

// GetConfig returns the application configuration
func (app *MirrorApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *MirrorApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the built components
func (app *MirrorApp) Components() *AppComponents {
	return app.components
}
