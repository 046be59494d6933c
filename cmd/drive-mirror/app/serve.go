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
	"github.com/spf13/viper"

	mirrorapp "github.com/stacklok/drive-mirror/internal/app"
	"github.com/stacklok/drive-mirror/internal/config"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the drive-mirror HTTP server",
		Long: `Start the HTTP server. GET /sync?dry_run=<bool> mirrors the primary drive
onto every secondary drive and replies when the run has finished.

The elevation credential is read from RASPI_SUDO_PASSWORD (or the variable named
by credential.envVar, or credential.file). A .env file in the working directory
is read first. SIGHUP reloads the drive list.`,
		RunE: runServe,
	}

	cmd.Flags().String("address", "", "Address to listen on (default \""+config.DefaultAddress+"\")")
	if err := viper.BindPFlag("address", cmd.Flags().Lookup("address")); err != nil {
		slog.Error("Error binding address flag", "error", err)
	}

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("Starting drive-mirror server",
		"address", cfg.Address,
		"mount_directory", cfg.MountDirectory,
		"drives_file", cfg.DrivesFile)

	app, err := mirrorapp.NewMirrorApp(ctx, mirrorapp.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	return waitForShutdown(app, errChan)
}

// waitForShutdown reloads the drive list on SIGHUP and stops the app on
// SIGINT or SIGTERM, or when the server fails
func waitForShutdown(app *mirrorapp.MirrorApp, errChan <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case err := <-errChan:
			if err != nil {
				slog.Error("Server failed", "error", err)
				if stopErr := app.Stop(defaultGracefulTimeout); stopErr != nil {
					slog.Error("Failed to stop application", "error", stopErr)
				}
			}
			return err
		case <-hup:
			if _, err := app.Reload(); err != nil {
				slog.Error("Failed to reload drive list", "error", err)
			}
		case sig := <-quit:
			slog.Info("Received signal", "signal", sig.String())
			if err := app.Stop(defaultGracefulTimeout); err != nil {
				slog.Error("Shutdown did not complete cleanly", "error", err)
				return err
			}
			return <-errChan
		}
	}
}
