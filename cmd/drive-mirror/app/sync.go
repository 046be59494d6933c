package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mirrorapp "github.com/stacklok/drive-mirror/internal/app"
	"github.com/stacklok/drive-mirror/internal/telemetry"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync from the command line",
		Long: `Mirror the primary drive onto every secondary drive once and print the
result as JSON. Use --lock-file to share the run lock with a running server.`,
		RunE: runSync,
	}

	cmd.Flags().Bool("dry-run", false, "Report what would change without changing it")

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("error retrieving dry-run flag: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// One-shot runs export no metrics endpoint
	cfg.Telemetry.Metrics = &telemetry.MetricsConfig{Enabled: false}

	app, err := mirrorapp.NewMirrorApp(ctx, mirrorapp.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	defer func() {
		if err := app.Stop(defaultGracefulTimeout); err != nil {
			slog.Warn("Failed to stop application", "error", err)
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopCancel := context.AfterFunc(sigCtx, func() {
		slog.Warn("Interrupted, cancelling sync")
		app.Cancel()
	})
	defer stopCancel()

	summary, err := app.Components().SyncCoordinator.RequestSync(ctx, dryRun)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
