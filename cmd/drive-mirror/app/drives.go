package app

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/stacklok/drive-mirror/internal/config"
	"github.com/stacklok/drive-mirror/internal/drives"
	"github.com/stacklok/drive-mirror/internal/mirror"
)

func newDrivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List the drives a sync would use",
		Long: `Read the drive list and print it in mirror order. The first drive is the
primary; every other drive is overwritten with its contents.`,
		RunE: runDrives,
	}
}

func runDrives(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry := drives.NewRegistry(afero.NewOsFs(), cfg.DrivesFile)
	snap, err := registry.Load()
	if err != nil {
		return &config.ConfigurationError{Field: "drivesFile", Err: err}
	}

	return printDrives(cmd, cfg, snap)
}

func printDrives(cmd *cobra.Command, cfg *config.Config, snap drives.Snapshot) error {
	out := cmd.OutOrStdout()
	if snap.Len() == 0 {
		_, err := fmt.Fprintln(out, "No mounted drives found")
		return err
	}

	paths := mirror.NewRsyncExecutor(cfg.MountDirectory)

	table := tablewriter.NewWriter(out)
	table.Header("#", "Drive", "Role", "Path")
	for i, name := range snap.Volumes() {
		role := "secondary"
		if i == 0 {
			role = "primary"
		}
		if err := table.Append(fmt.Sprint(i), name, role, paths.VolumePath(name)); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	if snap.Len() < 2 {
		_, err := fmt.Fprintln(out, "less than 2 mounted drives found, sync will be rejected")
		return err
	}
	return nil
}
