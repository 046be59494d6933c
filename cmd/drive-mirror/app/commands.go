// Package app provides the command line interface of drive-mirror.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/drive-mirror/internal/config"
	"github.com/stacklok/drive-mirror/internal/logging"
	"github.com/stacklok/drive-mirror/internal/versions"
)

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "drive-mirror",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Mirror a primary drive onto secondary drives",
		Long: `drive-mirror mirrors the first drive of a drive list onto every other drive
with rsync --delete, one drive at a time. Runs are triggered over HTTP or from
the command line and never overlap.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogging()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.Bool("debug", false, "Enable debug logging")
	flags.Bool("log-console", false, "Log in human readable form instead of JSON")
	flags.String("config", "", "Path to configuration file (YAML format)")
	flags.String("drives-file", "", "Path of the drive list, one drive per line (default \""+config.DefaultDrivesFile+"\")")
	flags.String("mount-dir", "", "Directory every drive is mounted under (default \""+config.DefaultMountDirectory+"\")")
	flags.String("lock-file", "", "Lock file shared by every drive-mirror process on this host")
	flags.String("env-file", ".env", "Dotenv file read before the credential is resolved")

	for _, name := range []string{"debug", "log-console", "config", "drives-file", "mount-dir", "lock-file", "env-file"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newDrivesCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func setupLogging() error {
	if !viper.GetBool("debug") && !viper.GetBool("log-console") {
		return nil
	}

	level := logging.LevelFromEnv(config.EnvPrefix)
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}
	logging.Setup(logging.WithLevel(level), logging.WithConsole(viper.GetBool("log-console")))
	return nil
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("error retrieving format flag: %w", err)
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("error formatting version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}

// loadConfig reads the dotenv file and the optional YAML file, then applies
// flag and environment overrides
func loadConfig() (*config.Config, error) {
	if _, err := config.LoadDotEnv(viper.GetString("env-file")); err != nil {
		return nil, &config.ConfigurationError{Field: "env-file", Err: err}
	}

	var opts []config.Option
	if path := viper.GetString("config"); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}

	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if v := viper.GetString("address"); v != "" {
		cfg.Address = v
	}
	if v := viper.GetString("drives-file"); v != "" {
		cfg.DrivesFile = v
	}
	if v := viper.GetString("mount-dir"); v != "" {
		cfg.MountDirectory = v
	}
	if v := viper.GetString("lock-file"); v != "" {
		cfg.Lock.File = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
