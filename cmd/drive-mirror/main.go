// Package main is the entry point for the drive-mirror server.
package main

import (
	"os"

	"github.com/stacklok/drive-mirror/cmd/drive-mirror/app"
	"github.com/stacklok/drive-mirror/internal/config"
	"github.com/stacklok/drive-mirror/internal/logging"
)

func main() {
	// Logs go to stderr to keep stdout clean for commands that output data
	logging.Setup(logging.WithLevel(logging.LevelFromEnv(config.EnvPrefix)))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
