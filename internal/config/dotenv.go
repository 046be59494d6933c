package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadDotEnv reads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables that are already set are never overwritten. A missing
// file is not an error; it returns false.
func LoadDotEnv(path string) (bool, error) {
	if path == "" {
		return false, nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("No dotenv file found", "path", path)
			return false, nil
		}
		return false, fmt.Errorf("failed to stat dotenv file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return false, fmt.Errorf("failed to parse dotenv file %s: %w", path, err)
	}

	loaded := 0
	for _, key := range v.AllKeys() {
		// viper lower-cases keys; environment variables are conventionally upper case
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return false, fmt.Errorf("failed to set %s from dotenv file: %w", name, err)
		}
		loaded++
	}

	slog.Debug("Loaded dotenv file", "path", path, "variables", loaded)
	return true, nil
}
