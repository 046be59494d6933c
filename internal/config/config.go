// Package config provides configuration loading and management for drive-mirror.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/drive-mirror/internal/telemetry"
)

const (
	// EnvPrefix prefixes every environment variable the service reads
	EnvPrefix = "DRIVE_MIRROR"

	// DefaultAddress matches the port the service has always listened on
	DefaultAddress = ":8069"

	// DefaultMountDirectory is the base directory every volume identifier is resolved under
	DefaultMountDirectory = "/media/nas_drives"

	// DefaultDrivesFile is the line-delimited list of volume identifiers
	DefaultDrivesFile = "mounted_drives.txt"

	// DefaultCredentialEnvVar is the environment variable holding the sudo password
	DefaultCredentialEnvVar = "RASPI_SUDO_PASSWORD"

	// DefaultSudoPath is the elevation helper used to run the mirroring utility
	DefaultSudoPath = "sudo"

	// DefaultRsyncPath is the mirroring utility
	DefaultRsyncPath = "rsync"
)

// ErrMissingCredential is returned when no elevation credential can be resolved
var ErrMissingCredential = errors.New("elevation credential is not set")

// ConfigurationError is a startup-fatal configuration problem. The process
// must not serve requests when one is returned.
type ConfigurationError struct {
	// Field names the offending setting
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Address is the HTTP listen address
	Address string `yaml:"address,omitempty"`

	// MountDirectory is the fixed prefix every volume identifier is resolved under
	MountDirectory string `yaml:"mountDirectory,omitempty"`

	// DrivesFile is the path of the line-delimited drive list
	DrivesFile string `yaml:"drivesFile,omitempty"`

	Credential *CredentialConfig `yaml:"credential,omitempty"`
	Mirror     *MirrorConfig     `yaml:"mirror,omitempty"`
	Lock       *LockConfig       `yaml:"lock,omitempty"`
	Sync       *SyncConfig       `yaml:"sync,omitempty"`
	Telemetry  *telemetry.Config `yaml:"telemetry,omitempty"`
}

// CredentialConfig defines where the elevation credential is read from
type CredentialConfig struct {
	// EnvVar is the environment variable holding the credential
	// Defaults to RASPI_SUDO_PASSWORD
	EnvVar string `yaml:"envVar,omitempty"`

	// File is an optional path to a file containing only the credential.
	// Takes priority over EnvVar when set.
	File string `yaml:"file,omitempty"`
}

// MirrorConfig defines how the external mirroring utility is invoked
type MirrorConfig struct {
	SudoPath  string `yaml:"sudoPath,omitempty"`
	RsyncPath string `yaml:"rsyncPath,omitempty"`
}

// LockConfig defines the run lock
type LockConfig struct {
	// File is an optional lock file shared with other drive-mirror processes
	// on the same host (e.g. the sync subcommand). Empty disables it.
	File string `yaml:"file,omitempty"`
}

// SyncConfig defines sync run behaviour
type SyncConfig struct {
	// RunTimeout bounds a whole sync run (e.g. "6h"). Empty means no deadline.
	RunTimeout string `yaml:"runTimeout,omitempty"`
}

// Default returns a configuration populated with the built-in defaults
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads configuration from a YAML file when a path option is given,
// otherwise it returns the defaults. The result is always validated.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.MountDirectory == "" {
		c.MountDirectory = DefaultMountDirectory
	}
	if c.DrivesFile == "" {
		c.DrivesFile = DefaultDrivesFile
	}
	if c.Credential == nil {
		c.Credential = &CredentialConfig{}
	}
	if c.Credential.EnvVar == "" {
		c.Credential.EnvVar = DefaultCredentialEnvVar
	}
	if c.Mirror == nil {
		c.Mirror = &MirrorConfig{}
	}
	if c.Mirror.SudoPath == "" {
		c.Mirror.SudoPath = DefaultSudoPath
	}
	if c.Mirror.RsyncPath == "" {
		c.Mirror.RsyncPath = DefaultRsyncPath
	}
	if c.Lock == nil {
		c.Lock = &LockConfig{}
	}
	if c.Sync == nil {
		c.Sync = &SyncConfig{}
	}
	if c.Telemetry == nil {
		c.Telemetry = &telemetry.Config{Enabled: true}
	}
	if c.Telemetry.Metrics == nil {
		c.Telemetry.Metrics = &telemetry.MetricsConfig{Enabled: true}
	}
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if strings.TrimSpace(c.Address) == "" {
		return configErrorf("address", "must not be empty")
	}

	if !filepath.IsAbs(c.MountDirectory) {
		return configErrorf("mountDirectory", "must be an absolute path, got %q", c.MountDirectory)
	}

	if strings.TrimSpace(c.DrivesFile) == "" {
		return configErrorf("drivesFile", "must not be empty")
	}

	if c.Mirror != nil {
		if strings.TrimSpace(c.Mirror.SudoPath) == "" {
			return configErrorf("mirror.sudoPath", "must not be empty")
		}
		if strings.TrimSpace(c.Mirror.RsyncPath) == "" {
			return configErrorf("mirror.rsyncPath", "must not be empty")
		}
	}

	if _, err := c.GetRunTimeout(); err != nil {
		return err
	}

	if err := c.Telemetry.Validate(); err != nil {
		return &ConfigurationError{Field: "telemetry", Err: err}
	}

	return nil
}

// GetRunTimeout returns the configured per-run deadline, zero when disabled
func (c *Config) GetRunTimeout() (time.Duration, error) {
	if c.Sync == nil || c.Sync.RunTimeout == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(c.Sync.RunTimeout)
	if err != nil {
		return 0, configErrorf("sync.runTimeout", "must be a valid duration (e.g., '30m', '6h'): %w", err)
	}
	if d < 0 {
		return 0, configErrorf("sync.runTimeout", "must not be negative")
	}

	return d, nil
}

// MetricsEnabled reports whether /metrics should be served
func (c *Config) MetricsEnabled() bool {
	return c.Telemetry != nil && c.Telemetry.Enabled && c.Telemetry.Metrics != nil && c.Telemetry.Metrics.Enabled
}

// ResolveCredential returns the elevation credential using the following priority:
// 1. Read from Credential.File if specified
// 2. Read from the Credential.EnvVar environment variable
//
// The credential from file will have leading/trailing whitespace trimmed.
// A missing credential is a ConfigurationError.
func (c *Config) ResolveCredential() (string, error) {
	credCfg := c.Credential
	if credCfg == nil {
		credCfg = &CredentialConfig{EnvVar: DefaultCredentialEnvVar}
	}

	if credCfg.File != "" {
		data, err := os.ReadFile(filepath.Clean(credCfg.File))
		if err != nil {
			return "", &ConfigurationError{
				Field: "credential.file",
				Err:   fmt.Errorf("failed to read credential from file %s: %w", credCfg.File, err),
			}
		}

		credential := strings.TrimSpace(string(data))
		if credential == "" {
			return "", &ConfigurationError{Field: "credential.file", Err: ErrMissingCredential}
		}
		return credential, nil
	}

	envVar := credCfg.EnvVar
	if envVar == "" {
		envVar = DefaultCredentialEnvVar
	}

	if credential := os.Getenv(envVar); credential != "" {
		return credential, nil
	}

	return "", &ConfigurationError{
		Field: "credential",
		Err:   fmt.Errorf("%w: set %s or credential.file", ErrMissingCredential, envVar),
	}
}
