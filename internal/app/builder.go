package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"

	"github.com/stacklok/drive-mirror/internal/api"
	"github.com/stacklok/drive-mirror/internal/config"
	"github.com/stacklok/drive-mirror/internal/drives"
	"github.com/stacklok/drive-mirror/internal/lock"
	"github.com/stacklok/drive-mirror/internal/mirror"
	msync "github.com/stacklok/drive-mirror/internal/sync"
	"github.com/stacklok/drive-mirror/internal/telemetry"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultReadTimeout       = 10 * time.Second
	defaultIdleTimeout       = 60 * time.Second

	// A sync response is only written once every mirror has finished, so
	// responses are not bounded by default.
	defaultWriteTimeout = 0
)

// MirrorAppOptions is a function that configures the mirror app builder
type MirrorAppOptions func(*mirrorAppConfig) error

// mirrorAppConfig collects what NewMirrorApp builds from.
// It supports dependency injection for testing while providing sensible defaults for production
type mirrorAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	fs         afero.Fs
	executor   mirror.Executor
	locker     lock.Locker
	credential *mirror.Credential
	telemetry  *telemetry.Telemetry

	// HTTP server options
	address      string
	middlewares  []func(http.Handler) http.Handler
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
}

func baseConfig(opts ...MirrorAppOptions) (*mirrorAppConfig, error) {
	cfg := &mirrorAppConfig{
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
		idleTimeout:  defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		cfg.config = config.Default()
	}
	if cfg.address == "" {
		cfg.address = cfg.config.Address
	}
	if cfg.fs == nil {
		cfg.fs = afero.NewOsFs()
	}

	return cfg, nil
}

// NewMirrorApp builds every component and returns an application ready to Start.
// A missing drive list or credential is returned as a *config.ConfigurationError.
func NewMirrorApp(
	ctx context.Context,
	opts ...MirrorAppOptions,
) (*MirrorApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	credential, err := resolveCredential(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.telemetry == nil {
		cfg.telemetry, err = telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.config.Telemetry))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	// Ensure telemetry is flushed if a later step fails
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			if shutdownErr := cfg.telemetry.Shutdown(context.Background()); shutdownErr != nil {
				slog.Warn("Failed to shut down telemetry", "error", shutdownErr)
			}
		}
	}()

	driveMetrics, err := telemetry.NewDriveMetrics(cfg.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create drive metrics: %w", err)
	}
	driveMetrics.RecordVolumes(ctx, registry.Snapshot().Len())
	driveService := NewDriveService(registry, driveMetrics)

	// Create application context; cancelling it aborts a running mirror
	appCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	syncCoordinator, err := buildSyncComponents(appCtx, cfg, registry, credential)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer, err := buildHTTPServer(appCtx, cfg, syncCoordinator, driveService)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	cleanupNeeded = false

	return &MirrorApp{
		config: cfg.config,
		components: &AppComponents{
			Drives:          driveService,
			SyncCoordinator: syncCoordinator,
			Telemetry:       cfg.telemetry,
		},
		httpServer: httpServer,
		cancelFunc: cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address, overriding the configured one
func WithAddress(addr string) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithFilesystem sets the filesystem the drive list is read from (for testing)
func WithFilesystem(fs afero.Fs) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.fs = fs
		return nil
	}
}

// WithExecutor allows injecting a custom mirror executor (for testing)
func WithExecutor(e mirror.Executor) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.executor = e
		return nil
	}
}

// WithLocker allows injecting a custom run lock (for testing)
func WithLocker(l lock.Locker) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.locker = l
		return nil
	}
}

// WithCredential sets the elevation credential instead of resolving it from the configuration
func WithCredential(c mirror.Credential) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		if c == "" {
			return &config.ConfigurationError{Field: "credential", Err: config.ErrMissingCredential}
		}
		cfg.credential = &c
		return nil
	}
}

// WithTelemetry allows injecting pre-built telemetry providers
func WithTelemetry(t *telemetry.Telemetry) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.telemetry = t
		return nil
	}
}

// loadRegistry reads the drive list and logs what was found
func loadRegistry(b *mirrorAppConfig) (*drives.Registry, error) {
	registry := drives.NewRegistry(b.fs, b.config.DrivesFile)

	snap, err := registry.Load()
	if err != nil {
		return nil, &config.ConfigurationError{Field: "drivesFile", Err: err}
	}

	logDrives(snap)
	return registry, nil
}

func logDrives(snap drives.Snapshot) {
	if snap.Len() == 0 {
		slog.Warn("No mounted drives found")
		return
	}
	for i, name := range snap.Volumes() {
		slog.Info("Found drive", "name", name, "primary", i == 0)
	}
}

func resolveCredential(b *mirrorAppConfig) (mirror.Credential, error) {
	if b.credential != nil {
		return *b.credential, nil
	}

	credential, err := b.config.ResolveCredential()
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			return "", err
		}
		return "", &config.ConfigurationError{Field: "credential", Err: err}
	}
	return mirror.Credential(credential), nil
}

// buildSyncComponents builds the executor, run lock and coordinator
func buildSyncComponents(
	ctx context.Context,
	b *mirrorAppConfig,
	registry *drives.Registry,
	credential mirror.Credential,
) (msync.Coordinator, error) {
	slog.Info("Initializing sync components")

	if b.executor == nil {
		b.executor = mirror.NewRsyncExecutor(
			b.config.MountDirectory,
			mirror.WithSudoPath(b.config.Mirror.SudoPath),
			mirror.WithRsyncPath(b.config.Mirror.RsyncPath),
			mirror.WithTracerProvider(b.telemetry.TracerProvider()),
		)
	}

	if b.locker == nil {
		b.locker = lock.New(b.config.Lock.File)
		if b.config.Lock.File != "" {
			slog.Info("Run lock shared through lock file", "path", b.config.Lock.File)
		}
	}

	runTimeout, err := b.config.GetRunTimeout()
	if err != nil {
		return nil, err
	}

	coordOpts := []msync.Option{
		msync.WithBaseContext(ctx),
		msync.WithRunTimeout(runTimeout),
		msync.WithTracerProvider(b.telemetry.TracerProvider()),
	}

	syncMetrics, err := telemetry.NewSyncMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}
	if syncMetrics != nil {
		coordOpts = append(coordOpts, msync.WithSyncMetrics(syncMetrics))
		slog.Info("Sync metrics enabled")
	}

	coordinator := msync.New(registry, b.executor, b.locker, credential, coordOpts...)
	slog.Info("Sync components initialized successfully")

	return coordinator, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *mirrorAppConfig,
	coordinator msync.Coordinator,
	driveService *DriveService,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			telemetry.TracingMiddleware(b.telemetry.TracerProvider()),
			api.LoggingMiddleware,
		}

		// Metrics go first to capture every request
		httpMetrics, err := telemetry.NewHTTPMetrics(b.telemetry.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
		}
		if httpMetrics != nil {
			b.middlewares = append([]func(http.Handler) http.Handler{httpMetrics.Middleware}, b.middlewares...)
			slog.Info("HTTP metrics middleware enabled")
		}
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
	}
	if b.config.MetricsEnabled() {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.telemetry.MetricsHandler()))
	}

	router := api.NewServer(coordinator, driveService, serverOpts...)

	server := &http.Server{
		Addr:              b.address,
		Handler:           router,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       b.readTimeout,
		WriteTimeout:      b.writeTimeout,
		IdleTimeout:       b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
