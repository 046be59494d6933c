package app

import (
	"context"

	"github.com/stacklok/drive-mirror/internal/drives"
	msync "github.com/stacklok/drive-mirror/internal/sync"
	"github.com/stacklok/drive-mirror/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Drives serves and reloads the drive registry
	Drives *DriveService

	// SyncCoordinator runs mutually exclusive sync runs
	SyncCoordinator msync.Coordinator

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry
}

// DriveService wraps the drive registry and records its size on every load
type DriveService struct {
	registry *drives.Registry
	metrics  *telemetry.DriveMetrics
}

// NewDriveService creates a DriveService. metrics may be nil.
func NewDriveService(registry *drives.Registry, metrics *telemetry.DriveMetrics) *DriveService {
	return &DriveService{registry: registry, metrics: metrics}
}

// Snapshot returns the current drive list
func (s *DriveService) Snapshot() drives.Snapshot {
	return s.registry.Snapshot()
}

// Reload re-reads the drive list file. The previous list is kept on failure.
func (s *DriveService) Reload() (drives.Snapshot, error) {
	snap, err := s.registry.Reload()
	if err != nil {
		return snap, err
	}
	s.metrics.RecordVolumes(context.Background(), snap.Len())
	logDrives(snap)
	return snap, nil
}
