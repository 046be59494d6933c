package v0

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string `json:"status" example:"ready"`
	// Drives is the number of volumes currently in the registry
	Drives int `json:"drives" example:"3"`
}

// VersionResponse represents the version information response
type VersionResponse struct {
	Version   string `json:"version" example:"v0.1.0"`
	Commit    string `json:"commit" example:"abc123def"`
	BuildDate string `json:"build_date" example:"2025-01-15T10:30:00Z"`
	GoVersion string `json:"go_version" example:"go1.21.5"`
	Platform  string `json:"platform" example:"linux/amd64"`
}

// DriveResponse describes one volume of the registry
type DriveResponse struct {
	Name    string `json:"name" example:"nas1"`
	Primary bool   `json:"primary"`
}

// DriveListResponse lists the registry in mirror order
type DriveListResponse struct {
	Count  int             `json:"count"`
	Drives []DriveResponse `json:"drives"`
}

// Error categories returned in common.ErrorResponse
const (
	ErrorInsufficientVolumes = "insufficient_volumes"
	ErrorAlreadyRunning      = "already_running"
	ErrorExecutionFailed     = "execution_failed"
	ErrorInternal            = "internal_error"
	ErrorInvalidRequest      = "invalid_request"
	ErrorNotReady            = "not_ready"
	ErrorReloadFailed        = "reload_failed"
)
