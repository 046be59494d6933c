// Package v0 provides the REST API handlers for drive-mirror.
package v0

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/drive-mirror/internal/api/common"
	"github.com/stacklok/drive-mirror/internal/drives"
	"github.com/stacklok/drive-mirror/internal/versions"
)

// DriveService exposes the drive registry to the handlers
type DriveService interface {
	// Snapshot returns the current drive list
	Snapshot() drives.Snapshot
	// Reload re-reads the drive list from its source
	Reload() (drives.Snapshot, error)
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(svc DriveService) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)

	return r
}

// GreetingHandler serves the static greeting at the root path
//
// @Summary		Greeting
// @Tags			system
// @Produce		json
// @Success		200	{object}	map[string]string
// @Router			/ [get]
func GreetingHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, map[string]string{"Hello": "World"}, http.StatusOK)
}

// healthHandler handles health check requests
//
// @Summary		Health check
// @Description	Check if the service is healthy
// @Tags			system
// @Produce		json
// @Success		200	{object}	HealthResponse
// @Router			/health [get]
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler reports ready once there is something to mirror
//
// @Summary		Readiness check
// @Description	Ready when the registry holds a primary and at least one secondary
// @Tags			system
// @Produce		json
// @Success		200	{object}	ReadinessResponse
// @Failure		503	{object}	common.ErrorResponse
// @Router			/readiness [get]
func readinessHandler(svc DriveService) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		count := svc.Snapshot().Len()
		if count < 2 {
			common.WriteErrorResponse(w, ErrorNotReady, "less than 2 mounted drives found", http.StatusServiceUnavailable)
			return
		}

		common.WriteJSONResponse(w, ReadinessResponse{Status: "ready", Drives: count}, http.StatusOK)
	}
}

// versionHandler handles version information requests
//
// @Summary		Version information
// @Tags			system
// @Produce		json
// @Success		200	{object}	VersionResponse
// @Router			/version [get]
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()

	common.WriteJSONResponse(w, VersionResponse{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.BuildDate,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	}, http.StatusOK)
}
