package v0

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/drive-mirror/internal/api/common"
	"github.com/stacklok/drive-mirror/internal/drives"
)

// DrivesRouter creates the router for drive registry endpoints
func DrivesRouter(svc DriveService) http.Handler {
	r := chi.NewRouter()

	r.Get("/", listDrivesHandler(svc))
	r.Post("/reload", reloadDrivesHandler(svc))

	return r
}

// listDrivesHandler lists the registry
//
// @Summary		List drives
// @Description	List drives in mirror order; the first one is the primary
// @Tags			drives
// @Produce		json
// @Success		200	{object}	DriveListResponse
// @Router			/drives [get]
func listDrivesHandler(svc DriveService) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSONResponse(w, newDriveListResponse(svc.Snapshot()), http.StatusOK)
	}
}

// reloadDrivesHandler re-reads the drive list
//
// @Summary		Reload drives
// @Tags			drives
// @Produce		json
// @Success		200	{object}	DriveListResponse
// @Failure		500	{object}	common.ErrorResponse
// @Router			/drives/reload [post]
func reloadDrivesHandler(svc DriveService) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap, err := svc.Reload()
		if err != nil {
			slog.Error("Failed to reload drive list", "error", err)
			common.WriteErrorResponse(w, ErrorReloadFailed, err.Error(), http.StatusInternalServerError)
			return
		}

		common.WriteJSONResponse(w, newDriveListResponse(snap), http.StatusOK)
	}
}

func newDriveListResponse(snap drives.Snapshot) DriveListResponse {
	volumes := snap.Volumes()
	resp := DriveListResponse{
		Count:  len(volumes),
		Drives: make([]DriveResponse, 0, len(volumes)),
	}
	for i, name := range volumes {
		resp.Drives = append(resp.Drives, DriveResponse{Name: name, Primary: i == 0})
	}
	return resp
}
