package v0

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/drive-mirror/internal/api/common"
	msync "github.com/stacklok/drive-mirror/internal/sync"
)

const alreadyRunningDetail = "Sync already in progress"

// SyncRouter creates the router for sync endpoints
func SyncRouter(coord msync.Coordinator) http.Handler {
	r := chi.NewRouter()

	r.Get("/", syncHandler(coord))
	r.Get("/status", syncStatusHandler(coord))

	return r
}

// syncHandler runs one sync and replies when it has finished
//
// @Summary		Run a sync
// @Description	Mirror the primary drive onto every secondary drive in order
// @Tags			sync
// @Produce		json
// @Param			dry_run	query		bool	true	"Report what would change without changing it"
// @Success		200		{object}	msync.Summary
// @Failure		404		{object}	common.ErrorResponse
// @Failure		422		{object}	common.ErrorResponse
// @Failure		429		{object}	common.ErrorResponse
// @Failure		500		{object}	common.ErrorResponse
// @Router			/sync [get]
func syncHandler(coord msync.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dryRun, err := common.GetBoolQueryParam(r, "dry_run")
		if err != nil {
			common.WriteErrorResponse(w, ErrorInvalidRequest, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		summary, err := coord.RequestSync(r.Context(), dryRun)
		if err != nil {
			writeSyncError(w, err)
			return
		}

		common.WriteJSONResponse(w, summary, http.StatusOK)
	}
}

// syncStatusHandler reports the current phase and the last run
//
// @Summary		Sync status
// @Tags			sync
// @Produce		json
// @Success		200	{object}	status.SyncStatus
// @Router			/sync/status [get]
func syncStatusHandler(coord msync.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSONResponse(w, coord.Status(), http.StatusOK)
	}
}

func writeSyncError(w http.ResponseWriter, err error) {
	var runErr *msync.RunError

	switch {
	case errors.Is(err, msync.ErrInsufficientVolumes):
		common.WriteErrorResponse(w, ErrorInsufficientVolumes, err.Error(), http.StatusNotFound)
	case errors.Is(err, msync.ErrAlreadyRunning):
		common.WriteErrorResponse(w, ErrorAlreadyRunning, alreadyRunningDetail, http.StatusTooManyRequests)
	case errors.As(err, &runErr):
		common.WriteErrorResponse(w, ErrorExecutionFailed, runErr.Error(), http.StatusInternalServerError)
	default:
		slog.Error("Sync request failed", "error", err)
		common.WriteErrorResponse(w, ErrorInternal, "internal error", http.StatusInternalServerError)
	}
}
