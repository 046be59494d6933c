package api_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/drive-mirror/internal/api"
	"github.com/stacklok/drive-mirror/internal/drives"
	"github.com/stacklok/drive-mirror/internal/lock"
	"github.com/stacklok/drive-mirror/internal/mirror"
	mirrormocks "github.com/stacklok/drive-mirror/internal/mirror/mocks"
	"github.com/stacklok/drive-mirror/internal/status"
	msync "github.com/stacklok/drive-mirror/internal/sync"
	syncmocks "github.com/stacklok/drive-mirror/internal/sync/mocks"
)

func TestRoutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "greeting", method: "GET", path: "/", wantStatus: http.StatusOK},
		{name: "health", method: "GET", path: "/health", wantStatus: http.StatusOK},
		{name: "readiness", method: "GET", path: "/readiness", wantStatus: http.StatusOK},
		{name: "version", method: "GET", path: "/version", wantStatus: http.StatusOK},
		{name: "sync status", method: "GET", path: "/sync/status", wantStatus: http.StatusOK},
		{name: "sync without dry_run", method: "GET", path: "/sync", wantStatus: http.StatusUnprocessableEntity},
		{name: "drives", method: "GET", path: "/drives", wantStatus: http.StatusOK},
		{name: "metrics not configured", method: "GET", path: "/metrics", wantStatus: http.StatusNotFound},
		{name: "sync is GET only", method: "POST", path: "/sync?dry_run=true", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			t.Cleanup(ctrl.Finish)

			mockCoord := syncmocks.NewMockCoordinator(ctrl)
			mockCoord.EXPECT().Status().Return(status.SyncStatus{Phase: status.SyncPhaseIdle}).AnyTimes()

			server := api.NewServer(mockCoord, drives.NewStaticRegistry("nas1", "nas2"))

			rr := httptest.NewRecorder()
			server.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestGreetingEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	server := api.NewServer(syncmocks.NewMockCoordinator(ctrl), drives.NewStaticRegistry())

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"Hello":"World"}`, rr.Body.String())
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("drive_mirror_runs_total 0\n"))
	})
	server := api.NewServer(syncmocks.NewMockCoordinator(ctrl), drives.NewStaticRegistry(),
		api.WithMetricsHandler(metrics))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "drive_mirror_runs_total")
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	var calls []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	server := api.NewServer(syncmocks.NewMockCoordinator(ctrl), drives.NewStaticRegistry(),
		api.WithMiddlewares(mw("first")),
		api.WithMiddlewares(mw("second")),
	)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"first", "second"}, calls)
}

// TestSyncThroughServer drives a real coordinator end to end with a mocked executor
func TestSyncThroughServer(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	executor := mirrormocks.NewMockExecutor(ctrl)
	gomock.InOrder(
		executor.EXPECT().Execute(gomock.Any(), "nas1", "nas2", mirror.Credential("pw"), true).Return("", nil),
		executor.EXPECT().Execute(gomock.Any(), "nas1", "nas3", mirror.Credential("pw"), true).Return("", nil),
	)

	registry := drives.NewStaticRegistry("nas1", "nas2", "nas3")
	coord := msync.New(registry, executor, lock.NewMemoryLocker(), "pw")
	server := api.NewServer(coord, registry)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest("GET", "/sync?dry_run=true", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got msync.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, "Sync completed", got.Result)
	assert.Equal(t, []string{"nas2", "nas3"}, got.Targets)

	rr = httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest("GET", "/sync/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"phase":"Idle"`)
	assert.Contains(t, rr.Body.String(), `"lastRun"`)
}

func TestSyncThroughServerSingleDrive(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	registry := drives.NewStaticRegistry("nas1")
	coord := msync.New(registry, mirrormocks.NewMockExecutor(ctrl), lock.NewMemoryLocker(), "pw")
	server := api.NewServer(coord, registry)

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest("GET", "/sync?dry_run=false", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"insufficient_volumes","detail":"less than 2 mounted drives found"}`, rr.Body.String())
}

//nolint:paralleltest // swaps the default slog logger
func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	handler := middleware.RequestID(api.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/sync/status", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "HTTP request", entry["msg"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/sync/status", entry["path"])
	assert.InDelta(t, float64(http.StatusTeapot), entry["status"], 0)
	assert.NotEmpty(t, entry["request_id"])
}
