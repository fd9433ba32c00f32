package catalogsync

import (
	"errors"
	"net/http"

	"github.com/hibiken/asynq"

	"github.com/makabra/mayorista-api/internal/common"
	"github.com/makabra/mayorista-api/internal/scanntech"
)

// Handler exposes the token protected sync endpoints.
type Handler struct {
	Runner *Runner
	Queue  Enqueuer
}

// NewHandler constructs a Handler. queue may be nil, which disables async runs.
func NewHandler(runner *Runner, queue Enqueuer) *Handler {
	return &Handler{Runner: runner, Queue: queue}
}

// Run handles POST /api/sync/scanntech/run. With ?async=1 the run is queued.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	common.NoStore(w)
	if r.URL.Query().Get("async") == "1" {
		h.enqueue(w, r)
		return
	}
	res, err := h.Runner.Run(r.Context())
	if err != nil {
		writeSyncError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	if h.Queue == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "background queue is not configured", nil)
		return
	}
	info, err := h.Queue.EnqueueContext(r.Context(), NewSyncTask(h.Runner.lockTTL()))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		common.WriteError(w, ErrAlreadyRunning)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "QUEUE_FAILED", "could not queue the synchronization", nil)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"ok": true, "queued": true, "taskId": info.ID})
}

// Status handles GET /api/sync/scanntech/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	common.NoStore(w)
	view, err := h.Runner.Status(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not read sync status", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"ok": true, "status": view.Last, "running": view.Running})
}

// Preview handles GET /api/sync/scanntech/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	common.NoStore(w)
	limit := common.QueryInt(r, "limit", 20)
	res, err := h.Runner.Preview(r.Context(), limit)
	if err != nil {
		writeSyncError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"ok": true, "dryRun": true, "fetched": res.Fetched, "sample": res.Sample})
}

func writeSyncError(w http.ResponseWriter, err error) {
	var upstream *scanntech.UpstreamError
	switch {
	case errors.As(err, &upstream):
		common.JSONError(w, http.StatusBadGateway, "SCANNTECH_UPSTREAM", "scanntech request failed", map[string]any{
			"status":  upstream.Status,
			"snippet": upstream.Snippet,
		})
	case errors.Is(err, scanntech.ErrNotConfigured):
		common.WriteError(w, ErrNotConfigured)
	case common.IsAppError(err):
		common.WriteError(w, err)
	default:
		common.JSONError(w, http.StatusInternalServerError, "SYNC_FAILED", err.Error(), nil)
	}
}
