package history

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/makabra/mayorista-api/internal/common"
)

// Handler exposes order history endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Record handles POST /api/order-history.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	common.NoStore(w)
	if !h.configured(w) {
		return
	}
	var entry Entry
	if err := common.DecodeAndValidate(r, &entry, "INVALID_ORDER"); err != nil {
		common.WriteError(w, err)
		return
	}
	if _, err := h.service.Record(r.Context(), entry); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListByCustomer handles GET /api/v1/customers/{customerKey}/orders.
func (h *Handler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	common.NoStore(w)
	if !h.configured(w) {
		return
	}
	limit := common.QueryInt(r, "limit", 20)
	entries, err := h.service.List(r.Context(), chi.URLParam(r, "customerKey"), limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(entries)))
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (h *Handler) configured(w http.ResponseWriter) bool {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "HISTORY_NOT_CONFIGURED", "order history store is not configured", nil)
		return false
	}
	return true
}
