package catalog

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/makabra/mayorista-api/internal/common"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Catalog handles GET /api/catalog, the full storefront snapshot.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(snap); err != nil {
		common.WriteError(w, err)
		return
	}
	etag := common.ETag(buf.Bytes())
	w.Header().Set("Cache-Control", "s-maxage=300, stale-while-revalidate=3600")
	w.Header().Set("ETag", etag)
	if common.ETagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Products handles GET /api/v1/products with filters and pagination.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	defaultLimit, maxLimit := h.service.Limits()
	page, limit := common.ParsePagination(r, defaultLimit, maxLimit)
	q := r.URL.Query()
	filter := Filter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Page:     page,
		Limit:    limit,
	}
	var err error
	if filter.Featured, err = optionalBool(q.Get("featured")); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_QUERY", "featured must be a boolean", nil)
		return
	}
	if filter.Offer, err = optionalBool(q.Get("offer")); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_QUERY", "offer must be a boolean", nil)
		return
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.NewPagination(result.Page, result.Limit, result.Total),
	})
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	rows, err := h.service.Categories(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func optionalBool(raw string) (*bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
