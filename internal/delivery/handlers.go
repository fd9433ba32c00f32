package delivery

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/makabra/mayorista-api/internal/common"
)

// Handler exposes the delivery validation endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type validateRequest struct {
	Code flexString `json:"code"`
}

// Validate handles POST /api/validate-delivery.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	common.NoStore(w)
	var req validateRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
				return
			}
			common.WriteError(w, ErrBadCode)
			return
		}
	}
	profile, err := h.service.Validate(r.Context(), string(req.Code))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"valid": true, "profile": profile})
}
