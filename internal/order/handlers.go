package order

import (
	"net/http"

	"github.com/makabra/mayorista-api/internal/common"
	"github.com/makabra/mayorista-api/internal/pricing"
)

type itemRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Qty       int    `json:"qty" validate:"min=1,max=10000"`
}

type quoteRequest struct {
	Items []itemRequest `json:"items" validate:"required,min=1,max=200,dive"`
}

type placeRequest struct {
	Items         []itemRequest `json:"items" validate:"required,min=1,max=200,dive"`
	CustomerKey   string        `json:"customerKey" validate:"max=16"`
	CustomerLabel string        `json:"customerLabel" validate:"max=120"`
	Address       string        `json:"address" validate:"max=300"`
}

func cartLines(items []itemRequest) []pricing.CartLine {
	out := make([]pricing.CartLine, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.CartLine{ProductID: it.ProductID, Quantity: it.Qty})
	}
	return out
}

// Handler exposes checkout endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Quote handles POST /api/v1/orders/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := common.DecodeAndValidate(r, &req, "INVALID_ORDER"); err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.service.Quote(r.Context(), cartLines(req.Items))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, q)
}

// Place handles POST /api/v1/orders.
func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	common.NoStore(w)
	var req placeRequest
	if err := common.DecodeAndValidate(r, &req, "INVALID_ORDER"); err != nil {
		common.WriteError(w, err)
		return
	}
	placement, err := h.service.Place(r.Context(), PlaceInput{
		Items:         cartLines(req.Items),
		CustomerKey:   req.CustomerKey,
		CustomerLabel: req.CustomerLabel,
		Address:       req.Address,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, placement)
}
