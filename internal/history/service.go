package history

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/makabra/mayorista-api/internal/common"
	"github.com/makabra/mayorista-api/internal/obs"
)

// ErrWriteFailed is returned when the store rejects an entry.
var ErrWriteFailed = common.NewAppError("SHEET_WRITE_FAILED", "could not record the order", http.StatusInternalServerError, nil)

// Service validates and records order history.
type Service struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, logger zerolog.Logger, now func() time.Time) (*Service, error) {
	if store == nil {
		return nil, errors.New("history: store is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, logger: obs.Component(logger, "history"), now: now}, nil
}

// Record validates e and appends it to the store.
func (s *Service) Record(ctx context.Context, e Entry) (Entry, error) {
	e, err := Normalize(e, s.now())
	if err != nil {
		obs.Inc(obs.OrderHistoryWritesTotal, s.store.Name(), "invalid")
		return Entry{}, err
	}
	if err := s.store.Append(ctx, e); err != nil {
		obs.Inc(obs.OrderHistoryWritesTotal, s.store.Name(), "error")
		s.logger.Error().Err(err).
			Str("order_id", e.OrderID).
			Str("customer", common.MaskTail(e.CustomerKey, 3)).
			Msg("order history write failed")
		return Entry{}, common.NewAppError(ErrWriteFailed.Code, ErrWriteFailed.Message, ErrWriteFailed.HTTPStatus, err)
	}
	obs.Inc(obs.OrderHistoryWritesTotal, s.store.Name(), "ok")
	s.logger.Info().
		Str("order_id", e.OrderID).
		Str("customer", common.MaskTail(e.CustomerKey, 3)).
		Int("items", len(e.Items)).
		Msg("order recorded")
	return e, nil
}

// List returns a customer's most recent orders, newest first.
func (s *Service) List(ctx context.Context, customerKey string, limit int) ([]Entry, error) {
	if !ValidCustomerKey(customerKey) {
		return nil, common.NewAppError("INVALID_CUSTOMER", "customerKey must look like C-12345", http.StatusBadRequest, ErrInvalid)
	}
	limit = common.Clamp(limit, 1, maxPerClient)
	entries, err := s.store.List(ctx, customerKey, limit)
	if err != nil {
		return nil, common.NewAppError("HISTORY_UNAVAILABLE", "could not load order history", http.StatusInternalServerError, err)
	}
	return entries, nil
}
