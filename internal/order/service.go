package order

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/makabra/mayorista-api/internal/catalog"
	"github.com/makabra/mayorista-api/internal/common"
	"github.com/makabra/mayorista-api/internal/history"
	"github.com/makabra/mayorista-api/internal/obs"
	"github.com/makabra/mayorista-api/internal/pricing"
)

// ErrEmptyOrder is returned when no requested line matches the catalog.
var ErrEmptyOrder = common.NewAppError("EMPTY_ORDER", "none of the requested products are available", http.StatusUnprocessableEntity, nil)

// CatalogReader provides the current catalog snapshot.
type CatalogReader interface {
	Snapshot(ctx context.Context) (catalog.Snapshot, error)
}

// HistoryRecorder stores placed orders per customer.
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
}

// QuoteLine is a priced cart line with its display name.
type QuoteLine struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	Quantity     int    `json:"qty"`
	EffectiveQty int    `json:"effectiveQty"`
	UnitPrice    int64  `json:"unitPrice"`
	Subtotal     int64  `json:"subtotal"`
	Priced       bool   `json:"priced"`
}

// Quote is the priced view of a cart.
type Quote struct {
	Lines       []QuoteLine `json:"lines"`
	Total       int64       `json:"total"`
	HasUnpriced bool        `json:"hasUnpriced"`
}

// PlaceInput describes an order to place.
type PlaceInput struct {
	Items         []pricing.CartLine
	CustomerKey   string
	CustomerLabel string
	Address       string
}

// Placement is a placed order ready to be sent over WhatsApp.
type Placement struct {
	OrderID     string   `json:"orderId"`
	Quote       Quote    `json:"quote"`
	Message     []string `json:"message"`
	Text        string   `json:"text"`
	WhatsAppURL string   `json:"whatsappUrl"`
}

// Service prices carts and assembles order messages.
type Service struct {
	catalog  CatalogReader
	history  HistoryRecorder
	logger   zerolog.Logger
	now      func() time.Time
	phone    string
	greeting string
	idPrefix string
}

// ServiceConfig groups Service dependencies. History is optional.
type ServiceConfig struct {
	Catalog  CatalogReader
	History  HistoryRecorder
	Logger   zerolog.Logger
	Now      func() time.Time
	Phone    string
	Greeting string
	IDPrefix string
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("order: catalog is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if strings.TrimSpace(cfg.Greeting) == "" {
		cfg.Greeting = DefaultGreeting
	}
	if strings.TrimSpace(cfg.IDPrefix) == "" {
		cfg.IDPrefix = DefaultIDPrefix
	}
	return &Service{
		catalog:  cfg.Catalog,
		history:  cfg.History,
		logger:   obs.Component(cfg.Logger, "order"),
		now:      cfg.Now,
		phone:    cfg.Phone,
		greeting: cfg.Greeting,
		idPrefix: cfg.IDPrefix,
	}, nil
}

// Quote prices items against the current catalog.
func (s *Service) Quote(ctx context.Context, items []pricing.CartLine) (Quote, error) {
	q, err := s.quote(ctx, items)
	if err != nil {
		obs.Inc(obs.OrdersTotal, "quote", resultLabel(err))
		return Quote{}, err
	}
	obs.Inc(obs.OrdersTotal, "quote", "ok")
	return q, nil
}

func (s *Service) quote(ctx context.Context, items []pricing.CartLine) (Quote, error) {
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return Quote{}, err
	}
	names := make(map[string]string, len(snap.Products))
	for _, p := range snap.Products {
		names[p.ID] = p.Title()
	}

	computed := pricing.ComputeOrder(items, catalog.PricingCatalog(snap.Products))
	if len(computed.Lines) == 0 {
		return Quote{}, ErrEmptyOrder
	}
	q := Quote{
		Lines:       make([]QuoteLine, 0, len(computed.Lines)),
		Total:       computed.Total,
		HasUnpriced: computed.HasUnpriced,
	}
	for _, l := range computed.Lines {
		q.Lines = append(q.Lines, QuoteLine{
			ProductID:    l.ProductID,
			Name:         names[l.ProductID],
			Quantity:     l.Quantity,
			EffectiveQty: l.EffectiveQty,
			UnitPrice:    l.UnitPrice,
			Subtotal:     l.Subtotal,
			Priced:       l.Priced,
		})
	}
	return q, nil
}

// Place quotes the order, assigns an id, and builds the WhatsApp message.
// Recording history is best effort.
func (s *Service) Place(ctx context.Context, in PlaceInput) (Placement, error) {
	q, err := s.quote(ctx, in.Items)
	if err != nil {
		obs.Inc(obs.OrdersTotal, "place", resultLabel(err))
		return Placement{}, err
	}
	now := s.now()
	id := NewOrderID(now, s.idPrefix)
	customer := strings.TrimSpace(in.CustomerKey)

	msg := Message{
		Greeting:    s.greeting,
		OrderID:     id,
		CustomerID:  customer,
		HasUnpriced: q.HasUnpriced,
		Total:       q.Total,
		Address:     in.Address,
		Lines:       make([]MessageLine, 0, len(q.Lines)),
	}
	for _, l := range q.Lines {
		msg.Lines = append(msg.Lines, MessageLine{
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
			Priced:    l.Priced,
		})
	}
	lines := FormatMessage(msg)
	text := strings.Join(lines, "\n")
	placement := Placement{
		OrderID:     id,
		Quote:       q,
		Message:     lines,
		Text:        text,
		WhatsAppURL: WhatsAppLink(s.phone, lines),
	}

	if s.history != nil && customer != "" {
		s.record(ctx, placement, in, now)
	}
	obs.Inc(obs.OrdersTotal, "place", "ok")
	s.logger.Info().
		Str("order_id", id).
		Int("lines", len(q.Lines)).
		Int64("total", q.Total).
		Bool("has_unpriced", q.HasUnpriced).
		Msg("order placed")
	return placement, nil
}

func (s *Service) record(ctx context.Context, p Placement, in PlaceInput, now time.Time) {
	items := make([]history.Item, 0, len(p.Quote.Lines))
	for _, l := range p.Quote.Lines {
		items = append(items, history.Item{
			Name:             l.Name,
			Qty:              l.Quantity,
			UnitPriceRounded: l.UnitPrice,
			SubtotalRounded:  l.Subtotal,
		})
	}
	_, err := s.history.Record(ctx, history.Entry{
		CreatedAt:       now,
		OrderID:         p.OrderID,
		CustomerKey:     in.CustomerKey,
		CustomerLabel:   in.CustomerLabel,
		TotalRounded:    p.Quote.Total,
		HasConsultables: p.Quote.HasUnpriced,
		Items:           items,
		MessagePreview:  p.Text,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", p.OrderID).Msg("order history not recorded")
	}
}

func resultLabel(err error) string {
	if errors.Is(err, ErrEmptyOrder) {
		return "empty"
	}
	return "error"
}
