package order_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/makabra/mayorista-api/internal/catalog"
	"github.com/makabra/mayorista-api/internal/common"
	"github.com/makabra/mayorista-api/internal/history"
	"github.com/makabra/mayorista-api/internal/order"
	"github.com/makabra/mayorista-api/internal/pricing"
)

type fakeCatalog struct {
	snap catalog.Snapshot
	err  error
}

func (f fakeCatalog) Snapshot(context.Context) (catalog.Snapshot, error) { return f.snap, f.err }

type fakeHistory struct {
	entries []history.Entry
	err     error
}

func (f *fakeHistory) Record(_ context.Context, e history.Entry) (history.Entry, error) {
	if f.err != nil {
		return history.Entry{}, f.err
	}
	f.entries = append(f.entries, e)
	return e, nil
}

func amount(v int64) catalog.Amount { return catalog.NewAmount(decimal.NewFromInt(v)) }

func testCatalog() fakeCatalog {
	return fakeCatalog{snap: catalog.Snapshot{Products: []catalog.Product{
		{
			ID: "A", Nombre: "Yerba", Marca: "Canarias", Precio: amount(12),
			DPC: &catalog.DPC{Tramos: []catalog.Tier{{Min: amount(3), Precio: amount(10)}}},
		},
		{ID: "B", Nombre: "Queso"},
	}}}
}

func newOrderService(t *testing.T, rec order.HistoryRecorder) *order.Service {
	t.Helper()
	svc, err := order.NewService(order.ServiceConfig{
		Catalog: testCatalog(),
		History: rec,
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return time.UnixMilli(1_700_000_000_000) },
		Phone:   "+598 99 000 111",
	})
	require.NoError(t, err)
	return svc
}

func TestQuotePricesTiersAndDropsUnknown(t *testing.T) {
	svc := newOrderService(t, nil)
	q, err := svc.Quote(context.Background(), []pricing.CartLine{
		{ProductID: "A", Quantity: 3},
		{ProductID: "B", Quantity: 1},
		{ProductID: "Z", Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, q.Lines, 2)
	require.Equal(t, order.QuoteLine{ProductID: "A", Name: "Yerba (Canarias)", Quantity: 3, EffectiveQty: 3, UnitPrice: 10, Subtotal: 30, Priced: true}, q.Lines[0])
	require.False(t, q.Lines[1].Priced)
	require.EqualValues(t, 30, q.Total)
	require.True(t, q.HasUnpriced)
}

func TestQuoteEmptyOrder(t *testing.T) {
	svc := newOrderService(t, nil)
	_, err := svc.Quote(context.Background(), []pricing.CartLine{{ProductID: "Z", Quantity: 1}})
	require.ErrorIs(t, err, order.ErrEmptyOrder)
}

func TestQuotePropagatesCatalogErrors(t *testing.T) {
	svc, err := order.NewService(order.ServiceConfig{Catalog: fakeCatalog{err: catalog.ErrEmpty}, Logger: zerolog.Nop()})
	require.NoError(t, err)
	_, err = svc.Quote(context.Background(), []pricing.CartLine{{ProductID: "A", Quantity: 1}})
	require.ErrorIs(t, err, catalog.ErrEmpty)
}

func TestPlaceBuildsMessageAndRecordsHistory(t *testing.T) {
	rec := &fakeHistory{}
	svc := newOrderService(t, rec)

	p, err := svc.Place(context.Background(), order.PlaceInput{
		Items:       []pricing.CartLine{{ProductID: "A", Quantity: 3}},
		CustomerKey: "C-12345",
		Address:     "Av. Italia 123",
	})
	require.NoError(t, err)
	require.Equal(t, "MK-LOYW3V28", p.OrderID)
	require.Contains(t, p.Message, "3 x Yerba (Canarias) — $10 c/u — Subtotal: $30")
	require.Contains(t, p.Message, "Cliente: C-12345")
	require.Equal(t, strings.Join(p.Message, "\n"), p.Text)
	require.True(t, strings.HasPrefix(p.WhatsAppURL, "https://wa.me/59899000111?text=Hola%20Makabra"))

	require.Len(t, rec.entries, 1)
	entry := rec.entries[0]
	require.Equal(t, "MK-LOYW3V28", entry.OrderID)
	require.Equal(t, "C-12345", entry.CustomerKey)
	require.EqualValues(t, 30, entry.TotalRounded)
	require.Equal(t, []history.Item{{Name: "Yerba (Canarias)", Qty: 3, UnitPriceRounded: 10, SubtotalRounded: 30}}, entry.Items)
}

func TestPlaceSkipsHistoryWithoutCustomerAndToleratesFailures(t *testing.T) {
	rec := &fakeHistory{}
	svc := newOrderService(t, rec)
	_, err := svc.Place(context.Background(), order.PlaceInput{Items: []pricing.CartLine{{ProductID: "A", Quantity: 1}}})
	require.NoError(t, err)
	require.Empty(t, rec.entries)

	failing := &fakeHistory{err: errors.New("sheet down")}
	svc = newOrderService(t, failing)
	_, err = svc.Place(context.Background(), order.PlaceInput{
		Items:       []pricing.CartLine{{ProductID: "A", Quantity: 1}},
		CustomerKey: "C-12345",
	})
	require.NoError(t, err)
}

func TestHandlers(t *testing.T) {
	h := order.NewHandler(newOrderService(t, nil))

	do := func(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		return rec
	}

	rec := do(h.Quote, `{"items":[{"productId":"A","qty":4}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var q order.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	require.EqualValues(t, 40, q.Total)

	rec = do(h.Quote, `{"items":[{"productId":"A","qty":0}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody struct {
		Error struct {
			Code    string              `json:"code"`
			Details []common.FieldError `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	require.Equal(t, "INVALID_ORDER", errBody.Error.Code)
	require.Equal(t, "items[0].qty", errBody.Error.Details[0].Field)

	rec = do(h.Quote, `{"items":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h.Place, `{"items":[{"productId":"Z","qty":1}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(h.Place, `{"items":[{"productId":"A","qty":2}],"address":"Rambla 1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var p order.Placement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Contains(t, p.Message, "Dirección: Rambla 1")
}
