package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/makabra/mayorista-api/internal/app"
	"github.com/makabra/mayorista-api/internal/config"
	"github.com/makabra/mayorista-api/internal/ratelimit"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	csv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("id,nombre,categoria,precio_base,promo_min_qty,promo_precio\nY1,Yerba,Almacén,100,6,90\n"))
	}))
	t.Cleanup(csv.Close)

	cfg, err := config.LoadForTests(map[string]string{
		"REDIS_URL":               "redis://" + mr.Addr() + "/0",
		"CSV_URL":                 csv.URL,
		"SHEETS_DRIVER":           "memory",
		"APP_TOKEN":               "app-secret",
		"SYNC_TOKEN":              "sync-secret",
		"DELIVERY_DIRECTORY_JSON": `[{"code":"1234567","name":"Almacén Sur","address":"Rivera 1","phone":"099123456"}]`,
		"RATE_LIMIT_DELIVERY_MAX": "2",
	})
	require.NoError(t, err)
	deps, err := app.New(context.Background(), cfg, zerolog.Nop(), app.Options{})
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	return newRouter(routerConfig{
		Deps:    deps,
		Limiter: ratelimit.Limiter{Client: deps.Redis, Prefix: "rl:"},
		Logger:  zerolog.Nop(),
	})
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndCatalogRoutes(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(t, h, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/catalog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("ETag"))

	rec = do(t, h, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Almacén")
}

func TestOrderRoutes(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/orders/quote", `{"items":[{"productId":"Y1","qty":6}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var quote struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	require.EqualValues(t, 540, quote.Total)

	rec = do(t, h, http.MethodPost, "/api/v1/orders", `{"items":[{"productId":"Y1","qty":1}]}`, map[string]string{"Idempotency-Key": "k-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), "wa.me")
}

func TestProtectedRoutes(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/sync/scanntech/status", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/sync/scanntech/status", "", map[string]string{"X-Sync-Token": "nope"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/sync/scanntech/status", "", map[string]string{"X-Sync-Token": "sync-secret"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/sync/scanntech/run?async=1", "", map[string]string{"X-Sync-Token": "sync-secret"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/customers/C-12345/orders", "", map[string]string{"X-App-Token": "wrong"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestValidateDeliveryIsRateLimited(t *testing.T) {
	h := newTestRouter(t)
	body := `{"code":"1234567"}`

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodPost, "/api/validate-delivery", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	}
	rec := do(t, h, http.MethodPost, "/api/validate-delivery", body, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
