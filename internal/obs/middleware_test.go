package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/makabra/mayorista-api/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("mayorista", []float64{0.001, 0.01}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "/health/ready", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.Duration))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("mayorista", nil, registry)
	second := obs.NewHTTPMetrics("mayorista", nil, registry)
	require.Same(t, first.Requests, second.Requests)
}

func TestParseBucketsMillis(t *testing.T) {
	require.Equal(t, []float64{0.05, 0.25}, obs.ParseBucketsMillis("50, x, -1, 250,"))
	require.Empty(t, obs.ParseBucketsMillis(""))
}

func TestRequestLoggerEmitsClientIP(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := obs.RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/validate-delivery", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "203.0.113.9", entry["client_ip"])
	require.EqualValues(t, http.StatusAccepted, entry["status"])
	require.Equal(t, "info", entry["level"])
}

func TestRequestLoggerLevelsAndContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	var sawCtxLogger bool
	handler := obs.RequestLogger{Logger: logger, Quiet: []string{"/health"}}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawCtxLogger = zerolog.Ctx(r.Context()).GetLevel() == zerolog.InfoLevel
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.True(t, sawCtxLogger)
	require.Zero(t, buf.Len(), "health checks log at debug")

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "error", entry["level"])
}

func TestDomainMetricsHelpersAreNilSafe(t *testing.T) {
	require.NotPanics(t, func() {
		obs.Inc(nil, "a")
		obs.Add(nil, 3, "a")
	})

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "x_total"}, []string{"result"})
	obs.Add(vec, 2, "ok")
	obs.Add(vec, 0, "ok")
	require.Equal(t, 2.0, testutil.ToFloat64(vec.WithLabelValues("ok")))
}

func TestHTTPMetricsUseRoutePatternAfterRouting(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("mayorista", nil, registry)
	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/customers/{customerKey}/orders", func(w http.ResponseWriter, _ *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/customers/C-12345/orders", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "/api/v1/customers/{customerKey}/orders", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "unmatched", "404")))
}
