package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/makabra/mayorista-api/internal/app"
	"github.com/makabra/mayorista-api/internal/catalog"
	"github.com/makabra/mayorista-api/internal/catalogsync"
	"github.com/makabra/mayorista-api/internal/common"
	"github.com/makabra/mayorista-api/internal/config"
	"github.com/makabra/mayorista-api/internal/delivery"
	"github.com/makabra/mayorista-api/internal/health"
	"github.com/makabra/mayorista-api/internal/history"
	"github.com/makabra/mayorista-api/internal/obs"
	"github.com/makabra/mayorista-api/internal/order"
	"github.com/makabra/mayorista-api/internal/ratelimit"
	"github.com/makabra/mayorista-api/internal/security"
)

type routerConfig struct {
	Deps        *app.Dependencies
	Tasks       catalogsync.Enqueuer
	Limiter     ratelimit.Allower
	Logger      zerolog.Logger
	HTTPMetrics *obs.HTTPMetrics

	Tracing   bool
	Metrics   bool
	Pprof     bool
	PprofUser string
	PprofPass string
	HSTS      bool

	ReadyDBTimeout    time.Duration
	ReadyRedisTimeout time.Duration
}

func newRouter(rc routerConfig) chi.Router {
	deps := rc.Deps
	cfg := deps.Config

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: deps.Catalog})
	deliveryHandler := delivery.NewHandler(deps.Delivery)
	orderHandler := order.NewHandler(deps.Orders)
	historyHandler := history.NewHandler(deps.History)
	syncHandler := catalogsync.NewHandler(deps.Sync, rc.Tasks)

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	onLimitErr := func(err error) { rc.Logger.Warn().Err(err).Msg("rate limiter unavailable") }
	deliveryLimit := ratelimit.Handler{
		Limiter: rc.Limiter,
		Config:  ratelimit.Config{Key: ratelimit.ByClientIP("delivery"), Window: cfg.RateLimitWindow, Max: cfg.RateLimitDeliveryMax},
		OnError: onLimitErr,
	}
	ordersLimit := ratelimit.Handler{
		Limiter: rc.Limiter,
		Config:  ratelimit.Config{Key: ratelimit.ByClientIP("orders"), Window: cfg.RateLimitWindow, Max: cfg.RateLimitOrdersMax},
		OnError: onLimitErr,
	}
	appToken := security.SharedToken{Header: "X-App-Token", Token: cfg.AppToken}
	syncToken := security.SharedToken{Header: "X-Sync-Token", Token: cfg.SyncToken}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if rc.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if rc.Metrics && rc.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: rc.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: rc.Logger, Quiet: []string{"/health", "/metrics"}}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-App-Token", "X-Sync-Token"},
		ExposedHeaders: []string{"ETag", "X-Total-Count", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: rc.HSTS}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if rc.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	if rc.Pprof {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), rc.PprofUser, rc.PprofPass))
	}

	healthHandler := health.Handler{
		Checker:      deps,
		DBTimeout:    rc.ReadyDBTimeout,
		RedisTimeout: rc.ReadyRedisTimeout,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api", func(api chi.Router) {
		api.Get("/catalog", catalogHandler.Catalog)
		api.With(deliveryLimit.Middleware).Post("/validate-delivery", deliveryHandler.Validate)
		api.Post("/order-history", historyHandler.Record)

		api.Route("/sync/scanntech", func(s chi.Router) {
			s.Use(syncToken.Middleware)
			s.Post("/run", syncHandler.Run)
			s.Get("/status", syncHandler.Status)
			s.Get("/preview", syncHandler.Preview)
		})

		api.Route("/v1", func(v chi.Router) {
			v.Get("/products", catalogHandler.Products)
			v.Get("/categories", catalogHandler.Categories)

			v.Route("/orders", func(o chi.Router) {
				o.Use(ordersLimit.Middleware)
				o.Post("/quote", orderHandler.Quote)
				o.With(idem.Middleware).Post("/", orderHandler.Place)
			})

			v.With(appToken.Middleware).Get("/customers/{customerKey}/orders", historyHandler.ListByCustomer)
		})
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
