package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/makabra/mayorista-api/internal/cache"
	"github.com/makabra/mayorista-api/internal/catalog"
	"github.com/makabra/mayorista-api/internal/catalogsync"
	"github.com/makabra/mayorista-api/internal/config"
	"github.com/makabra/mayorista-api/internal/delivery"
	"github.com/makabra/mayorista-api/internal/health"
	"github.com/makabra/mayorista-api/internal/history"
	"github.com/makabra/mayorista-api/internal/lock"
	"github.com/makabra/mayorista-api/internal/obs"
	"github.com/makabra/mayorista-api/internal/order"
	"github.com/makabra/mayorista-api/internal/ratelimit"
	"github.com/makabra/mayorista-api/internal/resilience"
	"github.com/makabra/mayorista-api/internal/scanntech"
	"github.com/makabra/mayorista-api/internal/sheets"
)

// Options toggles instrumentation of the shared clients.
type Options struct {
	ServiceName    string
	TraceRedis     bool
	RedisMetrics   bool
	SkipRedisPing  bool
	SheetsOverride sheets.API
}

// Dependencies holds the services shared by the API and the worker.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger

	Redis  *redis.Client
	DB     *pgxpool.Pool
	Sheets sheets.API

	Catalog  *catalog.Service
	Delivery *delivery.Service
	History  *history.Service
	Orders   *order.Service
	Sync     *catalogsync.Runner

	closers []func()
}

// New connects to Redis (and Postgres when the history store needs it) and
// builds every domain service from cfg.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "mayorista-api"
	}
	d := &Dependencies{Config: cfg, Logger: logger}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	d.Redis = redis.NewClient(redisOpts)
	d.closers = append(d.closers, func() {
		if err := d.Redis.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	})
	if opts.TraceRedis {
		if err := redisotel.InstrumentTracing(d.Redis); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if opts.RedisMetrics {
		if err := redisotel.InstrumentMetrics(d.Redis); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if !opts.SkipRedisPing {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			d.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	if err := d.buildSheets(ctx, opts); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.buildCatalog(); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.buildDelivery(); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.buildHistory(ctx, opts.ServiceName); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.buildOrders(); err != nil {
		d.Close()
		return nil, err
	}
	d.buildSync()
	return d, nil
}

// Close releases the connections opened by New.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func (d *Dependencies) buildSheets(ctx context.Context, opts Options) error {
	cfg := d.Config
	switch {
	case opts.SheetsOverride != nil:
		d.Sheets = opts.SheetsOverride
	case cfg.SheetsDriver == config.SheetsMemory:
		d.Sheets = sheets.NewMemory()
	case cfg.GoogleServiceAccountJSON != "":
		client, err := sheets.NewClient(ctx, cfg.GoogleServiceAccountJSON)
		if err != nil {
			return fmt.Errorf("sheets client: %w", err)
		}
		d.Sheets = client
	default:
		d.Logger.Warn().Msg("google sheets credentials missing; sync and sheet history disabled")
	}
	return nil
}

// upstream wraps an instrumented client with retry and a per-target breaker.
func (d *Dependencies) upstream(target string, timeout time.Duration) resilience.HTTPClient {
	cfg := d.Config
	breaker := resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor).
		WithTarget(target).
		WithLogger(d.Logger)
	return resilience.HTTPClient{
		Client:      obs.NewHTTPClient(target, timeout),
		Breaker:     breaker,
		BaseBackoff: cfg.RetryBase,
		MaxAttempts: cfg.RetryMaxAttempts,
		Jitter:      cfg.RetryJitterPercent / 100,
		Timeout:     timeout,
	}
}

func (d *Dependencies) buildCatalog() error {
	cfg := d.Config
	var source catalog.Source
	if cfg.CatalogSource == config.SourceXLSX {
		source = &catalog.XLSXSource{Path: cfg.CatalogXLSXPath}
	} else {
		source = &catalog.CSVSource{
			URL:     cfg.CSVURL,
			Client:  d.upstream("catalog_csv", cfg.CatalogFetchTimeout),
			Timeout: cfg.CatalogFetchTimeout,
		}
	}
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Source: source,
		Cache:  cache.NewJSON(d.Redis, cfg.CatalogCacheTTL),
		Logger: d.Logger,
	})
	if err != nil {
		return fmt.Errorf("initialise catalog service: %w", err)
	}
	d.Catalog = svc
	return nil
}

func (d *Dependencies) buildDelivery() error {
	cfg := d.Config
	var dir delivery.Directory = delivery.JSONDirectory{Raw: cfg.DeliveryDirectoryJSON}
	if cfg.DeliveryDirectoryJSON == "" && cfg.DeliveryDirectoryCSVURL != "" {
		dir = &delivery.CSVDirectory{
			URL:     cfg.DeliveryDirectoryCSVURL,
			Client:  d.upstream("delivery_directory", cfg.CatalogFetchTimeout),
			Timeout: cfg.CatalogFetchTimeout,
		}
	}
	svc, err := delivery.NewService(dir, cache.NewJSON(d.Redis, cfg.DeliveryCacheTTL), cfg.DeliveryExposePII, d.Logger)
	if err != nil {
		return fmt.Errorf("initialise delivery service: %w", err)
	}
	d.Delivery = svc
	return nil
}

func (d *Dependencies) buildHistory(ctx context.Context, serviceName string) error {
	cfg := d.Config
	var store history.Store
	switch cfg.HistoryStore {
	case config.HistoryPostgres:
		pool, err := d.connectDB(ctx, serviceName)
		if err != nil {
			return err
		}
		if err := history.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate order history: %w", err)
		}
		pg, err := history.NewPGStore(pool)
		if err != nil {
			return err
		}
		store = pg
	default:
		if d.Sheets == nil || cfg.OrderHistorySpreadsheetID == "" {
			d.Logger.Warn().Msg("order history spreadsheet not configured; history disabled")
			return nil
		}
		ss, err := history.NewSheetStore(d.Sheets, cfg.OrderHistorySpreadsheetID)
		if err != nil {
			return err
		}
		store = ss
	}
	svc, err := history.NewService(store, d.Logger, nil)
	if err != nil {
		return fmt.Errorf("initialise history service: %w", err)
	}
	d.History = svc
	return nil
}

func (d *Dependencies) connectDB(ctx context.Context, serviceName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(d.Config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	d.closers = append(d.closers, pool.Close)
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	d.DB = pool
	return pool, nil
}

func (d *Dependencies) buildOrders() error {
	cfg := d.Config
	orderCfg := order.ServiceConfig{
		Catalog:  d.Catalog,
		Logger:   d.Logger,
		Phone:    cfg.WhatsAppPhone,
		Greeting: cfg.WhatsAppGreeting,
		IDPrefix: cfg.OrderIDPrefix,
	}
	if d.History != nil {
		orderCfg.History = d.History
	}
	svc, err := order.NewService(orderCfg)
	if err != nil {
		return fmt.Errorf("initialise order service: %w", err)
	}
	d.Orders = svc
	return nil
}

func (d *Dependencies) buildSync() {
	cfg := d.Config
	runner := &catalogsync.Runner{
		Sheets:        d.Sheets,
		SpreadsheetID: cfg.ProductsSheetID,
		ProductsTab:   cfg.ProductsSheetTab,
		Locker:        lock.Locker{R: d.Redis},
		Store:         catalogsync.NewRedisStatus(d.Redis, catalogsync.SourceName),
		LockTTL:       cfg.SyncLockTTL,
		Logger:        d.Logger,
	}
	if cfg.ScanntechConfigured() {
		runner.Source = &scanntech.Client{
			BaseURL:      cfg.ScanntechBaseURL,
			APIKey:       cfg.ScanntechAPIKey,
			ProductsPath: cfg.ScanntechProductsPath,
			HTTP:         d.upstream("scanntech", cfg.ScanntechTimeout),
			Timeout:      cfg.ScanntechTimeout,
		}
	}
	d.Sync = runner
}

// RateLimiter returns the limiter selected by RATE_LIMIT_STRATEGY.
func (d *Dependencies) RateLimiter() (ratelimit.Allower, error) {
	if d.Config.RateLimitStrategy == config.RateLimitFixed {
		fixed, err := ratelimit.NewFixedRedis(d.Redis, "rl")
		if err != nil {
			return nil, fmt.Errorf("fixed window limiter: %w", err)
		}
		return fixed, nil
	}
	return ratelimit.Limiter{Client: d.Redis, Prefix: "rl:"}, nil
}

// RedisConnOpt converts REDIS_URL for the asynq client and server.
func (d *Dependencies) RedisConnOpt() (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(d.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri for asynq: %w", err)
	}
	return opt, nil
}

// PingDB implements health.Checker. Without a database it reports ErrDisabled.
func (d *Dependencies) PingDB(ctx context.Context, timeout time.Duration) error {
	if d.DB == nil {
		return health.ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout(timeout))
	defer cancel()
	return d.DB.Ping(ctx)
}

// PingRedis implements health.Checker.
func (d *Dependencies) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d.Redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout(timeout))
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}

const defaultPingTimeout = time.Second

func pingTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultPingTimeout
	}
	return d
}
