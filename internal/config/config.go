package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Catalog source and storage drivers.
const (
	SourceCSV  = "csv"
	SourceXLSX = "xlsx"

	SheetsGoogle = "google"
	SheetsMemory = "memory"

	HistorySheets   = "sheets"
	HistoryPostgres = "postgres"

	RateLimitSliding = "sliding"
	RateLimitFixed   = "fixed"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	DatabaseURL        string
	CORSAllowedOrigins []string

	AppToken  string
	SyncToken string

	CatalogSource       string
	CSVURL              string
	CatalogXLSXPath     string
	CatalogFetchTimeout time.Duration
	CatalogCacheTTL     time.Duration

	DeliveryDirectoryJSON   string
	DeliveryDirectoryCSVURL string
	DeliveryExposePII       bool
	DeliveryCacheTTL        time.Duration

	ScanntechBaseURL      string
	ScanntechAPIKey       string
	ScanntechProductsPath string
	ScanntechTimeout      time.Duration

	ProductsSheetID           string
	ProductsSheetTab          string
	GoogleServiceAccountJSON  string
	SheetsDriver              string
	OrderHistorySpreadsheetID string
	HistoryStore              string

	WhatsAppPhone    string
	WhatsAppGreeting string
	OrderIDPrefix    string

	SyncLockTTL  time.Duration
	SyncSchedule string

	RateLimitStrategy    string
	RateLimitWindow      time.Duration
	RateLimitDeliveryMax int
	RateLimitOrdersMax   int
	IdempotencyTTL       time.Duration
	BodyLimitBytes       int64

	RetryBase           time.Duration
	RetryMaxAttempts    int
	RetryJitterPercent  float64
	CircuitMinRequests  int
	CircuitFailureRatio float64
	CircuitOpenFor      time.Duration

	WorkerConcurrency int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		AppToken:  strings.TrimSpace(k.String("APP_TOKEN")),
		SyncToken: strings.TrimSpace(k.String("SYNC_TOKEN")),

		CatalogSource:       strings.ToLower(valueOrDefault(k.String("CATALOG_SOURCE"), SourceCSV)),
		CSVURL:              strings.TrimSpace(k.String("CSV_URL")),
		CatalogXLSXPath:     strings.TrimSpace(k.String("CATALOG_XLSX_PATH")),
		CatalogFetchTimeout: parseDuration(k.String("CATALOG_FETCH_TIMEOUT"), "10s"),
		CatalogCacheTTL:     parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),

		DeliveryDirectoryJSON:   strings.TrimSpace(k.String("DELIVERY_DIRECTORY_JSON")),
		DeliveryDirectoryCSVURL: strings.TrimSpace(k.String("DELIVERY_DIRECTORY_CSV_URL")),
		DeliveryExposePII:       parseBoolDefault(k.String("DELIVERY_EXPOSE_PII"), true),
		DeliveryCacheTTL:        parseDuration(k.String("DELIVERY_CACHE_TTL"), "5m"),

		ScanntechBaseURL:      strings.TrimRight(strings.TrimSpace(k.String("SCANNTECH_BASE_URL")), "/"),
		ScanntechAPIKey:       strings.TrimSpace(k.String("SCANNTECH_API_KEY")),
		ScanntechProductsPath: valueOrDefault(k.String("SCANNTECH_PRODUCTS_PATH"), "/products"),
		ScanntechTimeout:      time.Duration(parseInt(k.String("SCANNTECH_TIMEOUT_MS"), 12000)) * time.Millisecond,

		ProductsSheetID:           strings.TrimSpace(k.String("PRODUCTS_SHEET_ID")),
		ProductsSheetTab:          valueOrDefault(k.String("PRODUCTS_SHEET_TAB"), "PRODUCTOS"),
		GoogleServiceAccountJSON:  strings.TrimSpace(k.String("GOOGLE_SERVICE_ACCOUNT_JSON")),
		SheetsDriver:              strings.ToLower(valueOrDefault(k.String("SHEETS_DRIVER"), SheetsGoogle)),
		OrderHistorySpreadsheetID: strings.TrimSpace(k.String("ORDER_HISTORY_SPREADSHEET_ID")),
		HistoryStore:              strings.ToLower(valueOrDefault(k.String("HISTORY_STORE"), HistorySheets)),

		WhatsAppPhone:    strings.TrimSpace(k.String("WHATSAPP_PHONE")),
		WhatsAppGreeting: k.String("WHATSAPP_GREETING"),
		OrderIDPrefix:    valueOrDefault(k.String("ORDER_ID_PREFIX"), "MK"),

		SyncLockTTL:  parseDuration(k.String("SYNC_LOCK_TTL"), "10m"),
		SyncSchedule: strings.TrimSpace(k.String("SYNC_SCHEDULE")),

		RateLimitStrategy:    strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STRATEGY"), RateLimitSliding)),
		RateLimitWindow:      parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitDeliveryMax: parseInt(k.String("RATE_LIMIT_DELIVERY_MAX"), 10),
		RateLimitOrdersMax:   parseInt(k.String("RATE_LIMIT_ORDERS_MAX"), 30),
		IdempotencyTTL:       parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		BodyLimitBytes:       int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),

		RetryBase:           parseDuration(k.String("RETRY_BASE"), "200ms"),
		RetryMaxAttempts:    parseInt(k.String("RETRY_MAX_ATTEMPTS"), 3),
		RetryJitterPercent:  parseFloat(k.String("RETRY_JITTER_PERCENT"), 20),
		CircuitMinRequests:  parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 10),
		CircuitFailureRatio: parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
		CircuitOpenFor:      parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),

		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	switch cfg.CatalogSource {
	case SourceCSV, SourceXLSX:
	default:
		return nil, fmt.Errorf("CATALOG_SOURCE must be %q or %q", SourceCSV, SourceXLSX)
	}
	switch cfg.SheetsDriver {
	case SheetsGoogle, SheetsMemory:
	default:
		return nil, fmt.Errorf("SHEETS_DRIVER must be %q or %q", SheetsGoogle, SheetsMemory)
	}
	switch cfg.HistoryStore {
	case HistorySheets:
	case HistoryPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when HISTORY_STORE=postgres")
		}
	default:
		return nil, fmt.Errorf("HISTORY_STORE must be %q or %q", HistorySheets, HistoryPostgres)
	}
	switch cfg.RateLimitStrategy {
	case RateLimitSliding, RateLimitFixed:
	default:
		return nil, fmt.Errorf("RATE_LIMIT_STRATEGY must be %q or %q", RateLimitSliding, RateLimitFixed)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// ScanntechConfigured reports whether the POS credentials are present.
func (c *Config) ScanntechConfigured() bool {
	return c.ScanntechBaseURL != "" && c.ScanntechAPIKey != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return parseBool(value)
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
