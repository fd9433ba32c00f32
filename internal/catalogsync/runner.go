// Package catalogsync mirrors the POS product list into the products spreadsheet.
package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/makabra/mayorista-api/internal/common"
	"github.com/makabra/mayorista-api/internal/lock"
	"github.com/makabra/mayorista-api/internal/obs"
	"github.com/makabra/mayorista-api/internal/pricing"
	"github.com/makabra/mayorista-api/internal/resilience"
	"github.com/makabra/mayorista-api/internal/scanntech"
	"github.com/makabra/mayorista-api/internal/sheets"
)

const (
	// SourceName labels metrics, status keys and logs.
	SourceName = "scanntech"
	// DefaultLockKey guards concurrent runs.
	DefaultLockKey = "sync:scanntech"
	// DefaultLockTTL bounds how long a crashed run keeps the lock.
	DefaultLockTTL = 10 * time.Minute
	// DefaultProductsTab is the tab holding mirrored products.
	DefaultProductsTab = "PRODUCTOS"
	// RunsTab records one row per run.
	RunsTab = "sync_runs"

	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

var (
	// ProductHeaders is the header row of the products tab.
	ProductHeaders = []string{"scanntech_id", "barcode", "nombre", "precio_base", "stock", "activo", "promociones_json", "imagen_url", "updated_at", "promo_min_qty", "promo_precio"}
	// RunHeaders is the header row of the runs tab.
	RunHeaders = []string{"startedAt", "finishedAt", "ok", "added", "updated", "deactivated", "errorsCount", "notes"}

	// ErrAlreadyRunning is returned while another run holds the lock.
	ErrAlreadyRunning = common.NewAppError("SYNC_ALREADY_RUNNING", "a synchronization is already running", http.StatusConflict, nil)
	// ErrNotConfigured is returned when the source or spreadsheet is missing.
	ErrNotConfigured = common.NewAppError("SYNC_NOT_CONFIGURED", "scanntech or products sheet is not configured", http.StatusInternalServerError, nil)
)

// Source provides POS products.
type Source interface {
	FetchRaw(ctx context.Context) ([]scanntech.Raw, error)
	FetchProducts(ctx context.Context) ([]scanntech.Item, int, error)
}

// Locker runs a function under an exclusive, expiring lock.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
	Held(ctx context.Context, key string) (bool, error)
}

// Result summarizes a finished run.
type Result = Status

// StatusView is the status endpoint payload.
type StatusView struct {
	Last    *Status `json:"status"`
	Running bool    `json:"running"`
}

// PreviewResult is a dry-run sample of the POS payload.
type PreviewResult struct {
	Fetched int                     `json:"fetched"`
	Sample  []scanntech.PreviewItem `json:"sample"`
}

// Runner synchronizes POS products into the products sheet.
type Runner struct {
	Source        Source
	Sheets        sheets.API
	SpreadsheetID string
	ProductsTab   string
	Locker        Locker
	Store         StatusStore
	LockKey       string
	LockTTL       time.Duration
	RetryDelays   []time.Duration
	Now           func() time.Time
	Logger        zerolog.Logger
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) lockKey() string {
	if r.LockKey == "" {
		return DefaultLockKey
	}
	return r.LockKey
}

func (r *Runner) lockTTL() time.Duration {
	if r.LockTTL <= 0 {
		return DefaultLockTTL
	}
	return r.LockTTL
}

func (r *Runner) productsTab() string {
	if r.ProductsTab == "" {
		return DefaultProductsTab
	}
	return r.ProductsTab
}

func (r *Runner) retryDelays() []time.Duration {
	if r.RetryDelays == nil {
		return resilience.ExponentialDelays(500*time.Millisecond, 3)
	}
	return r.RetryDelays
}

// Run performs one synchronization under the lock and records its status.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Source == nil || r.Sheets == nil || r.SpreadsheetID == "" || r.Locker == nil {
		return Result{}, ErrNotConfigured
	}
	logger := obs.Component(r.Logger, "catalogsync")
	var res Result
	err := r.Locker.TryWithLock(ctx, r.lockKey(), r.lockTTL(), func(ctx context.Context) error {
		var runErr error
		res, runErr = r.run(ctx)
		return runErr
	})
	if errors.Is(err, lock.ErrLocked) {
		obs.Inc(obs.SyncRunsTotal, SourceName, "locked")
		return Result{}, ErrAlreadyRunning
	}
	if err != nil {
		obs.Inc(obs.SyncRunsTotal, SourceName, "error")
		failed := Status{OK: false, Error: err.Error(), FinishedAt: r.now().UTC().Format(timeLayout)}
		if saveErr := r.saveStatus(ctx, failed); saveErr != nil {
			logger.Warn().Err(saveErr).Msg("sync status not saved")
		}
		logger.Error().Err(err).Msg("sync failed")
		return Result{}, err
	}

	obs.Inc(obs.SyncRunsTotal, SourceName, "ok")
	obs.Add(obs.SyncRowsTotal, float64(res.Added), SourceName, "added")
	obs.Add(obs.SyncRowsTotal, float64(res.Updated), SourceName, "updated")
	obs.Add(obs.SyncRowsTotal, float64(res.Deactivated), SourceName, "deactivated")
	if saveErr := r.saveStatus(ctx, res); saveErr != nil {
		logger.Warn().Err(saveErr).Msg("sync status not saved")
	}
	logger.Info().
		Int("fetched", res.Fetched).
		Int("added", res.Added).
		Int("updated", res.Updated).
		Int("deactivated", res.Deactivated).
		Msg("sync finished")
	return res, nil
}

func (r *Runner) saveStatus(ctx context.Context, st Status) error {
	if r.Store == nil {
		return nil
	}
	return r.Store.Save(context.WithoutCancel(ctx), st)
}

func (r *Runner) run(ctx context.Context) (res Result, err error) {
	ctx, span := obs.StartSpan(ctx, "catalogsync.run")
	defer func() { obs.EndSpan(span, err) }()

	started := r.now().UTC()
	items, _, err := r.Source.FetchProducts(ctx)
	if err != nil {
		return Result{}, err
	}
	fetched := len(items)

	tab := r.productsTab()
	if _, err := sheets.EnsureTab(ctx, r.Sheets, r.SpreadsheetID, tab, ProductHeaders); err != nil {
		return Result{}, err
	}
	if _, err := sheets.EnsureTab(ctx, r.Sheets, r.SpreadsheetID, RunsTab, RunHeaders); err != nil {
		return Result{}, err
	}
	rows, err := r.Sheets.Read(ctx, r.SpreadsheetID, sheets.Range(tab, ""))
	if err != nil {
		return Result{}, fmt.Errorf("catalogsync: read products: %w", err)
	}

	res = Result{OK: true, StartedAt: started.Format(timeLayout), Fetched: fetched}
	rows, res.Added, res.Updated, res.Deactivated = Merge(rows, items, r.now().UTC())

	delays := r.retryDelays()
	if err := resilience.Retry(ctx, "sheets_update", delays, func(ctx context.Context) error {
		return r.Sheets.Update(ctx, r.SpreadsheetID, sheets.Range(tab, "A1"), rows)
	}); err != nil {
		return Result{}, fmt.Errorf("catalogsync: write products: %w", err)
	}

	res.FinishedAt = r.now().UTC().Format(timeLayout)
	runRow := []string{
		res.StartedAt, res.FinishedAt, sheets.Bool(true),
		strconv.Itoa(res.Added), strconv.Itoa(res.Updated), strconv.Itoa(res.Deactivated),
		"0", "fetched=" + strconv.Itoa(fetched),
	}
	if err := resilience.Retry(ctx, "sheets_append", delays, func(ctx context.Context) error {
		return r.Sheets.Append(ctx, r.SpreadsheetID, sheets.Range(RunsTab, "A:H"), [][]string{runRow})
	}); err != nil {
		return Result{}, fmt.Errorf("catalogsync: append run: %w", err)
	}
	return res, nil
}

// Merge upserts items into rows (header first) and returns the new rows with
// added, updated and deactivated counts. Rows are matched by scanntech id, then barcode.
func Merge(rows [][]string, items []scanntech.Item, now time.Time) ([][]string, int, int, int) {
	if len(rows) == 0 {
		rows = [][]string{append([]string(nil), ProductHeaders...)}
	}
	head := rows[0]
	idxID, idxBarcode, idxImage := indexOf(head, "scanntech_id"), indexOf(head, "barcode"), indexOf(head, "imagen_url")

	index := make(map[string]int, len(rows))
	for i := 1; i < len(rows); i++ {
		if id := sheets.Cell(rows[i], idxID); id != "" {
			index["id:"+id] = i
		}
		if b := sheets.Cell(rows[i], idxBarcode); b != "" {
			index["b:"+b] = i
		}
	}

	stamp := now.Format(timeLayout)
	var added, updated, deactivated int
	for _, it := range items {
		pos, ok := index[it.Key()]
		if !ok {
			rows = append(rows, productRow(it, it.ImagenURL, stamp))
			index[it.Key()] = len(rows) - 1
			added++
			continue
		}
		current := rows[pos]
		image := it.ImagenURL
		if image == "" {
			image = sheets.Cell(current, idxImage)
		}
		merged := it
		if merged.ScanntechID == "" {
			merged.ScanntechID = sheets.Cell(current, idxID)
		}
		if merged.Barcode == "" {
			merged.Barcode = sheets.Cell(current, idxBarcode)
		}
		rows[pos] = productRow(merged, image, stamp)
		updated++
		if !it.Activo {
			deactivated++
		}
	}
	return rows, added, updated, deactivated
}

func productRow(it scanntech.Item, image, stamp string) []string {
	minQty, price := promoTier(it.Tiers)
	return []string{
		it.ScanntechID,
		it.Barcode,
		it.Nombre,
		it.PrecioBase.String(),
		it.Stock.String(),
		sheets.Bool(it.Activo),
		it.PromocionesJSON,
		image,
		stamp,
		minQty,
		price,
	}
}

// promoTier flattens the first tier with a positive minimum into the
// promo_min_qty and promo_precio cells.
func promoTier(tiers []pricing.PriceTier) (string, string) {
	for _, t := range tiers {
		if t.MinQty.IsPositive() && t.Price.IsPositive() {
			return t.MinQty.String(), t.Price.String()
		}
	}
	return "", ""
}

func indexOf(head []string, name string) int {
	for i, h := range head {
		if h == name {
			return i
		}
	}
	return -1
}

// Status reports the last run and whether one is in progress.
func (r *Runner) Status(ctx context.Context) (StatusView, error) {
	var view StatusView
	if r.Store != nil {
		last, err := r.Store.Load(ctx)
		if err != nil {
			return StatusView{}, err
		}
		view.Last = last
	}
	if r.Locker != nil {
		held, err := r.Locker.Held(ctx, r.lockKey())
		if err != nil {
			return StatusView{}, err
		}
		view.Running = held
	}
	return view, nil
}

// Preview fetches the POS payload without writing anything.
func (r *Runner) Preview(ctx context.Context, limit int) (PreviewResult, error) {
	if r.Source == nil {
		return PreviewResult{}, ErrNotConfigured
	}
	raw, err := r.Source.FetchRaw(ctx)
	if err != nil {
		return PreviewResult{}, err
	}
	return PreviewResult{Fetched: len(raw), Sample: scanntech.Preview(raw, limit)}, nil
}
