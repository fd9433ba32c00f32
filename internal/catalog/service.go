package catalog

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/makabra/mayorista-api/internal/cache"
	"github.com/makabra/mayorista-api/internal/common"
	"github.com/makabra/mayorista-api/internal/obs"
)

// ErrEmpty is returned when a source produced no usable products.
var ErrEmpty = common.NewAppError("CATALOG_EMPTY", "catalog loaded but produced no products; check the id column", http.StatusBadGateway, nil)

// Snapshot is the normalized catalog at a point in time.
type Snapshot struct {
	Products  []Product `json:"products"`
	UpdatedAt int64     `json:"updatedAt"`
}

// Filter narrows product listings.
type Filter struct {
	Category string
	Query    string
	Featured *bool
	Offer    *bool
	Page     int
	Limit    int
}

// ListResult is a page of products.
type ListResult struct {
	Items []Product
	Total int
	Page  int
	Limit int
}

// Category is a distinct category with its product count.
type Category struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Service loads, caches, and queries the catalog.
type Service struct {
	source       Source
	cache        *cache.JSON
	logger       zerolog.Logger
	now          func() time.Time
	defaultLimit int
	maxLimit     int
	group        singleflight.Group
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Source       Source
	Cache        *cache.JSON
	Logger       zerolog.Logger
	Now          func() time.Time
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, errors.New("catalog: source is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 24
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 200
	}
	return &Service{
		source:       cfg.Source,
		cache:        cfg.Cache,
		logger:       obs.Component(cfg.Logger, "catalog"),
		now:          cfg.Now,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}, nil
}

// Limits returns the default and maximum page sizes.
func (s *Service) Limits() (int, int) { return s.defaultLimit, s.maxLimit }

// Snapshot returns the cached catalog, loading it from the source on a miss.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	key := cache.KeyCatalogSnapshot(s.source.Name())
	var snap Snapshot
	found, err := s.cache.Get(ctx, key, &snap)
	if err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache read failed")
	}
	if found && len(snap.Products) > 0 {
		return snap, nil
	}
	return s.Refresh(ctx)
}

// Refresh loads the catalog from the source and replaces the cached copy.
// Concurrent callers share one load, which is detached from any single
// caller's cancellation; each caller still stops waiting when its own ctx ends.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		return s.load(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

func (s *Service) load(ctx context.Context) (snap Snapshot, err error) {
	source := s.source.Name()
	ctx, span := obs.StartSpan(ctx, "catalog.load", attribute.String("catalog.source", source))
	defer func() { obs.EndSpan(span, err) }()

	records, err := s.source.Records(ctx)
	if err != nil {
		obs.Inc(obs.CatalogFetchTotal, source, "error")
		s.logger.Error().Err(err).Str("source", source).Msg("catalog fetch failed")
		return Snapshot{}, err
	}
	products := Normalize(records)
	if len(products) == 0 {
		obs.Inc(obs.CatalogFetchTotal, source, "empty")
		s.logger.Error().Str("source", source).Int("rows", len(records)).Msg("catalog produced no products")
		return Snapshot{}, ErrEmpty
	}
	span.SetAttributes(attribute.Int("catalog.products", len(products)))
	snap = Snapshot{Products: products, UpdatedAt: s.now().UnixMilli()}
	if err := s.cache.Set(ctx, cache.KeyCatalogSnapshot(source), snap); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache write failed")
	}
	obs.Inc(obs.CatalogFetchTotal, source, "ok")
	s.logger.Info().Str("source", source).Int("products", len(products)).Msg("catalog loaded")
	return snap, nil
}

// List filters and paginates the catalog.
func (s *Service) List(ctx context.Context, f Filter) (ListResult, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return ListResult{}, err
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = s.defaultLimit
	}
	if f.Limit > s.maxLimit {
		f.Limit = s.maxLimit
	}

	category := common.Fold(f.Category)
	query := common.Fold(f.Query)
	matched := make([]Product, 0, len(snap.Products))
	for _, p := range snap.Products {
		if category != "" && common.Fold(p.Categoria) != category {
			continue
		}
		if f.Featured != nil && p.Destacado != *f.Featured {
			continue
		}
		if f.Offer != nil && p.Oferta != *f.Offer {
			continue
		}
		if query != "" && !matches(p, query) {
			continue
		}
		matched = append(matched, p)
	}

	start, end := common.Window(f.Page, f.Limit, len(matched))
	return ListResult{Items: matched[start:end], Total: len(matched), Page: f.Page, Limit: f.Limit}, nil
}

func matches(p Product, query string) bool {
	haystack := []string{p.Nombre, p.Marca, p.Categoria, p.Subcategoria}
	haystack = append(haystack, p.Tags...)
	for _, h := range haystack {
		if strings.Contains(common.Fold(h), query) {
			return true
		}
	}
	return false
}

// Categories returns the distinct categories sorted by name.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, p := range snap.Products {
		counts[p.Categoria]++
	}
	out := make([]Category, 0, len(counts))
	for name, n := range counts {
		out = append(out, Category{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		return common.Fold(out[i].Name) < common.Fold(out[j].Name)
	})
	return out, nil
}
