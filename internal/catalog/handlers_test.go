package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/makabra/mayorista-api/internal/cache"
	"github.com/makabra/mayorista-api/internal/catalog"
	"github.com/makabra/mayorista-api/internal/common"
	"github.com/makabra/mayorista-api/internal/resilience"
)

const sheetCSV = "id,nombre,categoria,precio_base,marca,tags,destacado,oferta_carrusel\n" +
	"Y1,Yerba Canarias,Almacén,\"$1.250\",Canarias,mate;yerba,si,no\n" +
	"C1,Café Molido,Almacén,300,Sello,,no,si\n" +
	"L1,Lavandina,Limpieza,80,,hogar,no,no\n"

type productsResponse struct {
	Data       []catalog.Product `json:"data"`
	Pagination common.Pagination `json:"pagination"`
}

func newCSVServer(t *testing.T, body string, status int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Query().Get("_ts") == "" || r.URL.Query().Get("output") != "csv" {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newService(t *testing.T, srv *httptest.Server, c *cache.JSON) *catalog.Service {
	t.Helper()
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Source: &catalog.CSVSource{
			URL:     srv.URL + "/pub?output=csv",
			Client:  resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1},
			Timeout: time.Second,
		},
		Cache:        c,
		Logger:       zerolog.Nop(),
		Now:          func() time.Time { return time.UnixMilli(1_700_000_000_000) },
		DefaultLimit: 2,
		MaxLimit:     50,
	})
	require.NoError(t, err)
	return svc
}

func TestCatalogEndpointServesSnapshotWithCacheHeaders(t *testing.T) {
	srv, _ := newCSVServer(t, sheetCSV, http.StatusOK)
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: newService(t, srv, nil)})

	rec := httptest.NewRecorder()
	handler.Catalog(rec, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "s-maxage=300, stale-while-revalidate=3600", rec.Header().Get("Cache-Control"))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var snap catalog.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Products, 3)
	require.EqualValues(t, 1_700_000_000_000, snap.UpdatedAt)

	req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	handler.Catalog(rec, req)
	require.Equal(t, http.StatusNotModified, rec.Code)
}

func TestCatalogSourceErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		want   int
		code   string
	}{
		{"html instead of csv", "<!DOCTYPE html><html></html>", http.StatusOK, http.StatusBadGateway, "CATALOG_NOT_CSV"},
		{"no id column", "nombre,precio_base\nYerba,10\n", http.StatusOK, http.StatusBadGateway, "CATALOG_EMPTY"},
		{"upstream status", "missing", http.StatusNotFound, http.StatusNotFound, "CATALOG_UPSTREAM"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newCSVServer(t, tc.body, tc.status)
			handler := catalog.NewHandler(catalog.HandlerConfig{Service: newService(t, srv, nil)})

			rec := httptest.NewRecorder()
			handler.Catalog(rec, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))
			require.Equal(t, tc.want, rec.Code)

			var body struct {
				Error common.ErrorBody `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.code, body.Error.Code)
		})
	}
}

func TestCatalogTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	src := &catalog.CSVSource{
		URL:     srv.URL,
		Client:  resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1},
		Timeout: 20 * time.Millisecond,
	}
	_, err := src.Records(context.Background())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CATALOG_TIMEOUT", appErr.Code)
	require.Equal(t, http.StatusGatewayTimeout, appErr.HTTPStatus)
}

func TestSnapshotIsCachedInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	srv, hits := newCSVServer(t, sheetCSV, http.StatusOK)
	svc := newService(t, srv, cache.NewJSON(client, time.Minute))

	first, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	second, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	require.EqualValues(t, 1, atomic.LoadInt32(hits))
	require.Equal(t, len(first.Products), len(second.Products))
	require.True(t, mr.Exists(cache.KeyCatalogSnapshot("csv")))
}

func TestProductsFiltersAndPaginates(t *testing.T) {
	srv, _ := newCSVServer(t, sheetCSV, http.StatusOK)
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: newService(t, srv, nil)})

	get := func(target string) (int, productsResponse) {
		rec := httptest.NewRecorder()
		handler.Products(rec, httptest.NewRequest(http.MethodGet, target, nil))
		var resp productsResponse
		if rec.Code == http.StatusOK {
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		}
		return rec.Code, resp
	}

	code, resp := get("/api/v1/products")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Data, 2)
	require.Equal(t, common.Pagination{Page: 1, PerPage: 2, TotalItems: 3, TotalPages: 2}, resp.Pagination)

	_, resp = get("/api/v1/products?page=2")
	require.Len(t, resp.Data, 1)
	require.Equal(t, "L1", resp.Data[0].ID)

	_, resp = get("/api/v1/products?category=almacen&q=CAFE")
	require.Len(t, resp.Data, 1)
	require.Equal(t, "C1", resp.Data[0].ID)

	_, resp = get("/api/v1/products?q=mate")
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Y1", resp.Data[0].ID)

	_, resp = get("/api/v1/products?featured=true")
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Y1", resp.Data[0].ID)

	_, resp = get("/api/v1/products?offer=true")
	require.Len(t, resp.Data, 1)
	require.Equal(t, "C1", resp.Data[0].ID)

	code, _ = get("/api/v1/products?offer=perhaps")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestCategories(t *testing.T) {
	srv, _ := newCSVServer(t, sheetCSV, http.StatusOK)
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: newService(t, srv, nil)})

	rec := httptest.NewRecorder()
	handler.Categories(rec, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []catalog.Category `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []catalog.Category{{Name: "Almacén", Count: 2}, {Name: "Limpieza", Count: 1}}, resp.Data)
}
