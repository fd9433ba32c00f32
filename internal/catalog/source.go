package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/makabra/mayorista-api/internal/common"
	"github.com/makabra/mayorista-api/internal/resilience"
)

const maxCSVBytes = 20 << 20

// Source loads raw catalog records (header row first).
type Source interface {
	Name() string
	Records(ctx context.Context) ([][]string, error)
}

// CSVSource downloads a published spreadsheet as CSV.
type CSVSource struct {
	URL     string
	Client  resilience.Doer
	Timeout time.Duration
	Now     func() time.Time
}

// Name implements Source.
func (s *CSVSource) Name() string { return "csv" }

// Records implements Source.
func (s *CSVSource) Records(ctx context.Context) ([][]string, error) {
	if strings.TrimSpace(s.URL) == "" {
		return nil, common.NewAppError("CATALOG_NOT_CONFIGURED", "catalog source url is not configured", http.StatusInternalServerError, nil)
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	target, err := s.cacheBusted()
	if err != nil {
		return nil, common.NewAppError("CATALOG_NOT_CONFIGURED", "invalid catalog source url", http.StatusInternalServerError, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain, */*")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := s.Client.Do(ctx, req)
	if err != nil {
		return nil, fetchError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCSVBytes))
	if err != nil {
		return nil, fetchError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, common.NewAppError("CATALOG_UPSTREAM", fmt.Sprintf("catalog source answered HTTP %d", resp.StatusCode), resp.StatusCode, nil)
	}
	if looksLikeHTML(body) {
		return nil, common.NewAppError("CATALOG_NOT_CSV", "catalog source is not returning CSV", http.StatusBadGateway, nil)
	}
	return ParseCSV(body)
}

func (s *CSVSource) cacheBusted() (string, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return "", err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	q := u.Query()
	q.Set("_ts", strconv.FormatInt(now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<!doctype html")) || bytes.Contains(body, []byte("<html"))
}

func fetchError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return common.NewAppError("CATALOG_TIMEOUT", "timed out loading the catalog", http.StatusGatewayTimeout, err)
	}
	return common.NewAppError("CATALOG_UNAVAILABLE", "could not load the catalog", http.StatusInternalServerError, err)
}

// ParseCSV reads a CSV document tolerating ragged rows and stray quotes.
func ParseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, common.NewAppError("CATALOG_NOT_CSV", "catalog source returned malformed CSV", http.StatusBadGateway, err)
	}
	return records, nil
}

// XLSXSource reads the first sheet of a workbook on disk.
type XLSXSource struct {
	Path string
}

// Name implements Source.
func (s *XLSXSource) Name() string { return "xlsx" }

// Records implements Source.
func (s *XLSXSource) Records(_ context.Context) ([][]string, error) {
	return ReadWorkbook(s.Path)
}

// ReadWorkbook returns the rows of the first sheet of the workbook at path.
func ReadWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("catalog: workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("catalog: read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
