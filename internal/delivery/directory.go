package delivery

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/makabra/mayorista-api/internal/resilience"
)

// ErrNoDirectory is returned when no directory source is configured.
var ErrNoDirectory = errors.New("delivery: directory not configured")

// Entry is a raw directory row.
type Entry struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// UnmarshalJSON accepts codes written as JSON numbers.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code    flexString `json:"code"`
		Name    flexString `json:"name"`
		Address flexString `json:"address"`
		Phone   flexString `json:"phone"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entry{Code: string(raw.Code), Name: string(raw.Name), Address: string(raw.Address), Phone: string(raw.Phone)}
	return nil
}

// Directory loads the delivery directory.
type Directory interface {
	Name() string
	Load(ctx context.Context) ([]Entry, error)
}

// JSONDirectory parses an inline JSON array.
type JSONDirectory struct {
	Raw string
}

// Name implements Directory.
func (d JSONDirectory) Name() string { return "json" }

// Load implements Directory.
func (d JSONDirectory) Load(context.Context) ([]Entry, error) {
	raw := strings.TrimSpace(d.Raw)
	if raw == "" {
		return nil, ErrNoDirectory
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("delivery: directory is not a JSON array: %w", err)
	}
	return entries, nil
}

// CSVDirectory downloads a CSV export with code,name,address,phone headers.
type CSVDirectory struct {
	URL     string
	Client  resilience.Doer
	Timeout time.Duration
}

// Name implements Directory.
func (d CSVDirectory) Name() string { return "csv" }

// Load implements Directory.
func (d CSVDirectory) Load(ctx context.Context) ([]Entry, error) {
	if strings.TrimSpace(d.URL) == "" {
		return nil, ErrNoDirectory
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("delivery: build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	resp, err := d.Client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("delivery: fetch directory: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("delivery: directory answered HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("delivery: read directory: %w", err)
	}
	return parseCSV(body)
}

func parseCSV(body []byte) ([]Entry, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("delivery: parse directory: %w", err)
	}
	if len(records) == 0 {
		return []Entry{}, nil
	}
	index := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	cell := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	out := make([]Entry, 0, len(records)-1)
	for _, row := range records[1:] {
		out = append(out, Entry{
			Code:    cell(row, "code"),
			Name:    cell(row, "name"),
			Address: cell(row, "address"),
			Phone:   cell(row, "phone"),
		})
	}
	return out, nil
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
