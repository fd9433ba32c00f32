package scanntech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/makabra/mayorista-api/internal/resilience"
)

const (
	// DefaultProductsPath is appended to the base URL when none is configured.
	DefaultProductsPath = "/products"
	// DefaultTimeout bounds one product download.
	DefaultTimeout = 12 * time.Second

	snippetMax = 500
	maxPayload = 50 << 20
)

// ErrNotConfigured is returned when the base URL or API key is missing.
var ErrNotConfigured = errors.New("scanntech: base url and api key are required")

// UpstreamError reports a non-2xx answer from the POS API.
type UpstreamError struct {
	Status  int
	Snippet string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("scanntech: upstream answered HTTP %d", e.Status)
}

// Raw is one product as returned by the POS API.
type Raw map[string]any

// Client downloads the product list.
type Client struct {
	BaseURL      string
	APIKey       string
	ProductsPath string
	HTTP         resilience.Doer
	Timeout      time.Duration
}

// Configured reports whether the client has what it needs to call the API.
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.BaseURL) != "" && strings.TrimSpace(c.APIKey) != ""
}

func (c *Client) url() string {
	path := c.ProductsPath
	if strings.TrimSpace(path) == "" {
		path = DefaultProductsPath
	}
	return strings.TrimRight(c.BaseURL, "/") + path
}

// FetchRaw returns the raw product list. Payloads may be a bare array or {"data": [...]}.
func (c *Client) FetchRaw(ctx context.Context) ([]Raw, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(), nil)
	if err != nil {
		return nil, fmt.Errorf("scanntech: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		var statusErr *resilience.StatusError
		if errors.As(err, &statusErr) {
			return nil, &UpstreamError{Status: statusErr.Code}
		}
		return nil, fmt.Errorf("scanntech: fetch products: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, fmt.Errorf("scanntech: read products: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := []rune(string(body))
		if len(snippet) > snippetMax {
			snippet = snippet[:snippetMax]
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Snippet: string(snippet)}
	}
	return DecodeList(body)
}

// FetchProducts returns the normalized products and how many of them were fetched.
// Raw entries without an id or barcode are not counted.
func (c *Client) FetchProducts(ctx context.Context) ([]Item, int, error) {
	raw, err := c.FetchRaw(ctx)
	if err != nil {
		return nil, 0, err
	}
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		if it, ok := Normalize(r); ok {
			items = append(items, it)
		}
	}
	return items, len(items), nil
}

// DecodeList parses a product payload. Unknown shapes yield an empty list.
func DecodeList(body []byte) ([]Raw, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []Raw{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("scanntech: decode products: %w", err)
	}
	var list []any
	switch v := payload.(type) {
	case []any:
		list = v
	case map[string]any:
		list, _ = v["data"].([]any)
	}
	out := make([]Raw, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, Raw(m))
		}
	}
	return out, nil
}
