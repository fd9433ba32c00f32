// Package sheets reads and writes Google Sheets tabs through a small API that
// also has an in-memory implementation.
package sheets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// API is the subset of the Sheets surface the application uses. Ranges use A1
// notation; see Range.
type API interface {
	Titles(ctx context.Context, spreadsheetID string) ([]string, error)
	AddTab(ctx context.Context, spreadsheetID, title string) error
	Read(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
	Update(ctx context.Context, spreadsheetID, rng string, rows [][]string) error
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]string) error
}

// ErrNoCredentials is returned when no service account JSON is configured.
var ErrNoCredentials = errors.New("sheets: service account credentials missing")

const (
	maxTitleLen     = 90
	forbiddenTitles = `\/?*[]:`
)

// Range returns an A1 range on title, quoting the tab name.
func Range(title, cells string) string {
	quoted := "'" + strings.ReplaceAll(title, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}

// SanitizeTitle replaces characters Sheets rejects in tab names and truncates
// to 90 characters. An empty result yields fallback.
func SanitizeTitle(s, fallback string) string {
	s = strings.TrimSpace(s)
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenTitles, r) {
			return '-'
		}
		return r
	}, s)
	if runes := []rune(s); len(runes) > maxTitleLen {
		s = string(runes[:maxTitleLen])
	}
	if s == "" {
		return fallback
	}
	return s
}

// DecodeCredentials accepts the service account JSON either raw or base64 encoded.
func DecodeCredentials(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoCredentials
	}
	if strings.Contains(raw, "client_email") {
		return []byte(raw), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("sheets: decode credentials: %w", err)
	}
	if !strings.Contains(string(decoded), "client_email") {
		return nil, errors.New("sheets: credentials do not look like a service account")
	}
	return decoded, nil
}

// EnsureTab creates title with a header row when the spreadsheet lacks it.
// It reports whether the tab was created.
func EnsureTab(ctx context.Context, api API, spreadsheetID, title string, headers []string) (bool, error) {
	titles, err := api.Titles(ctx, spreadsheetID)
	if err != nil {
		return false, fmt.Errorf("sheets: list tabs: %w", err)
	}
	for _, t := range titles {
		if t == title {
			return false, nil
		}
	}
	if err := api.AddTab(ctx, spreadsheetID, title); err != nil {
		return false, fmt.Errorf("sheets: add tab %q: %w", title, err)
	}
	if len(headers) > 0 {
		if err := api.Update(ctx, spreadsheetID, Range(title, "A1"), [][]string{headers}); err != nil {
			return true, fmt.Errorf("sheets: write headers on %q: %w", title, err)
		}
	}
	return true, nil
}

// Cell returns row[i] trimmed, or "" when the row is short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Bool renders b the way Sheets shows booleans.
func Bool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
