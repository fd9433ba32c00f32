package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/makabra/mayorista-api/internal/sheets"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

var sheetHeaders = []string{
	"createdAt", "orderId", "customerKey", "customerLabel",
	"totalRounded", "hasConsultables", "itemsJson", "messagePreview",
}

// SheetStore keeps one spreadsheet tab per customer.
type SheetStore struct {
	API           sheets.API
	SpreadsheetID string
}

// NewSheetStore constructs a SheetStore.
func NewSheetStore(api sheets.API, spreadsheetID string) (*SheetStore, error) {
	if api == nil || spreadsheetID == "" {
		return nil, errors.New("history: sheets api and spreadsheet id are required")
	}
	return &SheetStore{API: api, SpreadsheetID: spreadsheetID}, nil
}

// Name implements Store.
func (s *SheetStore) Name() string { return "sheets" }

// TabFor returns the tab holding customerKey's orders.
func TabFor(customerKey string) string {
	return sheets.SanitizeTitle(customerKey, fallbackTab)
}

// Append implements Store.
func (s *SheetStore) Append(ctx context.Context, e Entry) error {
	title := TabFor(e.CustomerKey)
	if _, err := sheets.EnsureTab(ctx, s.API, s.SpreadsheetID, title, sheetHeaders); err != nil {
		return err
	}
	items, err := json.Marshal(e.Items)
	if err != nil {
		return fmt.Errorf("history: encode items: %w", err)
	}
	row := []string{
		e.CreatedAt.UTC().Format(timeLayout),
		e.OrderID,
		e.CustomerKey,
		e.CustomerLabel,
		strconv.FormatInt(e.TotalRounded, 10),
		sheets.Bool(e.HasConsultables),
		string(items),
		e.MessagePreview,
	}
	if err := s.API.Append(ctx, s.SpreadsheetID, sheets.Range(title, "A:H"), [][]string{row}); err != nil {
		return fmt.Errorf("history: append row: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SheetStore) List(ctx context.Context, customerKey string, limit int) ([]Entry, error) {
	title := TabFor(customerKey)
	titles, err := s.API.Titles(ctx, s.SpreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("history: list tabs: %w", err)
	}
	found := false
	for _, t := range titles {
		if t == title {
			found = true
			break
		}
	}
	if !found {
		return []Entry{}, nil
	}
	rows, err := s.API.Read(ctx, s.SpreadsheetID, sheets.Range(title, ""))
	if err != nil {
		return nil, fmt.Errorf("history: read rows: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for i, row := range rows {
		if i == 0 && sheets.Cell(row, 0) == sheetHeaders[0] {
			continue
		}
		if e, ok := parseRow(row); ok {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func parseRow(row []string) (Entry, bool) {
	created, err := time.Parse(time.RFC3339Nano, sheets.Cell(row, 0))
	if err != nil {
		return Entry{}, false
	}
	total, _ := strconv.ParseInt(sheets.Cell(row, 4), 10, 64)
	e := Entry{
		CreatedAt:       created,
		OrderID:         sheets.Cell(row, 1),
		CustomerKey:     sheets.Cell(row, 2),
		CustomerLabel:   sheets.Cell(row, 3),
		TotalRounded:    total,
		HasConsultables: sheets.Cell(row, 5) == "TRUE",
		MessagePreview:  sheets.Cell(row, 7),
		Items:           []Item{},
	}
	if raw := sheets.Cell(row, 6); raw != "" {
		_ = json.Unmarshal([]byte(raw), &e.Items)
	}
	return e, e.OrderID != ""
}
