package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Memory is an in-process API used for local development and tests. It
// honours the starting row of A1 ranges and ignores column bounds.
type Memory struct {
	mu    sync.Mutex
	books map[string]*book

	// FailUpdates makes the next n Update calls fail.
	FailUpdates int
	// FailAppends makes the next n Append calls fail.
	FailAppends int
}

type book struct {
	order []string
	tabs  map[string][][]string
}

// NewMemory returns an empty in-memory workbook store.
func NewMemory() *Memory {
	return &Memory{books: make(map[string]*book)}
}

func (m *Memory) book(id string) *book {
	b, ok := m.books[id]
	if !ok {
		b = &book{tabs: make(map[string][][]string)}
		m.books[id] = b
	}
	return b
}

// Titles implements API.
func (m *Memory) Titles(_ context.Context, spreadsheetID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.book(spreadsheetID).order...), nil
}

// AddTab implements API.
func (m *Memory) AddTab(_ context.Context, spreadsheetID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.book(spreadsheetID)
	if _, ok := b.tabs[title]; ok {
		return fmt.Errorf("sheets: tab %q already exists", title)
	}
	b.order = append(b.order, title)
	b.tabs[title] = nil
	return nil
}

// Read implements API.
func (m *Memory) Read(_ context.Context, spreadsheetID, rng string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	title, start, err := parseRange(rng)
	if err != nil {
		return nil, err
	}
	rows, ok := m.book(spreadsheetID).tabs[title]
	if !ok {
		return nil, fmt.Errorf("sheets: unable to parse range: %s", rng)
	}
	if start > len(rows) {
		return nil, nil
	}
	return copyRows(rows[start:]), nil
}

// Update implements API.
func (m *Memory) Update(_ context.Context, spreadsheetID, rng string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpdates > 0 {
		m.FailUpdates--
		return fmt.Errorf("sheets: simulated update failure")
	}
	title, start, err := parseRange(rng)
	if err != nil {
		return err
	}
	b := m.book(spreadsheetID)
	existing, ok := b.tabs[title]
	if !ok {
		return fmt.Errorf("sheets: unable to parse range: %s", rng)
	}
	for len(existing) < start+len(rows) {
		existing = append(existing, nil)
	}
	for i, row := range rows {
		existing[start+i] = append([]string(nil), row...)
	}
	b.tabs[title] = existing
	return nil
}

// Append implements API.
func (m *Memory) Append(_ context.Context, spreadsheetID, rng string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppends > 0 {
		m.FailAppends--
		return fmt.Errorf("sheets: simulated append failure")
	}
	title, _, err := parseRange(rng)
	if err != nil {
		return err
	}
	b := m.book(spreadsheetID)
	if _, ok := b.tabs[title]; !ok {
		return fmt.Errorf("sheets: unable to parse range: %s", rng)
	}
	b.tabs[title] = append(b.tabs[title], copyRows(rows)...)
	return nil
}

// Rows returns a copy of every row in title.
func (m *Memory) Rows(spreadsheetID, title string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRows(m.book(spreadsheetID).tabs[title])
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// parseRange splits "'Tab'!A5:H" into the tab title and the zero-based start row.
func parseRange(rng string) (string, int, error) {
	title, cells := rng, ""
	if strings.HasPrefix(rng, "'") {
		var b strings.Builder
		i := 1
		closed := false
		for i < len(rng) {
			if rng[i] == '\'' {
				if i+1 < len(rng) && rng[i+1] == '\'' {
					b.WriteByte('\'')
					i += 2
					continue
				}
				closed = true
				i++
				break
			}
			b.WriteByte(rng[i])
			i++
		}
		if !closed {
			return "", 0, fmt.Errorf("sheets: malformed range %q", rng)
		}
		title = b.String()
		cells = strings.TrimPrefix(rng[i:], "!")
	} else if i := strings.LastIndex(rng, "!"); i >= 0 {
		title, cells = rng[:i], rng[i+1:]
	}
	first, _, _ := strings.Cut(cells, ":")
	digits := strings.TrimLeft(first, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")
	if digits == "" {
		return title, 0, nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return "", 0, fmt.Errorf("sheets: malformed range %q", rng)
	}
	return title, n - 1, nil
}
