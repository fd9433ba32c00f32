package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool used by PGStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	upsertOrderSQL = `
INSERT INTO order_history (order_id, customer_key, customer_label, total_rounded, has_consultables, items, message_preview, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (order_id) DO UPDATE SET
    customer_key = EXCLUDED.customer_key,
    customer_label = EXCLUDED.customer_label,
    total_rounded = EXCLUDED.total_rounded,
    has_consultables = EXCLUDED.has_consultables,
    items = EXCLUDED.items,
    message_preview = EXCLUDED.message_preview,
    created_at = EXCLUDED.created_at`

	trimCustomerSQL = `
DELETE FROM order_history
WHERE customer_key = $1
  AND order_id NOT IN (
    SELECT order_id FROM order_history
    WHERE customer_key = $1
    ORDER BY created_at DESC
    LIMIT $2
  )`

	listOrdersSQL = `
SELECT order_id, customer_key, customer_label, total_rounded, has_consultables, items, message_preview, created_at
FROM order_history
WHERE customer_key = $1
ORDER BY created_at DESC
LIMIT $2`
)

// PGStore keeps order history in Postgres, capped per customer.
type PGStore struct {
	db DB
}

// NewPGStore constructs a PGStore.
func NewPGStore(db DB) (*PGStore, error) {
	if db == nil {
		return nil, errors.New("history: database is required")
	}
	return &PGStore{db: db}, nil
}

// Name implements Store.
func (s *PGStore) Name() string { return "postgres" }

// Append implements Store. Re-recording an order id replaces the earlier row.
func (s *PGStore) Append(ctx context.Context, e Entry) error {
	items, err := json.Marshal(e.Items)
	if err != nil {
		return fmt.Errorf("history: encode items: %w", err)
	}
	if _, err := s.db.Exec(ctx, upsertOrderSQL,
		e.OrderID, e.CustomerKey, e.CustomerLabel, e.TotalRounded,
		e.HasConsultables, items, e.MessagePreview, e.CreatedAt,
	); err != nil {
		return fmt.Errorf("history: insert order: %w", err)
	}
	if _, err := s.db.Exec(ctx, trimCustomerSQL, e.CustomerKey, maxPerClient); err != nil {
		return fmt.Errorf("history: trim orders: %w", err)
	}
	return nil
}

// List implements Store.
func (s *PGStore) List(ctx context.Context, customerKey string, limit int) ([]Entry, error) {
	rows, err := s.db.Query(ctx, listOrdersSQL, customerKey, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list orders: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e     Entry
			items []byte
		)
		if err := row.Scan(&e.OrderID, &e.CustomerKey, &e.CustomerLabel, &e.TotalRounded,
			&e.HasConsultables, &items, &e.MessagePreview, &e.CreatedAt); err != nil {
			return Entry{}, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		e.Items = []Item{}
		if len(items) > 0 {
			if err := json.Unmarshal(items, &e.Items); err != nil {
				return Entry{}, fmt.Errorf("decode items: %w", err)
			}
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: scan orders: %w", err)
	}
	return out, nil
}
