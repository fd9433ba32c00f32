package history

import "context"

// Store persists order history.
type Store interface {
	Name() string
	Append(ctx context.Context, e Entry) error
	// List returns up to limit entries for customerKey, newest first.
	List(ctx context.Context, customerKey string, limit int) ([]Entry, error)
}
