package history

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/app", migrateURL("postgres://u:p@db:5432/app"))
	require.Equal(t, "pgx5://db/app", migrateURL("postgresql://db/app"))
	require.Equal(t, "pgx5://db/app", migrateURL("pgx5://db/app"))
}

func TestNewPGStoreRequiresDB(t *testing.T) {
	_, err := NewPGStore(nil)
	require.Error(t, err)
}

func TestPGStoreAgainstDatabase(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, Migrate(url))

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	key := fmt.Sprintf("C-%08d", time.Now().UnixNano()%100000000)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM order_history WHERE customer_key = $1", key)
	})

	store, err := NewPGStore(pool)
	require.NoError(t, err)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < maxPerClient+5; i++ {
		require.NoError(t, store.Append(ctx, Entry{
			OrderID:     fmt.Sprintf("%s-%d", key, i),
			CustomerKey: key,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			Items:       []Item{{Name: "Yerba", Qty: 1}},
		}))
	}
	require.NoError(t, store.Append(ctx, Entry{
		OrderID:      fmt.Sprintf("%s-%d", key, maxPerClient+4),
		CustomerKey:  key,
		TotalRounded: 999,
		CreatedAt:    base.Add(time.Hour * 24),
		Items:        []Item{},
	}))

	entries, err := store.List(ctx, key, 100)
	require.NoError(t, err)
	require.Len(t, entries, maxPerClient)
	require.EqualValues(t, 999, entries[0].TotalRounded, "upsert replaced the row")
	require.Equal(t, fmt.Sprintf("%s-%d", key, 5), entries[len(entries)-1].OrderID)
}
