package catalogsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/makabra/mayorista-api/internal/cache"
)

// Status is the outcome of the last synchronization.
type Status struct {
	OK          bool   `json:"ok"`
	StartedAt   string `json:"startedAt,omitempty"`
	FinishedAt  string `json:"finishedAt"`
	Added       int    `json:"added"`
	Updated     int    `json:"updated"`
	Deactivated int    `json:"deactivated"`
	ErrorsCount int    `json:"errorsCount"`
	Fetched     int    `json:"fetched"`
	Error       string `json:"error,omitempty"`
}

// StatusStore keeps the last Status.
type StatusStore interface {
	Save(ctx context.Context, s Status) error
	Load(ctx context.Context) (*Status, error)
}

// RedisStatus stores the last Status as JSON in Redis without expiry.
type RedisStatus struct {
	R   redis.UniversalClient
	Key string
}

// NewRedisStatus returns a store keyed for the named sync.
func NewRedisStatus(r redis.UniversalClient, name string) RedisStatus {
	return RedisStatus{R: r, Key: cache.KeySyncStatus(name)}
}

// Save implements StatusStore.
func (s RedisStatus) Save(ctx context.Context, st Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, s.Key, data, 0).Err()
}

// Load implements StatusStore. It returns nil when no run was recorded.
func (s RedisStatus) Load(ctx context.Context) (*Status, error) {
	data, err := s.R.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("catalogsync: decode status: %w", err)
	}
	return &st, nil
}
