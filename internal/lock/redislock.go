// Package lock provides a single-holder Redis lock for background jobs.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by TryWithLock when another holder owns the key.
var ErrLocked = errors.New("lock: already held")

var errNoClient = errors.New("lock: redis client not configured")

const (
	defaultTTL     = 30 * time.Second
	releaseTimeout = 2 * time.Second
)

// Both scripts only touch the key while it still holds our token.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Locker takes locks with SET NX PX and a random token per holder.
type Locker struct {
	R redis.UniversalClient
}

// TryWithLock runs fn only if key is free, returning ErrLocked otherwise.
// While fn runs the TTL is refreshed every third of ttl, so a slow holder
// keeps the lock and a crashed one loses it after ttl. The lock is released
// when fn returns, whatever the outcome.
func (l Locker) TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errNoClient
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocked
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.heartbeat(ctx, key, token, ttl, stop)
	}()
	defer func() {
		close(stop)
		<-done
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.R, []string{key}, token).Err()
	}()
	return fn(ctx)
}

func (l Locker) heartbeat(ctx context.Context, key, token string, ttl time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(max(ttl/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = extendScript.Run(ctx, l.R, []string{key}, token, ttl.Milliseconds()).Err()
		}
	}
}

// Held reports whether key is currently locked by anyone.
func (l Locker) Held(ctx context.Context, key string) (bool, error) {
	if l.R == nil {
		return false, errNoClient
	}
	n, err := l.R.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
