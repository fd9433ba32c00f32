package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TypeSyncScanntech is the asynq task type of a synchronization run.
const TypeSyncScanntech = "catalog:sync_scanntech"

// NewSyncTask builds a sync task that stays unique for uniqueFor.
func NewSyncTask(uniqueFor time.Duration) *asynq.Task {
	if uniqueFor <= 0 {
		uniqueFor = DefaultLockTTL
	}
	return asynq.NewTask(TypeSyncScanntech, nil,
		asynq.Unique(uniqueFor),
		asynq.MaxRetry(3),
		asynq.Timeout(uniqueFor),
	)
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskHandler runs queued synchronizations.
type TaskHandler struct {
	Runner *Runner
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler. A run already in progress is not retried.
func (h TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	res, err := h.Runner.Run(ctx)
	if errors.Is(err, ErrAlreadyRunning) {
		h.Logger.Info().Str("task", t.Type()).Msg("sync skipped, another run holds the lock")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	h.Logger.Info().Str("task", t.Type()).Int("added", res.Added).Int("updated", res.Updated).Msg("sync task done")
	return nil
}
