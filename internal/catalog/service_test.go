package catalog_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/makabra/mayorista-api/internal/catalog"
)

type gatedSource struct {
	started chan struct{}
	release chan struct{}
	calls   int32
}

func (s *gatedSource) Name() string { return "gated" }

func (s *gatedSource) Records(ctx context.Context) ([][]string, error) {
	if atomic.AddInt32(&s.calls, 1) == 1 {
		close(s.started)
	}
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return [][]string{{"id", "nombre", "precio_base"}, {"Y1", "Yerba", "100"}}, nil
}

func TestRefreshSurvivesCancelledLeader(t *testing.T) {
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	svc, err := catalog.NewService(catalog.ServiceConfig{Source: src, Logger: zerolog.Nop()})
	require.NoError(t, err)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Refresh(leaderCtx)
		leaderErr <- err
	}()
	<-src.started

	type result struct {
		snap catalog.Snapshot
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		snap, err := svc.Refresh(context.Background())
		follower <- result{snap, err}
	}()

	cancelLeader()
	select {
	case err := <-leaderErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(src.release)
	select {
	case res := <-follower:
		require.NoError(t, res.err)
		require.Len(t, res.snap.Products, 1)
	case <-time.After(time.Second):
		t.Fatal("follower never received the shared load")
	}
}
