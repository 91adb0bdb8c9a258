//go:build !moire_instrument

package sync

import (
	"context"

	xsemaphore "golang.org/x/sync/semaphore"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/ptime"
)

type Semaphore struct {
	inner *xsemaphore.Weighted
}

func NewSemaphore(_ *graph.Store, _ *causal.TaskScopeIndex, _ string, maxPermits int, _ ptime.BacktraceID) (*Semaphore, error) {
	return &Semaphore{inner: xsemaphore.NewWeighted(int64(maxPermits))}, nil
}

type Permit struct {
	s *Semaphore
	n int64
}

func (s *Semaphore) Acquire(ctx context.Context, n int64, _ ptime.BacktraceID) (*Permit, error) {
	if err := s.inner.Acquire(ctx, n); err != nil {
		return nil, err
	}
	return &Permit{s: s, n: n}, nil
}

func (p *Permit) Release() { p.s.inner.Release(p.n) }
