//go:build moire_instrument

package sync

import (
	"context"

	xsemaphore "golang.org/x/sync/semaphore"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/handles"
	"github.com/moire-rt/moire/internal/instrument"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// Semaphore wraps golang.org/x/sync/semaphore.Weighted with an acquire-n /
// release surface mirroring the original's counting semaphore, tracking
// handed_out_permits on the entity body.
type Semaphore struct {
	inner  *xsemaphore.Weighted
	store  *graph.Store
	handle handles.EntityHandle[model.Semaphore]
	tasks  *causal.TaskScopeIndex
}

func NewSemaphore(store *graph.Store, tasks *causal.TaskScopeIndex, name string, maxPermits int, source ptime.BacktraceID) (*Semaphore, error) {
	h, err := handles.NewEntityHandle[model.Semaphore](store, name, model.Semaphore{MaxPermits: maxPermits}, source)
	if err != nil {
		return nil, err
	}
	return &Semaphore{inner: xsemaphore.NewWeighted(int64(maxPermits)), store: store, handle: h, tasks: tasks}, nil
}

// Permit is returned by Acquire and releases its weight, and its Holds edge,
// on Release.
type Permit struct {
	s        *Semaphore
	n        int64
	actor    ptime.EntityID
	hasActor bool
	source   ptime.BacktraceID
}

// Acquire blocks until n permits are available, wrapped as an OperationFuture.
// On success the semaphore's entity gets a Holds edge to the caller's causal
// target for the permit's lifetime.
func (s *Semaphore) Acquire(ctx context.Context, n int64, source ptime.BacktraceID) (*Permit, error) {
	actor, hasActor := s.tasks.CurrentCausalTargetWithTaskFallback(ctx)
	op := instrument.NewOperationPoint(s.store, actor, hasActor, s.handle.ID(), source)

	var acquireErr error
	op.Run(
		func() bool { return s.inner.TryAcquire(n) },
		func() { acquireErr = s.inner.Acquire(ctx, n) },
	)
	if acquireErr != nil {
		return nil, acquireErr
	}
	s.handle.Mutate(func(body *model.Semaphore) { body.HandedOutPermits += int(n) })
	if hasActor {
		s.store.UpsertEdgeWithSource(s.handle.ID(), actor, model.Holds, source)
	}
	return &Permit{s: s, n: n, actor: actor, hasActor: hasActor, source: source}, nil
}

// Release returns the permit's weight to the semaphore and removes its Holds
// edge.
func (p *Permit) Release() {
	if p.hasActor {
		p.s.store.RemoveEdge(p.s.handle.ID(), p.actor, model.Holds)
	}
	p.s.inner.Release(p.n)
	p.s.handle.Mutate(func(body *model.Semaphore) { body.HandedOutPermits -= int(p.n) })
}
