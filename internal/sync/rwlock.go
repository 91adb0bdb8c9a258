//go:build moire_instrument

package sync

import (
	"context"
	stdsync "sync"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/handles"
	"github.com/moire-rt/moire/internal/instrument"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
	"github.com/moire-rt/moire/internal/sync/lockorder"
)

// RWMutex wraps sync.RWMutex. Both read and write guards hold Holds edges;
// readers coexist because an edge is keyed by (src, dst, kind) and every
// reader uses its own distinct dst (its causal target), so N concurrent
// readers produce N distinct Holds edges from the lock entity.
type RWMutex struct {
	inner  stdsync.RWMutex
	store  *graph.Store
	handle handles.EntityHandle[model.Lock]
	tasks  *causal.TaskScopeIndex
}

func NewRWMutex(store *graph.Store, tasks *causal.TaskScopeIndex, name string, source ptime.BacktraceID) (*RWMutex, error) {
	h, err := handles.NewEntityHandle[model.Lock](store, name, model.Lock{Kind: model.LockRWLock}, source)
	if err != nil {
		return nil, err
	}
	return &RWMutex{store: store, handle: h, tasks: tasks}, nil
}

// RWGuard releases whichever guard kind it was issued as.
type RWGuard struct {
	rw       *RWMutex
	actor    ptime.EntityID
	hasActor bool
	write    bool
}

func (rw *RWMutex) RLock(ctx context.Context, source ptime.BacktraceID) *RWGuard {
	actor, hasActor := rw.tasks.CurrentCausalTargetWithTaskFallback(ctx)
	op := instrument.NewOperationPoint(rw.store, actor, hasActor, rw.handle.ID(), source)
	op.Run(func() bool { return rw.inner.TryRLock() }, func() { rw.inner.RLock() })
	if hasActor {
		rw.store.UpsertEdgeWithSource(rw.handle.ID(), actor, model.Holds, source)
		lockorder.Push(rw.handle.ID())
	}
	return &RWGuard{rw: rw, actor: actor, hasActor: hasActor, write: false}
}

func (rw *RWMutex) Lock(ctx context.Context, source ptime.BacktraceID) *RWGuard {
	actor, hasActor := rw.tasks.CurrentCausalTargetWithTaskFallback(ctx)
	op := instrument.NewOperationPoint(rw.store, actor, hasActor, rw.handle.ID(), source)
	op.Run(func() bool { return rw.inner.TryLock() }, func() { rw.inner.Lock() })
	if hasActor {
		rw.store.UpsertEdgeWithSource(rw.handle.ID(), actor, model.Holds, source)
		lockorder.Push(rw.handle.ID())
	}
	return &RWGuard{rw: rw, actor: actor, hasActor: hasActor, write: true}
}

func (g *RWGuard) Unlock() {
	if g.hasActor {
		lockorder.Pop(g.rw.handle.ID())
		g.rw.store.RemoveEdge(g.rw.handle.ID(), g.actor, model.Holds)
	}
	if g.write {
		g.rw.inner.Unlock()
	} else {
		g.rw.inner.RUnlock()
	}
}
