// Package sync wraps the concurrency primitives a program under
// instrumentation actually uses — mutexes, channels, semaphores, RPC
// request/response pairs — so that ordinary calls to Lock/Send/Recv/etc.
// produce the graph's entities, edges, and events as a side effect. Every
// wrapper here has a pass-through twin gated by the moire_instrument build
// tag (see mutex_disabled.go and friends) that keeps the identical public
// API while touching no graph state.
//
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

// Mutex wraps sync.Mutex with graph instrumentation: a Holds edge from the
// lock entity to the caller's causal target while held, and lock-order
// tracking via HELD_MUTEX_STACK for collector-side deadlock analysis.
type Mutex struct {
	inner  stdsync.Mutex
	store  *graph.Store
	handle handles.EntityHandle[model.Lock]
	tasks  *causal.TaskScopeIndex
}

// NewMutex creates the lock's entity.
func NewMutex(store *graph.Store, tasks *causal.TaskScopeIndex, name string, source ptime.BacktraceID) (*Mutex, error) {
	h, err := handles.NewEntityHandle[model.Lock](store, name, model.Lock{Kind: model.LockMutex}, source)
	if err != nil {
		return nil, err
	}
	return &Mutex{store: store, handle: h, tasks: tasks}, nil
}

// MutexGuard releases the lock and its Holds edge/lock-order entry on Unlock.
type MutexGuard struct {
	m      *Mutex
	actor  ptime.EntityID
	hasActor bool
	source ptime.BacktraceID
}

// Lock blocks until the mutex is acquired, recording a WaitingOn edge while
// contended and a Holds edge from the lock entity to the caller's causal
// target for the guard's lifetime.
func (m *Mutex) Lock(ctx context.Context, source ptime.BacktraceID) *MutexGuard {
	actor, hasActor := m.tasks.CurrentCausalTargetWithTaskFallback(ctx)
	op := instrument.NewOperationPoint(m.store, actor, hasActor, m.handle.ID(), source)
	op.Run(func() bool { return m.inner.TryLock() }, func() { m.inner.Lock() })

	if hasActor {
		m.store.UpsertEdgeWithSource(m.handle.ID(), actor, model.Holds, source)
		lockorder.Push(m.handle.ID())
	}
	return &MutexGuard{m: m, actor: actor, hasActor: hasActor, source: source}
}

// TryLock attempts a non-blocking acquisition. On failure it records a
// transient Polls interest but installs no Holds edge (per the tie-break:
// failed non-blocking attempts never claim ownership).
func (m *Mutex) TryLock(ctx context.Context, source ptime.BacktraceID) (*MutexGuard, bool) {
	actor, hasActor := m.tasks.CurrentCausalTargetWithTaskFallback(ctx)
	if !m.inner.TryLock() {
		if hasActor {
			m.store.UpsertEdgeWithSource(actor, m.handle.ID(), model.Polls, source)
			m.store.RemoveEdge(actor, m.handle.ID(), model.Polls)
		}
		return nil, false
	}
	if hasActor {
		m.store.UpsertEdgeWithSource(m.handle.ID(), actor, model.Holds, source)
		lockorder.Push(m.handle.ID())
	}
	return &MutexGuard{m: m, actor: actor, hasActor: hasActor, source: source}, true
}

// Unlock releases the guard, removing the Holds edge and popping the
// lock-order stack.
func (g *MutexGuard) Unlock() {
	if g.hasActor {
		lockorder.Pop(g.m.handle.ID())
		g.m.store.RemoveEdge(g.m.handle.ID(), g.actor, model.Holds)
	}
	g.m.inner.Unlock()
}
