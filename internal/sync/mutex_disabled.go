//go:build !moire_instrument

package sync

import (
	"context"
	stdsync "sync"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/ptime"
)

// Mutex is the pass-through build: identical public API to the instrumented
// Mutex, but graph-free — every constructor argument beyond the inner
// primitive itself is accepted and ignored, so call sites need no build
// tags of their own.
type Mutex struct {
	inner stdsync.Mutex
}

func NewMutex(*graph.Store, *causal.TaskScopeIndex, string, ptime.BacktraceID) (*Mutex, error) {
	return &Mutex{}, nil
}

type MutexGuard struct {
	m *Mutex
}

func (m *Mutex) Lock(context.Context, ptime.BacktraceID) *MutexGuard {
	m.inner.Lock()
	return &MutexGuard{m: m}
}

func (m *Mutex) TryLock(context.Context, ptime.BacktraceID) (*MutexGuard, bool) {
	if !m.inner.TryLock() {
		return nil, false
	}
	return &MutexGuard{m: m}, true
}

func (g *MutexGuard) Unlock() { g.m.inner.Unlock() }
