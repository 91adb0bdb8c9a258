//go:build !moire_instrument

package sync

import (
	"context"
	stdsync "sync"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/ptime"
)

type RWMutex struct {
	inner stdsync.RWMutex
}

func NewRWMutex(*graph.Store, *causal.TaskScopeIndex, string, ptime.BacktraceID) (*RWMutex, error) {
	return &RWMutex{}, nil
}

type RWGuard struct {
	rw    *RWMutex
	write bool
}

func (rw *RWMutex) RLock(context.Context, ptime.BacktraceID) *RWGuard {
	rw.inner.RLock()
	return &RWGuard{rw: rw, write: false}
}

func (rw *RWMutex) Lock(context.Context, ptime.BacktraceID) *RWGuard {
	rw.inner.Lock()
	return &RWGuard{rw: rw, write: true}
}

func (g *RWGuard) Unlock() {
	if g.write {
		g.rw.inner.Unlock()
	} else {
		g.rw.inner.RUnlock()
	}
}
