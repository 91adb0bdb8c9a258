//go:build !moire_instrument

package sync

import (
	"context"
	stdsync "sync"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/ptime"
)

type Notify struct {
	mu      stdsync.Mutex
	waiters []chan struct{}
}

func NewNotify(*graph.Store, *causal.TaskScopeIndex, string, ptime.BacktraceID) (*Notify, error) {
	return &Notify{}, nil
}

func (n *Notify) Notified(context.Context, ptime.BacktraceID) {
	ch := make(chan struct{})
	n.mu.Lock()
	n.waiters = append(n.waiters, ch)
	n.mu.Unlock()
	<-ch
}

func (n *Notify) NotifyOne() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.waiters) == 0 {
		return
	}
	ch := n.waiters[0]
	n.waiters = n.waiters[1:]
	close(ch)
}

func (n *Notify) NotifyWaiters() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.waiters {
		close(ch)
	}
	n.waiters = nil
}
