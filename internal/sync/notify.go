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
)

// Notify wraps a simple waiter-counted broadcast wakeup, the Go analogue of
// the original's Notify: notified() is an OperationFuture, notify_one/
// notify_waiters emit ChannelSent-class events but no edges.
type Notify struct {
	mu      stdsync.Mutex
	waiters []chan struct{}
	store   *graph.Store
	handle  handles.EntityHandle[model.Notify]
	tasks   *causal.TaskScopeIndex
}

func NewNotify(store *graph.Store, tasks *causal.TaskScopeIndex, name string, source ptime.BacktraceID) (*Notify, error) {
	h, err := handles.NewEntityHandle[model.Notify](store, name, model.Notify{}, source)
	if err != nil {
		return nil, err
	}
	return &Notify{store: store, handle: h, tasks: tasks}, nil
}

// Notified blocks until the next NotifyOne/NotifyWaiters call.
func (n *Notify) Notified(ctx context.Context, source ptime.BacktraceID) {
	actor, hasActor := n.tasks.CurrentCausalTargetWithTaskFallback(ctx)
	op := instrument.NewOperationPoint(n.store, actor, hasActor, n.handle.ID(), source)

	ch := make(chan struct{})
	n.mu.Lock()
	n.waiters = append(n.waiters, ch)
	n.handle.Mutate(func(body *model.Notify) { body.WaiterCount++ })
	n.mu.Unlock()

	op.Run(func() bool { return false }, func() { <-ch })

	n.mu.Lock()
	n.handle.Mutate(func(body *model.Notify) { body.WaiterCount-- })
	n.mu.Unlock()
}

// NotifyOne wakes a single waiter, if one is waiting.
func (n *Notify) NotifyOne() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.waiters) == 0 {
		return
	}
	ch := n.waiters[0]
	n.waiters = n.waiters[1:]
	close(ch)
	n.recordSentLocked()
}

// NotifyWaiters wakes every currently waiting caller.
func (n *Notify) NotifyWaiters() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.waiters {
		close(ch)
	}
	n.waiters = nil
	n.recordSentLocked()
}

func (n *Notify) recordSentLocked() {
	recordEvent(n.store, n.handle.ID(), model.EventChannelSent)
}
