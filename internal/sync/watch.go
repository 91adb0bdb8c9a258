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

// WatchTx holds the latest value of a single-slot broadcast cell.
type WatchTx[T any] struct {
	mu      stdsync.Mutex
	value   T
	version uint64
	changed chan struct{}
	store   *graph.Store
	handle  handles.EntityHandle[model.WatchTx]
}

// WatchRx observes WatchTx's latest value.
type WatchRx[T any] struct {
	tx            *WatchTx[T]
	lastSeen      uint64
	store         *graph.Store
	handle        handles.EntityHandle[model.WatchRx]
	tasks         *causal.TaskScopeIndex
}

func NewWatch[T any](store *graph.Store, tasks *causal.TaskScopeIndex, name string, initial T, source ptime.BacktraceID) (*WatchTx[T], *WatchRx[T], error) {
	txH, err := handles.NewEntityHandle[model.WatchTx](store, name+":tx", model.WatchTx{}, source)
	if err != nil {
		return nil, nil, err
	}
	rxH, err := handles.NewEntityHandle[model.WatchRx](store, name+":rx", model.WatchRx{}, source)
	if err != nil {
		txH.Drop()
		return nil, nil, err
	}
	store.UpsertEdgeWithSource(txH.ID(), rxH.ID(), model.PairedWith, source)

	tx := &WatchTx[T]{value: initial, changed: make(chan struct{}), store: store, handle: txH}
	rx := &WatchRx[T]{tx: tx, store: store, handle: rxH, tasks: tasks}
	return tx, rx, nil
}

// Send replaces the current value and wakes every waiting Changed caller.
func (tx *WatchTx[T]) Send(v T) {
	tx.mu.Lock()
	tx.value = v
	tx.version++
	now := uint64(ptime.Now())
	old := tx.changed
	tx.changed = make(chan struct{})
	tx.mu.Unlock()
	close(old)
	tx.handle.Mutate(func(body *model.WatchTx) { body.LastUpdateAt = &now })
}

// SendReplace is Send's named alias, matching the original's send_replace.
func (tx *WatchTx[T]) SendReplace(v T) { tx.Send(v) }

// Borrow returns the current value without waiting.
func (rx *WatchRx[T]) Borrow() T {
	rx.tx.mu.Lock()
	defer rx.tx.mu.Unlock()
	return rx.tx.value
}

// Changed blocks until the value changes since the last Changed call (Borrow
// does not mark a value as seen), wrapped as an OperationFuture against the
// rx entity.
func (rx *WatchRx[T]) Changed(ctx context.Context, source ptime.BacktraceID) T {
	actor, hasActor := rx.tasks.CurrentCausalTargetWithTaskFallback(ctx)
	op := instrument.NewOperationPoint(rx.store, actor, hasActor, rx.handle.ID(), source)

	op.Run(
		func() bool {
			rx.tx.mu.Lock()
			defer rx.tx.mu.Unlock()
			return rx.tx.version != rx.lastSeen
		},
		func() {
			for {
				rx.tx.mu.Lock()
				ch := rx.tx.changed
				version := rx.tx.version
				rx.tx.mu.Unlock()
				if version != rx.lastSeen {
					return
				}
				<-ch
			}
		},
	)
	rx.tx.mu.Lock()
	v := rx.tx.value
	rx.lastSeen = rx.tx.version
	rx.tx.mu.Unlock()
	return v
}
