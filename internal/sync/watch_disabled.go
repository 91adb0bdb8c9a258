//go:build !moire_instrument

package sync

import (
	"context"
	stdsync "sync"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/ptime"
)

type WatchTx[T any] struct {
	mu      stdsync.Mutex
	value   T
	version uint64
	changed chan struct{}
}

type WatchRx[T any] struct {
	tx       *WatchTx[T]
	lastSeen uint64
}

func NewWatch[T any](_ *graph.Store, _ *causal.TaskScopeIndex, _ string, initial T, _ ptime.BacktraceID) (*WatchTx[T], *WatchRx[T], error) {
	tx := &WatchTx[T]{value: initial, changed: make(chan struct{})}
	return tx, &WatchRx[T]{tx: tx}, nil
}

func (tx *WatchTx[T]) Send(v T) {
	tx.mu.Lock()
	tx.value = v
	tx.version++
	old := tx.changed
	tx.changed = make(chan struct{})
	tx.mu.Unlock()
	close(old)
}

func (tx *WatchTx[T]) SendReplace(v T) { tx.Send(v) }

func (rx *WatchRx[T]) Borrow() T {
	rx.tx.mu.Lock()
	defer rx.tx.mu.Unlock()
	return rx.tx.value
}

func (rx *WatchRx[T]) Changed(context.Context, ptime.BacktraceID) T {
	for {
		rx.tx.mu.Lock()
		ch := rx.tx.changed
		version := rx.tx.version
		rx.tx.mu.Unlock()
		if version != rx.lastSeen {
			rx.tx.mu.Lock()
			v := rx.tx.value
			rx.lastSeen = rx.tx.version
			rx.tx.mu.Unlock()
			return v
		}
		<-ch
	}
}
