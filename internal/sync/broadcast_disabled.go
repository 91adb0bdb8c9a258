//go:build !moire_instrument

package sync

import (
	stdsync "sync"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/ptime"
)

type BroadcastTx[T any] struct {
	mu       stdsync.Mutex
	subs     map[*BroadcastRx[T]]struct{}
	capacity int
}

type BroadcastRx[T any] struct {
	ch chan T
}

func NewBroadcast[T any](_ *graph.Store, _ string, capacity int, _ ptime.BacktraceID) (*BroadcastTx[T], error) {
	return &BroadcastTx[T]{subs: make(map[*BroadcastRx[T]]struct{}), capacity: capacity}, nil
}

func (tx *BroadcastTx[T]) Subscribe(ptime.BacktraceID) (*BroadcastRx[T], error) {
	rx := &BroadcastRx[T]{ch: make(chan T, tx.capacity)}
	tx.mu.Lock()
	tx.subs[rx] = struct{}{}
	tx.mu.Unlock()
	return rx, nil
}

func (tx *BroadcastTx[T]) Send(v T) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for rx := range tx.subs {
		select {
		case rx.ch <- v:
		default:
		}
	}
}

type ErrLagged struct{ Skipped uint64 }

func (e *ErrLagged) Error() string { return "broadcast: receiver lagged" }

func (rx *BroadcastRx[T]) Recv() (T, error) {
	v := <-rx.ch
	return v, nil
}
