//go:build moire_instrument

package sync

import (
	stdsync "sync"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/handles"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// BroadcastTx fans a value out to every live subscriber, dropping it for any
// subscriber whose buffer is full and tracking that subscriber's lag.
type BroadcastTx[T any] struct {
	mu       stdsync.Mutex
	subs     map[*BroadcastRx[T]]struct{}
	capacity int
	name     string
	store    *graph.Store
	handle   handles.EntityHandle[model.BroadcastTx]
}

// BroadcastRx is one subscription; it accumulates lag when its buffer fills
// before it drains.
type BroadcastRx[T any] struct {
	ch     chan T
	tx     *BroadcastTx[T]
	store  *graph.Store
	handle handles.EntityHandle[model.BroadcastRx]
	mu     stdsync.Mutex
	lag    uint64
}

func NewBroadcast[T any](store *graph.Store, name string, capacity int, source ptime.BacktraceID) (*BroadcastTx[T], error) {
	h, err := handles.NewEntityHandle[model.BroadcastTx](store, name+":tx", model.BroadcastTx{Capacity: capacity}, source)
	if err != nil {
		return nil, err
	}
	return &BroadcastTx[T]{subs: make(map[*BroadcastRx[T]]struct{}), capacity: capacity, name: name, store: store, handle: h}, nil
}

// Subscribe creates a new rx entity paired with tx via a PairedWith edge.
func (tx *BroadcastTx[T]) Subscribe(source ptime.BacktraceID) (*BroadcastRx[T], error) {
	h, err := handles.NewEntityHandle[model.BroadcastRx](tx.store, tx.name+":rx", model.BroadcastRx{}, source)
	if err != nil {
		return nil, err
	}
	tx.store.UpsertEdgeWithSource(tx.handle.ID(), h.ID(), model.PairedWith, source)
	rx := &BroadcastRx[T]{ch: make(chan T, tx.capacity), tx: tx, store: tx.store, handle: h}
	tx.mu.Lock()
	tx.subs[rx] = struct{}{}
	tx.mu.Unlock()
	return rx, nil
}

// Send fans v out to every subscriber, incrementing lag for any whose
// buffer is already full instead of blocking.
func (tx *BroadcastTx[T]) Send(v T) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for rx := range tx.subs {
		select {
		case rx.ch <- v:
		default:
			rx.mu.Lock()
			rx.lag++
			rx.mu.Unlock()
			rx.handle.Mutate(func(body *model.BroadcastRx) { body.Lag = rx.lag })
		}
	}
	recordEvent(tx.store, tx.handle.ID(), model.EventChannelSent)
}

// ErrLagged mirrors the original's RecvError::Lagged — returned instead of
// a value when this subscriber has fallen behind.
type ErrLagged struct{ Skipped uint64 }

func (e *ErrLagged) Error() string { return "broadcast: receiver lagged" }

// Recv returns the next value, or *ErrLagged if the subscriber had
// accumulated lag since its last receive (lag is surfaced, then cleared).
func (rx *BroadcastRx[T]) Recv() (T, error) {
	rx.mu.Lock()
	lag := rx.lag
	rx.lag = 0
	rx.mu.Unlock()
	if lag > 0 {
		rx.handle.Mutate(func(body *model.BroadcastRx) { body.Lag = 0 })
		var zero T
		return zero, &ErrLagged{Skipped: lag}
	}
	v := <-rx.ch
	recordEvent(rx.store, rx.handle.ID(), model.EventChannelReceived)
	return v, nil
}
