//go:build moire_instrument

package sync

import (
	"context"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/handles"
	"github.com/moire-rt/moire/internal/instrument"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// MpscTx is the sending half of a bounded or unbounded mpsc channel.
// Capacity nil means unbounded.
type MpscTx[T any] struct {
	ch     chan T
	store  *graph.Store
	handle handles.EntityHandle[model.MpscTx]
	rx     *MpscRx[T]
	tasks  *causal.TaskScopeIndex
}

// MpscRx is the receiving half, paired with its Tx via a PairedWith edge.
type MpscRx[T any] struct {
	ch     chan T
	store  *graph.Store
	handle handles.EntityHandle[model.MpscRx]
	txID   ptime.EntityID
	tasks  *causal.TaskScopeIndex
}

// NewMpsc creates a paired tx/rx. capacity == 0 means unbounded (an
// effectively unbounded Go channel buffer is used as the nearest idiomatic
// approximation; queue_len is still tracked on the body).
func NewMpsc[T any](store *graph.Store, tasks *causal.TaskScopeIndex, name string, capacity int, source ptime.BacktraceID) (*MpscTx[T], *MpscRx[T], error) {
	var cap_ *int
	chCap := capacity
	if capacity > 0 {
		c := capacity
		cap_ = &c
	} else {
		chCap = 1 << 16
	}
	txH, err := handles.NewEntityHandle[model.MpscTx](store, name+":tx", model.MpscTx{Capacity: cap_}, source)
	if err != nil {
		return nil, nil, err
	}
	rxH, err := handles.NewEntityHandle[model.MpscRx](store, name+":rx", model.MpscRx{}, source)
	if err != nil {
		txH.Drop()
		return nil, nil, err
	}
	store.UpsertEdgeWithSource(txH.ID(), rxH.ID(), model.PairedWith, source)

	ch := make(chan T, chCap)
	tx := &MpscTx[T]{ch: ch, store: store, handle: txH, tasks: tasks}
	rx := &MpscRx[T]{ch: ch, store: store, handle: rxH, txID: txH.ID(), tasks: tasks}
	tx.rx = rx
	return tx, rx, nil
}

// Send blocks if the channel is full (bounded sends are OperationFutures);
// unbounded-style channels are backed by a large buffer and only rarely
// suspend.
func (tx *MpscTx[T]) Send(ctx context.Context, v T, source ptime.BacktraceID) {
	actor, hasActor := tx.tasks.CurrentCausalTargetWithTaskFallback(ctx)
	op := instrument.NewOperationPoint(tx.store, actor, hasActor, tx.handle.ID(), source)
	op.Run(
		func() bool {
			select {
			case tx.ch <- v:
				return true
			default:
				return false
			}
		},
		func() { tx.ch <- v },
	)
	tx.handle.Mutate(func(body *model.MpscTx) { body.QueueLen++ })
	recordEvent(tx.store, tx.handle.ID(), model.EventChannelSent)
}

// TrySend attempts a non-blocking send, returning false if the channel is full.
func (tx *MpscTx[T]) TrySend(v T) bool {
	select {
	case tx.ch <- v:
		tx.handle.Mutate(func(body *model.MpscTx) { body.QueueLen++ })
		recordEvent(tx.store, tx.handle.ID(), model.EventChannelSent)
		return true
	default:
		return false
	}
}

// Recv blocks for the next value, decrementing queue_len on the paired tx.
func (rx *MpscRx[T]) Recv(ctx context.Context, source ptime.BacktraceID) (T, bool) {
	actor, hasActor := rx.tasks.CurrentCausalTargetWithTaskFallback(ctx)
	op := instrument.NewOperationPoint(rx.store, actor, hasActor, rx.handle.ID(), source)

	var v T
	var ok bool
	op.Run(
		func() bool {
			select {
			case v, ok = <-rx.ch:
				return true
			default:
				return false
			}
		},
		func() { v, ok = <-rx.ch },
	)
	if ok {
		rx.decrementTxQueueLen()
		recordEvent(rx.store, rx.handle.ID(), model.EventChannelReceived)
	}
	return v, ok
}

func (rx *MpscRx[T]) decrementTxQueueLen() {
	_ = rx.store.MutateEntityBodyAndMaybeUpsert(rx.txID, func(body model.EntityBody) model.EntityBody {
		tx, ok := body.(model.MpscTx)
		if !ok {
			return body
		}
		if tx.QueueLen > 0 {
			tx.QueueLen--
		}
		return tx
	})
}
