//go:build moire_instrument

package sync

import (
	"context"
	"errors"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/handles"
	"github.com/moire-rt/moire/internal/instrument"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// ErrOneshotClosed is returned from Recv if the sender dropped without sending.
var ErrOneshotClosed = errors.New("oneshot: sender dropped without sending")

// OneshotTx sends exactly one value; Send consumes it.
type OneshotTx[T any] struct {
	ch     chan T
	store  *graph.Store
	handle handles.EntityHandle[model.OneshotTx]
}

// OneshotRx receives the single value.
type OneshotRx[T any] struct {
	ch     chan T
	store  *graph.Store
	handle handles.EntityHandle[model.OneshotRx]
	tasks  *causal.TaskScopeIndex
}

func NewOneshot[T any](store *graph.Store, tasks *causal.TaskScopeIndex, name string, source ptime.BacktraceID) (*OneshotTx[T], *OneshotRx[T], error) {
	txH, err := handles.NewEntityHandle[model.OneshotTx](store, name+":tx", model.OneshotTx{}, source)
	if err != nil {
		return nil, nil, err
	}
	rxH, err := handles.NewEntityHandle[model.OneshotRx](store, name+":rx", model.OneshotRx{}, source)
	if err != nil {
		txH.Drop()
		return nil, nil, err
	}
	store.UpsertEdgeWithSource(txH.ID(), rxH.ID(), model.PairedWith, source)

	ch := make(chan T, 1)
	tx := &OneshotTx[T]{ch: ch, store: store, handle: txH}
	rx := &OneshotRx[T]{ch: ch, store: store, handle: rxH, tasks: tasks}
	return tx, rx, nil
}

// Send delivers v, marking the sender as consumed. Calling it more than
// once panics, matching a oneshot sender's single-use contract.
func (tx *OneshotTx[T]) Send(v T) {
	tx.ch <- v
	close(tx.ch)
	tx.handle.Mutate(func(body *model.OneshotTx) { body.Sent = true })
	recordEvent(tx.store, tx.handle.ID(), model.EventChannelSent)
}

// Recv blocks for the value, wrapped as an OperationFuture against the rx entity.
func (rx *OneshotRx[T]) Recv(ctx context.Context, source ptime.BacktraceID) (T, error) {
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
	if !ok {
		return v, ErrOneshotClosed
	}
	recordEvent(rx.store, rx.handle.ID(), model.EventChannelReceived)
	return v, nil
}
