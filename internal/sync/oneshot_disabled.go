//go:build !moire_instrument

package sync

import (
	"context"
	"errors"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/ptime"
)

var ErrOneshotClosed = errors.New("oneshot: sender dropped without sending")

type OneshotTx[T any] struct{ ch chan T }
type OneshotRx[T any] struct{ ch chan T }

func NewOneshot[T any](_ *graph.Store, _ *causal.TaskScopeIndex, _ string, _ ptime.BacktraceID) (*OneshotTx[T], *OneshotRx[T], error) {
	ch := make(chan T, 1)
	return &OneshotTx[T]{ch: ch}, &OneshotRx[T]{ch: ch}, nil
}

func (tx *OneshotTx[T]) Send(v T) {
	tx.ch <- v
	close(tx.ch)
}

func (rx *OneshotRx[T]) Recv(context.Context, ptime.BacktraceID) (T, error) {
	v, ok := <-rx.ch
	if !ok {
		var zero T
		return zero, ErrOneshotClosed
	}
	return v, nil
}
