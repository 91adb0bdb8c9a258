//go:build !moire_instrument

package sync

import (
	"context"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/ptime"
)

type MpscTx[T any] struct{ ch chan T }
type MpscRx[T any] struct{ ch chan T }

func NewMpsc[T any](_ *graph.Store, _ *causal.TaskScopeIndex, _ string, capacity int, _ ptime.BacktraceID) (*MpscTx[T], *MpscRx[T], error) {
	chCap := capacity
	if chCap <= 0 {
		chCap = 1 << 16
	}
	ch := make(chan T, chCap)
	return &MpscTx[T]{ch: ch}, &MpscRx[T]{ch: ch}, nil
}

func (tx *MpscTx[T]) Send(_ context.Context, v T, _ ptime.BacktraceID) { tx.ch <- v }

func (tx *MpscTx[T]) TrySend(v T) bool {
	select {
	case tx.ch <- v:
		return true
	default:
		return false
	}
}

func (rx *MpscRx[T]) Recv(_ context.Context, _ ptime.BacktraceID) (T, bool) {
	v, ok := <-rx.ch
	return v, ok
}
