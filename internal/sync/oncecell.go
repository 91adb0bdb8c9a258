//go:build moire_instrument

package sync

import (
	"context"
	stdsync "sync"

	"golang.org/x/sync/singleflight"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/handles"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// OnceCell wraps golang.org/x/sync/singleflight.Group to collapse concurrent
// initializers into one call, mirroring get_or_init/get_or_try_init: every
// caller that arrives while initialization is in flight is a "waiter"
// (waiter_count), and the cell's state tracks Empty/Initializing/Initialized.
type OnceCell[T any] struct {
	group  singleflight.Group
	mu     stdsync.Mutex
	value  T
	done   bool
	store  *graph.Store
	handle handles.EntityHandle[model.OnceCell]
}

func NewOnceCell[T any](store *graph.Store, name string, source ptime.BacktraceID) (*OnceCell[T], error) {
	h, err := handles.NewEntityHandle[model.OnceCell](store, name, model.OnceCell{State: model.OnceCellEmpty}, source)
	if err != nil {
		return nil, err
	}
	return &OnceCell[T]{store: store, handle: h}, nil
}

// GetOrInit returns the cell's value, computing it via init on first call
// (or the first call to observe Empty after a prior failed attempt);
// concurrent callers collapse onto the in-flight computation.
func (c *OnceCell[T]) GetOrInit(_ context.Context, init func() (T, error)) (T, error) {
	c.mu.Lock()
	if c.done {
		v := c.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	c.handle.Mutate(func(body *model.OnceCell) {
		body.WaiterCount++
		body.State = model.OnceCellInitializing
	})

	v, err, _ := c.group.Do("init", func() (any, error) {
		c.mu.Lock()
		if c.done {
			v := c.value
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()
		return init()
	})

	c.handle.Mutate(func(body *model.OnceCell) {
		body.WaiterCount--
		if err != nil {
			if body.WaiterCount == 0 {
				body.State = model.OnceCellEmpty
			}
			return
		}
		body.State = model.OnceCellInitialized
	})
	recordEvent(c.store, c.handle.ID(), model.EventStateChanged)

	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	c.value = v.(T)
	c.done = true
	c.mu.Unlock()
	return c.value, nil
}
