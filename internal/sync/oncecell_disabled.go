//go:build !moire_instrument

package sync

import (
	"context"
	stdsync "sync"

	"golang.org/x/sync/singleflight"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/ptime"
)

type OnceCell[T any] struct {
	group singleflight.Group
	mu    stdsync.Mutex
	value T
	done  bool
}

func NewOnceCell[T any](*graph.Store, string, ptime.BacktraceID) (*OnceCell[T], error) {
	return &OnceCell[T]{}, nil
}

func (c *OnceCell[T]) GetOrInit(_ context.Context, init func() (T, error)) (T, error) {
	c.mu.Lock()
	if c.done {
		v := c.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

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
