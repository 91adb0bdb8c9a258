//go:build !moire_instrument

// Package moire is the public facade for the runtime. This build excludes
// instrumentation entirely: Runtime carries no graph store, and every
// constructor delegates straight to the pass-through internal/sync
// primitives or a plain goroutine, so a binary built without
// moire_instrument pays no tracking cost at all.
package moire

import (
	"context"

	"golang.org/x/sync/errgroup"

	msync "github.com/moire-rt/moire/internal/sync"
	"github.com/moire-rt/moire/internal/ptime"
)

// Enabled reports whether this binary was built with instrumentation
// compiled in (build tag moire_instrument).
func Enabled() bool { return false }

// Runtime is an empty handle in the disabled build; every method is a
// thin pass-through.
type Runtime struct{}

// Init always succeeds in the disabled build.
func Init() (*Runtime, error) { return &Runtime{}, nil }

// Close is a no-op in the disabled build.
func (r *Runtime) Close() {}

// Source always returns the zero BacktraceID in the disabled build.
func (r *Runtime) Source(skip int) ptime.BacktraceID { return 0 }

func (r *Runtime) NewMutex(name string) (*msync.Mutex, error) {
	return msync.NewMutex(nil, nil, name, 0)
}

func (r *Runtime) NewRWMutex(name string) (*msync.RWMutex, error) {
	return msync.NewRWMutex(nil, nil, name, 0)
}

func (r *Runtime) NewSemaphore(name string, maxPermits int) (*msync.Semaphore, error) {
	return msync.NewSemaphore(nil, nil, name, maxPermits, 0)
}

func (r *Runtime) NewNotify(name string) (*msync.Notify, error) {
	return msync.NewNotify(nil, nil, name, 0)
}

func (r *Runtime) RPCRequest(serviceName, methodName, argsJSON string) (*msync.RequestHandle, error) {
	return msync.RPCRequest(nil, serviceName, methodName, argsJSON, 0)
}

func (r *Runtime) RPCResponseFor(req *msync.RequestHandle) (*msync.ResponseHandle, error) {
	return msync.RPCResponseFor(nil, req, 0)
}

func (r *Runtime) NewCircuitBreaker(name string) *msync.CircuitBreaker {
	return msync.NewCircuitBreaker(name)
}

// joinHandle is the disabled build's bare-goroutine analogue of
// instrument.JoinHandle.
type joinHandle struct {
	done chan error
}

func (h *joinHandle) Join() error { return <-h.done }

// Spawn runs body on a plain goroutine; there is no task graph to register
// it against.
func (r *Runtime) Spawn(ctx context.Context, name string, body func(context.Context)) *joinHandle {
	done := make(chan error, 1)
	go func() {
		body(ctx)
		done <- nil
	}()
	return &joinHandle{done: done}
}

// SpawnBlocking is Spawn's disabled-build analogue.
func (r *Runtime) SpawnBlocking(ctx context.Context, name string, body func(context.Context)) *joinHandle {
	return r.Spawn(ctx, name, body)
}

// joinSet is the disabled build's bare errgroup.Group analogue of
// instrument.JoinSet.
type joinSet struct {
	group *errgroup.Group
	ctx   context.Context
}

func (j *joinSet) Spawn(name string, body func(context.Context)) {
	ctx := j.ctx
	j.group.Go(func() error {
		body(ctx)
		return nil
	})
}

func (j *joinSet) JoinNext(ctx context.Context) error { return j.group.Wait() }

func (j *joinSet) Close() {}

// NewJoinSet builds a disabled-build errgroup-backed join set.
func (r *Runtime) NewJoinSet(ctx context.Context, name string) (*joinSet, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	return &joinSet{group: group, ctx: groupCtx}, nil
}

// StepRun just runs body; there is no step entity to register in the
// disabled build.
func (r *Runtime) StepRun(ctx context.Context, name string, target *ptime.EntityID, body func(context.Context)) error {
	body(ctx)
	return nil
}

func NewMpsc[T any](r *Runtime, name string, capacity int) (*msync.MpscTx[T], *msync.MpscRx[T], error) {
	return msync.NewMpsc[T](nil, nil, name, capacity, 0)
}

func NewBroadcast[T any](r *Runtime, name string, capacity int) (*msync.BroadcastTx[T], error) {
	return msync.NewBroadcast[T](nil, name, capacity, 0)
}

func NewWatch[T any](r *Runtime, name string, initial T) (*msync.WatchTx[T], *msync.WatchRx[T], error) {
	return msync.NewWatch[T](nil, nil, name, initial, 0)
}

func NewOneshot[T any](r *Runtime, name string) (*msync.OneshotTx[T], *msync.OneshotRx[T], error) {
	return msync.NewOneshot[T](nil, nil, name, 0)
}

func NewOnceCell[T any](r *Runtime, name string) (*msync.OnceCell[T], error) {
	return msync.NewOnceCell[T](nil, name, 0)
}
