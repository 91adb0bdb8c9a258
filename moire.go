//go:build moire_instrument

// Package moire is the public facade for the instrumented runtime: it owns
// one process's graph store, causal stack index, and backtrace capturer,
// starts the dashboard push loop, and constructs instrumented primitives
// that mirror their standard-library counterparts.
package moire

import (
	"context"

	"go.uber.org/zap"

	"github.com/moire-rt/moire/internal/capture"
	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/config"
	"github.com/moire-rt/moire/internal/dashboard"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/instrument"
	"github.com/moire-rt/moire/internal/logging"
	msync "github.com/moire-rt/moire/internal/sync"
	"github.com/moire-rt/moire/internal/ptime"
)

// Enabled reports whether this binary was built with instrumentation
// compiled in (build tag moire_instrument).
func Enabled() bool { return true }

// Runtime owns one process's causal graph and everything that feeds it.
type Runtime struct {
	Store *graph.Store
	Tasks *causal.TaskScopeIndex

	capturer *capture.Capturer
	log      *zap.Logger
	stopDash func()
}

// Init loads configuration from the environment, builds the graph store,
// and starts the dashboard push loop when MOIRE_DASHBOARD is set.
func Init() (*Runtime, error) {
	cfg := config.Load()
	log, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, err
	}
	store := graph.New(
		graph.WithLogger(log),
		graph.WithMaxBacktraceRecords(cfg.MaxBacktraceRecords),
	)
	r := &Runtime{
		Store:    store,
		Tasks:    causal.NewTaskScopeIndex(store),
		capturer: capture.New(store, 0),
		log:      log,
	}
	r.stopDash = dashboard.Start(store, log)
	return r, nil
}

// Close stops the dashboard push loop, if one was started.
func (r *Runtime) Close() {
	if r.stopDash != nil {
		r.stopDash()
	}
}

// Source captures the caller's backtrace (skipping skip additional frames
// on top of Source itself) for use as a primitive constructor or operation's
// source argument.
func (r *Runtime) Source(skip int) ptime.BacktraceID {
	id, err := r.capturer.Current(skip + 1)
	if err != nil {
		return 0
	}
	return id
}

// NewMutex creates an instrumented mutex.
func (r *Runtime) NewMutex(name string) (*msync.Mutex, error) {
	return msync.NewMutex(r.Store, r.Tasks, name, r.Source(1))
}

// NewRWMutex creates an instrumented read-write mutex.
func (r *Runtime) NewRWMutex(name string) (*msync.RWMutex, error) {
	return msync.NewRWMutex(r.Store, r.Tasks, name, r.Source(1))
}

// NewSemaphore creates an instrumented counting semaphore.
func (r *Runtime) NewSemaphore(name string, maxPermits int) (*msync.Semaphore, error) {
	return msync.NewSemaphore(r.Store, r.Tasks, name, maxPermits, r.Source(1))
}

// NewNotify creates an instrumented condition-notify primitive.
func (r *Runtime) NewNotify(name string) (*msync.Notify, error) {
	return msync.NewNotify(r.Store, r.Tasks, name, r.Source(1))
}

// RPCRequest records an outbound RPC request.
func (r *Runtime) RPCRequest(serviceName, methodName, argsJSON string) (*msync.RequestHandle, error) {
	return msync.RPCRequest(r.Store, serviceName, methodName, argsJSON, r.Source(1))
}

// RPCResponseFor records the response entity paired with req.
func (r *Runtime) RPCResponseFor(req *msync.RequestHandle) (*msync.ResponseHandle, error) {
	return msync.RPCResponseFor(r.Store, req, r.Source(1))
}

// NewCircuitBreaker builds a circuit breaker guarding repeated RPC calls.
func (r *Runtime) NewCircuitBreaker(name string) *msync.CircuitBreaker {
	return msync.NewCircuitBreaker(name)
}

// Spawn runs body on its own goroutine as an instrumented task.
func (r *Runtime) Spawn(ctx context.Context, name string, body func(context.Context)) *instrument.JoinHandle {
	return instrument.Spawn(ctx, r.Store, name, r.Source(1), body)
}

// SpawnBlocking is Spawn's analogue for blocking or CPU-bound work.
func (r *Runtime) SpawnBlocking(ctx context.Context, name string, body func(context.Context)) *instrument.JoinHandle {
	return instrument.SpawnBlocking(ctx, r.Store, name, r.Source(1), body)
}

// NewJoinSet creates a set of instrumented child tasks joined together.
func (r *Runtime) NewJoinSet(ctx context.Context, name string) (*instrument.JoinSet, error) {
	return instrument.NewJoinSet(ctx, r.Store, name, r.Source(1))
}

// StepRun runs body as a single instrumented step, optionally pointed at a
// target resource entity.
func (r *Runtime) StepRun(ctx context.Context, name string, target *ptime.EntityID, body func(context.Context)) error {
	return instrument.Run(ctx, r.Store, name, target, r.Source(1), body)
}

// NewMpsc creates an instrumented bounded (or, with capacity 0, effectively
// unbounded) multi-producer single-consumer channel.
func NewMpsc[T any](r *Runtime, name string, capacity int) (*msync.MpscTx[T], *msync.MpscRx[T], error) {
	return msync.NewMpsc[T](r.Store, r.Tasks, name, capacity, r.Source(1))
}

// NewBroadcast creates an instrumented broadcast channel.
func NewBroadcast[T any](r *Runtime, name string, capacity int) (*msync.BroadcastTx[T], error) {
	return msync.NewBroadcast[T](r.Store, name, capacity, r.Source(1))
}

// NewWatch creates an instrumented single-value watch channel.
func NewWatch[T any](r *Runtime, name string, initial T) (*msync.WatchTx[T], *msync.WatchRx[T], error) {
	return msync.NewWatch[T](r.Store, r.Tasks, name, initial, r.Source(1))
}

// NewOneshot creates an instrumented one-shot channel.
func NewOneshot[T any](r *Runtime, name string) (*msync.OneshotTx[T], *msync.OneshotRx[T], error) {
	return msync.NewOneshot[T](r.Store, r.Tasks, name, r.Source(1))
}

// NewOnceCell creates an instrumented lazily-initialized cell.
func NewOnceCell[T any](r *Runtime, name string) (*msync.OnceCell[T], error) {
	return msync.NewOnceCell[T](r.Store, name, r.Source(1))
}
