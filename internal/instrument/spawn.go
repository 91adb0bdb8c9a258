package instrument

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/handles"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

var taskSeq int64

// nextTaskKey returns a process-unique task key for TaskScope registration,
// scoped by spawn call site name for readability in the dashboard.
func nextTaskKey(name string) string {
	return fmt.Sprintf("%s-%d", name, atomic.AddInt64(&taskSeq, 1))
}

// JoinHandle is the join side of an instrumented spawn.
type JoinHandle struct {
	done chan error
}

// Join blocks until the spawned body returns.
func (h *JoinHandle) Join() error {
	return <-h.done
}

// Spawn runs body on its own goroutine as an instrumented Step: it
// registers a TaskScope for the body's duration (tying synchronous
// primitive operations, which have no causal stack, back to the owning
// task) and returns immediately with a handle whose Join blocks for
// completion.
func Spawn(ctx context.Context, store *graph.Store, name string, source ptime.BacktraceID, body func(context.Context)) *JoinHandle {
	taskKey := nextTaskKey(name)
	done := make(chan error, 1)
	jh := &JoinHandle{done: done}

	scope, err := handles.NewScopeHandle(store, model.TaskScope{TaskKey: taskKey})
	if err != nil {
		done <- err
		return jh
	}

	taskCtx := causal.WithTaskKey(ctx, taskKey)

	go func() {
		defer scope.Drop()
		done <- Run(taskCtx, store, name, nil, source, body)
	}()

	return jh
}

// SpawnBlocking is Spawn's analogue for CPU-bound or blocking work; in Go
// both shapes are plain goroutines, so this is an alias kept distinct for
// call-site clarity (mirroring spawn vs spawn_blocking in the original API).
func SpawnBlocking(ctx context.Context, store *graph.Store, name string, source ptime.BacktraceID, body func(context.Context)) *JoinHandle {
	return Spawn(ctx, store, name, source, body)
}

// JoinSet is an entity of its own (a Future named joinset.<name>); every
// child spawned through it gets a waits_on edge to the set, and JoinNext is
// itself an instrumented step pointed at the joinset, mirroring
// JoinSet::spawn/join_next.
type JoinSet struct {
	store  *graph.Store
	handle handles.EntityHandle[model.Future]
	source ptime.BacktraceID
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// NewJoinSet creates the joinset's own Future entity.
func NewJoinSet(ctx context.Context, store *graph.Store, name string, source ptime.BacktraceID) (*JoinSet, error) {
	h, err := handles.NewEntityHandle[model.Future](store, "joinset."+name, model.Future{}, source)
	if err != nil {
		return nil, err
	}
	group, groupCtx := errgroup.WithContext(ctx)
	cctx, cancel := context.WithCancel(groupCtx)
	return &JoinSet{store: store, handle: h, source: source, group: group, ctx: cctx, cancel: cancel}, nil
}

// Spawn runs body as a child step waits_on-pointed at the joinset.
func (j *JoinSet) Spawn(name string, body func(context.Context)) {
	target := j.handle.ID()
	j.group.Go(func() error {
		return Run(j.ctx, j.store, name, &target, j.source, body)
	})
}

// JoinNext waits for the joinset's outstanding children as an instrumented
// step pointed at the joinset itself. errgroup has no per-child "next"
// primitive, so this collapses to waiting for the whole set; repeated calls
// after the set has drained return the same terminal error immediately.
func (j *JoinSet) JoinNext(ctx context.Context) error {
	target := j.handle.ID()
	var waitErr error
	_ = Run(ctx, j.store, "join_next", &target, j.source, func(context.Context) {
		waitErr = j.group.Wait()
	})
	return waitErr
}

// Close releases the joinset's own entity and cancels any still-running children.
func (j *JoinSet) Close() {
	j.cancel()
	j.handle.Drop()
}
