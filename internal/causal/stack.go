// Package causal implements the per-task "causal stack": the list of
// currently-polling instrumented steps that lets a newly constructed
// primitive discover its causal parent. The original runtime keeps this in
// task-local storage; Go has no implicit task-local slot to fall back on
// other than context.Context, so the stack is carried as an immutable,
// context-propagated linked list — one node pushed per instrument.Step for
// the step body's duration, popped on return, mirroring the original's
// push/pop discipline but expressed as nested contexts instead of a
// thread-local.
package causal

import (
	"context"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/ptime"
)

type stackKey struct{}

// node is one frame of the causal stack; contexts form a persistent list.
type node struct {
	entity ptime.EntityID
	parent *node
}

// WithEntity pushes id onto the causal stack carried by ctx, returning a
// child context a callee can use to discover the new top.
func WithEntity(ctx context.Context, id ptime.EntityID) context.Context {
	top, _ := ctx.Value(stackKey{}).(*node)
	return context.WithValue(ctx, stackKey{}, &node{entity: id, parent: top})
}

// Top returns the top of the causal stack, if any.
func Top(ctx context.Context) (ptime.EntityID, bool) {
	top, ok := ctx.Value(stackKey{}).(*node)
	if !ok {
		return ptime.EntityID{}, false
	}
	return top.entity, true
}

// TopExcluding returns the top of the stack other than self — this is how
// instrument.Step finds its causal parent: the stack's top at construction
// time, excluding the step's own entity if it happens to already be on top
// (it isn't, in practice, since a step pushes itself only once it starts
// polling, after it already captured its parent — this guard exists for
// re-entrant construction from within a step's own body).
func TopExcluding(ctx context.Context, self ptime.EntityID) (ptime.EntityID, bool) {
	n, ok := ctx.Value(stackKey{}).(*node)
	for ok && n.entity == self {
		n = n.parent
		ok = n != nil
	}
	if !ok || n == nil {
		return ptime.EntityID{}, false
	}
	return n.entity, true
}

// TaskScopeIndex is the fallback consulted by synchronous primitives called
// from inside a task but outside any instrument.Step, where ctx carries no
// causal stack: it looks up the caller's owning task scope. A task scope is
// not an entity, so this lookup never yields an edge actor.
type TaskScopeIndex struct {
	store *graph.Store
}

// NewTaskScopeIndex wraps a graph store's task-scope index for causal
// attribution fallback.
func NewTaskScopeIndex(store *graph.Store) *TaskScopeIndex {
	return &TaskScopeIndex{store: store}
}

type taskKeyCtx struct{}

// WithTaskKey attaches the owning task's key to ctx, set once by the
// instrumented spawn wrapper on entering a spawned body.
func WithTaskKey(ctx context.Context, taskKey string) context.Context {
	return context.WithValue(ctx, taskKeyCtx{}, taskKey)
}

// TaskKey returns the task key attached by the instrumented spawn wrapper, if any.
func TaskKey(ctx context.Context) (string, bool) {
	k, ok := ctx.Value(taskKeyCtx{}).(string)
	return k, ok
}

// CurrentCausalTarget returns the top of the causal stack, if any.
func CurrentCausalTarget(ctx context.Context) (ptime.EntityID, bool) {
	return Top(ctx)
}

// CurrentCausalTargetWithTaskFallback returns the top of the causal stack,
// if any. When the stack is empty it consults the task-scope index for the
// task key on ctx, but it returns no actor even when a task scope is found:
// the result is (zero, false) whenever the causal stack is empty. Used by
// synchronous locks called from inside a task but outside any
// instrument.Step.
func (idx *TaskScopeIndex) CurrentCausalTargetWithTaskFallback(ctx context.Context) (ptime.EntityID, bool) {
	if id, ok := CurrentCausalTarget(ctx); ok {
		return id, true
	}
	taskKey, ok := TaskKey(ctx)
	if !ok {
		return ptime.EntityID{}, false
	}
	scopes := idx.store.ScopesForTask(taskKey)
	if len(scopes) == 0 {
		return ptime.EntityID{}, false
	}
	// The task scope itself has no entity id (scopes and entities are
	// distinct id spaces); callers needing an actor id for edge creation
	// use the task key's scope purely for attribution display, not as an
	// edge endpoint. Synchronous wrappers that need an EntityID actor
	// fall through to "no actor" when only a scope, not an entity, can be
	// resolved.
	return ptime.EntityID{}, false
}
