package instrument

import (
	"context"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/handles"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// Step is the synchronous analogue of InstrumentedFuture: a named logical
// unit of work (a spawned task body, a named blocking section) that owns a
// Future entity and maintains awaited_by/waits_on edges around its
// execution. Go has no repeated poll to hook transitions off of, so a Step
// runs its body exactly once, pushing itself onto the causal stack for the
// body's whole duration rather than per-poll.
type Step struct {
	store           *graph.Store
	handle          handles.EntityHandle[model.Future]
	waitsOn         *ptime.EntityID
	awaitedByParent *ptime.EntityID
}

// Begin creates the step's Future entity, installs the awaited_by edge from
// the causal stack's current top (if any, excluding itself), and installs a
// waits_on edge to target when provided. ctx must be the context the step's
// body will run under; Begin returns a derived context with the step pushed
// onto the causal stack.
func Begin(ctx context.Context, store *graph.Store, name string, target *ptime.EntityID, source ptime.BacktraceID) (context.Context, *Step, error) {
	h, err := handles.NewEntityHandle[model.Future](store, name, model.Future{}, source)
	if err != nil {
		return ctx, nil, err
	}
	s := &Step{store: store, handle: h}

	// awaited_by(parent -> this): the parent causal-stack entry is the one
	// this step's completion is awaited by, expressed as a WaitingOn edge
	// in the parent->child direction — the same edge kind OperationPoint
	// uses, collapsed here to cover the step's whole synchronous body
	// rather than a per-poll Pending/Ready cycle.
	if parent, ok := causal.TopExcluding(ctx, h.ID()); ok {
		s.awaitedByParent = &parent
		store.UpsertEdgeWithSource(parent, h.ID(), model.WaitingOn, source)
	}
	// waits_on(this -> target): this step itself is waiting on an explicit
	// target entity for its whole body.
	if target != nil {
		s.waitsOn = target
		store.UpsertEdgeWithSource(h.ID(), *target, model.WaitingOn, source)
	}

	return causal.WithEntity(ctx, h.ID()), s, nil
}

// ID returns the step's own entity id.
func (s *Step) ID() ptime.EntityID { return s.handle.ID() }

// End transitions any owned edges to None and releases the step's entity.
// Call via defer immediately after Begin succeeds.
func (s *Step) End() {
	if s.waitsOn != nil {
		s.store.RemoveEdge(s.handle.ID(), *s.waitsOn, model.WaitingOn)
	}
	if s.awaitedByParent != nil {
		s.store.RemoveEdge(*s.awaitedByParent, s.handle.ID(), model.WaitingOn)
	}
	s.handle.Drop()
}

// Run is the common shape: Begin, run body with the derived context, End —
// mirroring the spec's "each poll pushes, polls inner, pops" discipline
// collapsed to Go's single synchronous execution.
func Run(ctx context.Context, store *graph.Store, name string, target *ptime.EntityID, source ptime.BacktraceID, body func(context.Context)) error {
	stepCtx, step, err := Begin(ctx, store, name, target, source)
	if err != nil {
		return err
	}
	defer step.End()
	body(stepCtx)
	return nil
}
