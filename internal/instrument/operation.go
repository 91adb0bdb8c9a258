// Package instrument implements the two wrapper shapes that produce the
// Polls/WaitingOn/Holds edges the rest of the graph is built from:
// OperationPoint (the synchronous analogue of OperationFuture — Go has no
// poll() to hook, so the suspend/resume transition is driven by a
// non-blocking probe followed by a blocking wait) and Step (the analogue of
// InstrumentedFuture, a named logical unit of work whose body runs on the
// calling goroutine; Spawn gives it a goroutine of its own).
package instrument

import (
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// edgeState is the one-cell state machine shared by OperationPoint and Step.
type edgeState int

const (
	edgeNone edgeState = iota
	edgePolls
	edgeWaitingOn
)

// OperationPoint wraps a single operation against one resource entity (e.g.
// recv on a channel). Construct one per operation attempt; call Enter, then
// either Pending (if the attempt would block) followed eventually by Ready,
// or Ready directly for an attempt that succeeds immediately.
type OperationPoint struct {
	store  *graph.Store
	actor  ptime.EntityID
	hasActor bool
	target ptime.EntityID
	source ptime.BacktraceID
	state  edgeState
}

// NewOperationPoint captures the causal target as actor (if any) and the
// resource entity as target.
func NewOperationPoint(store *graph.Store, actor ptime.EntityID, hasActor bool, target ptime.EntityID, source ptime.BacktraceID) *OperationPoint {
	return &OperationPoint{store: store, actor: actor, hasActor: hasActor, target: target, source: source}
}

// Enter transitions None -> Polls. No edge is installed for Polls itself;
// Polls is a transient state recorded only via try_lock-style callers that
// query it directly (see Mutex.TryLock), matching the spec's tie-break that
// failed non-blocking attempts record no Holds edge.
func (p *OperationPoint) Enter() {
	p.state = edgePolls
}

// Pending transitions Polls -> WaitingOn, installing the edge. Call this
// when the operation would block.
func (p *OperationPoint) Pending() {
	if p.state == edgeWaitingOn {
		return
	}
	p.removeEdgeLocked()
	p.state = edgeWaitingOn
	if p.hasActor {
		p.store.UpsertEdgeWithSource(p.actor, p.target, model.WaitingOn, p.source)
	}
}

// Ready transitions to None, removing any WaitingOn edge. Call this once
// the operation completes.
func (p *OperationPoint) Ready() {
	p.removeEdgeLocked()
	p.state = edgeNone
}

// Drop transitions to None unconditionally; idempotent with Ready.
func (p *OperationPoint) Drop() {
	p.Ready()
}

func (p *OperationPoint) removeEdgeLocked() {
	if p.state == edgeWaitingOn && p.hasActor {
		p.store.RemoveEdge(p.actor, p.target, model.WaitingOn)
	}
}

// Run is the common shape for a wrapped suspendable operation: attempt is a
// non-blocking probe (e.g. a select with a default case) returning true on
// immediate success; block is called only if attempt returned false, and is
// expected to actually block until the operation completes. Run drives the
// full Polls/WaitingOn/None lifecycle around them.
func (p *OperationPoint) Run(attempt func() bool, block func()) {
	p.Enter()
	if attempt() {
		p.Ready()
		return
	}
	p.Pending()
	block()
	p.Ready()
}
