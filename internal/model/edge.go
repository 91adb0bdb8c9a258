package model

import "github.com/moire-rt/moire/internal/ptime"

// EdgeKind tags a directed edge. Edge identity is (Src, Dst, Kind) — at
// most one edge of each kind exists between a given ordered pair.
type EdgeKind string

const (
	// Polls: actor is actively polling dst this tick (non-blocking interest).
	Polls EdgeKind = "polls"
	// WaitingOn: actor is suspended awaiting dst.
	WaitingOn EdgeKind = "waiting_on"
	// PairedWith: structural pairing between two endpoints of one primitive.
	PairedWith EdgeKind = "paired_with"
	// Holds: dst is currently held by src.
	Holds EdgeKind = "holds"
)

// EdgeKey is the (src, dst, kind) triple identifying one edge.
type EdgeKey struct {
	Src  ptime.EntityID
	Dst  ptime.EntityID
	Kind EdgeKind
}

// Edge is a directed, typed relationship between two entities, stamped with
// the backtrace id of its creation point.
type Edge struct {
	Key    EdgeKey
	Source ptime.BacktraceID
}
