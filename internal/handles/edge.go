package handles

import (
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// EdgeHandle owns an edge explicitly: it stores only the endpoint ids and
// kind (no strong references to either endpoint), and its Drop removes the
// edge. Most edges in this codebase are owned implicitly by whichever side
// created them and released on state transition; EdgeHandle is for the
// cases (spec §3 Ownership) where an edge needs its own independent
// lifetime.
type EdgeHandle struct {
	store *graph.Store
	key   model.EdgeKey
	live  bool
}

// NewEdgeHandle installs the edge and returns a handle owning it explicitly.
func NewEdgeHandle(store *graph.Store, src, dst ptime.EntityID, kind model.EdgeKind, source ptime.BacktraceID) EdgeHandle {
	store.UpsertEdgeWithSource(src, dst, kind, source)
	return EdgeHandle{store: store, key: model.EdgeKey{Src: src, Dst: dst, Kind: kind}, live: true}
}

// Drop removes the edge. Safe to call more than once.
func (h *EdgeHandle) Drop() {
	if !h.live {
		return
	}
	h.live = false
	h.store.RemoveEdge(h.key.Src, h.key.Dst, h.key.Kind)
}

// Key returns the edge's (src, dst, kind) identity.
func (h EdgeHandle) Key() model.EdgeKey { return h.key }
