package handles

import (
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// ScopeHandle manages a scope's lifetime analogously to EntityHandle, minus
// the slot typing (scopes are a smaller, fixed variant set).
type ScopeHandle struct {
	store *graph.Store
	id    ptime.ScopeID
	live  bool
}

// NewScopeHandle creates the scope in the store and returns a handle owning it.
func NewScopeHandle(store *graph.Store, body model.ScopeBody) (ScopeHandle, error) {
	id, err := ptime.NextScopeID()
	if err != nil {
		return ScopeHandle{}, err
	}
	store.UpsertScope(model.Scope{ID: id, Body: body})
	return ScopeHandle{store: store, id: id, live: true}, nil
}

// ID returns the scope id.
func (h ScopeHandle) ID() ptime.ScopeID { return h.id }

// Drop removes the scope from the graph. Safe to call more than once.
func (h *ScopeHandle) Drop() {
	if !h.live {
		return
	}
	h.live = false
	h.store.RemoveScope(h.id)
}
