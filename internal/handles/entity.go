// Package handles implements owning and weak references to graph entities,
// edges, and scopes. Dropping the last strong reference to an entity
// schedules it for removal from the graph (subject to deferred-removal
// retention in the store); edge handles own nothing but their key and
// remove the edge on drop.
package handles

import (
	"fmt"
	"sync/atomic"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// entityShared is the reference-counted state clones of an EntityHandle share.
type entityShared struct {
	store    *graph.Store
	id       ptime.EntityID
	refCount int64
}

func (s *entityShared) release() {
	if atomic.AddInt64(&s.refCount, -1) == 0 {
		s.store.RemoveEntity(s.id)
	}
}

// EntityHandle is a reference-counted, strongly-owning handle to an entity.
// The type parameter S, when it implements a body slot, unlocks typed
// Mutate/LinkToHandle. Pass model.EntityBody itself for an untyped handle.
type EntityHandle[S model.EntityBody] struct {
	shared *entityShared
}

// NewEntityHandle creates the entity in the store and returns the first
// strong handle to it.
func NewEntityHandle[S model.EntityBody](store *graph.Store, name string, body S, source ptime.BacktraceID) (EntityHandle[S], error) {
	id, err := ptime.NextEntityID()
	if err != nil {
		return EntityHandle[S]{}, err
	}
	store.UpsertEntity(model.Entity{
		ID:     id,
		Birth:  ptime.Now(),
		Source: source,
		Name:   name,
		Body:   body,
	})
	return EntityHandle[S]{shared: &entityShared{store: store, id: id, refCount: 1}}, nil
}

// ID returns the handle's entity id.
func (h EntityHandle[S]) ID() ptime.EntityID { return h.shared.id }

// Clone shares ownership, incrementing the reference count.
func (h EntityHandle[S]) Clone() EntityHandle[S] {
	atomic.AddInt64(&h.shared.refCount, 1)
	return EntityHandle[S]{shared: h.shared}
}

// Drop releases this strong reference. Once the last strong reference to an
// entity drops, it is scheduled for removal from the graph.
func (h EntityHandle[S]) Drop() {
	h.shared.release()
}

// Weak returns a WeakEntityHandle that does not keep the entity alive.
func (h EntityHandle[S]) Weak() WeakEntityHandle[S] {
	return WeakEntityHandle[S]{shared: h.shared}
}

// Mutate applies f to the entity's current body if it matches S, panicking
// with the expected/actual variant names on a slot mismatch — mismatch is a
// programmer error, never a recoverable condition.
func (h EntityHandle[S]) Mutate(f func(*S)) {
	ok := h.shared.store.MutateEntityBodyAndMaybeUpsert(h.shared.id, func(body model.EntityBody) model.EntityBody {
		v, match := body.(S)
		if !match {
			var want S
			panic(fmt.Sprintf("moire: slot mismatch: expected body variant %q, got %q", want.Variant(), body.Variant()))
		}
		f(&v)
		return v
	})
	if !ok {
		// Entity already removed from the graph; mutate is a no-op.
		return
	}
}

// LinkToHandle installs an edge from this entity to other, stamped with source.
func (h EntityHandle[S]) LinkToHandle(other ptime.EntityID, kind model.EdgeKind, source ptime.BacktraceID) {
	h.shared.store.UpsertEdgeWithSource(h.shared.id, other, kind, source)
}

// WeakEntityHandle may outlive the entity; its operations are no-ops
// returning false once the entity has been removed.
type WeakEntityHandle[S model.EntityBody] struct {
	shared *entityShared
}

// Upgrade returns a strong EntityHandle if the entity still exists.
func (w WeakEntityHandle[S]) Upgrade() (EntityHandle[S], bool) {
	if w.shared == nil {
		return EntityHandle[S]{}, false
	}
	e, ok := w.shared.store.GetEntity(w.shared.id)
	if !ok || e.IsRemoved() {
		return EntityHandle[S]{}, false
	}
	for {
		cur := atomic.LoadInt64(&w.shared.refCount)
		if cur == 0 {
			return EntityHandle[S]{}, false
		}
		if atomic.CompareAndSwapInt64(&w.shared.refCount, cur, cur+1) {
			return EntityHandle[S]{shared: w.shared}, true
		}
	}
}

// Mutate is a best-effort mutate through the weak reference; returns false
// if the entity no longer exists.
func (w WeakEntityHandle[S]) Mutate(f func(*S)) bool {
	h, ok := w.Upgrade()
	if !ok {
		return false
	}
	defer h.Drop()
	h.Mutate(f)
	return true
}

// ID returns the underlying entity id even if the entity has been removed.
func (w WeakEntityHandle[S]) ID() ptime.EntityID { return w.shared.id }
