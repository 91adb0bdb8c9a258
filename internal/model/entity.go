package model

import (
	"encoding/json"
	"fmt"

	"github.com/moire-rt/moire/internal/ptime"
)

// Entity is a tracked thing: a task, a lock, a channel endpoint, an RPC
// call. Deferred removal marks RemovedAt without deleting the record while
// events or edges in the graph still reference it.
type Entity struct {
	ID        ptime.EntityID
	Birth     ptime.PTime
	RemovedAt *ptime.PTime
	Source    ptime.BacktraceID
	Name      string
	Body      EntityBody
}

// IsRemoved reports whether deferred removal has been marked, regardless of
// whether the record is still retained for navigability.
func (e *Entity) IsRemoved() bool { return e.RemovedAt != nil }

// entityWire is Entity's wire shape: Body is split into its variant tag and
// raw payload so the sealed EntityBody interface survives a JSON round
// trip, the same tagged-envelope shape used for every other sum type on the
// wire (model.Change, wire.ClientMessage).
type entityWire struct {
	ID        ptime.EntityID    `json:"id"`
	Birth     ptime.PTime       `json:"birth"`
	RemovedAt *ptime.PTime      `json:"removed_at,omitempty"`
	Source    ptime.BacktraceID `json:"source"`
	Name      string            `json:"name"`
	BodyKind  string            `json:"body_kind"`
	Body      json.RawMessage   `json:"body"`
}

// MarshalJSON encodes Body as a (kind, payload) pair keyed by Variant().
func (e Entity) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(e.Body)
	if err != nil {
		return nil, fmt.Errorf("model: marshaling entity body: %w", err)
	}
	return json.Marshal(entityWire{
		ID: e.ID, Birth: e.Birth, RemovedAt: e.RemovedAt, Source: e.Source,
		Name: e.Name, BodyKind: e.Body.Variant(), Body: raw,
	})
}

// UnmarshalJSON decodes Body via the package's variant registry.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var w entityWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("model: unmarshaling entity: %w", err)
	}
	body, err := decodeEntityBody(w.BodyKind, w.Body)
	if err != nil {
		return err
	}
	e.ID, e.Birth, e.RemovedAt, e.Source, e.Name, e.Body = w.ID, w.Birth, w.RemovedAt, w.Source, w.Name, body
	return nil
}

// Slot ties a compile-time body type V to the runtime variant it projects:
// Project/ProjectMut succeed only when the entity's live body is a V.
// handles.EntityHandle.Mutate applies the same variant check with its own
// type assertion (not through Slot) and panics on a mismatch, which is a
// programmer error.
type Slot[V EntityBody] interface {
	Project() (V, bool)
	ProjectMut(f func(*V)) bool
}

// entitySlot adapts an *Entity to Slot[V] by type-asserting its Body.
type entitySlot[V EntityBody] struct {
	e *Entity
}

// NewSlot returns a typed projector over e's body for variant V.
func NewSlot[V EntityBody](e *Entity) Slot[V] {
	return entitySlot[V]{e: e}
}

func (s entitySlot[V]) Project() (V, bool) {
	v, ok := s.e.Body.(V)
	return v, ok
}

func (s entitySlot[V]) ProjectMut(f func(*V)) bool {
	v, ok := s.e.Body.(V)
	if !ok {
		return false
	}
	f(&v)
	s.e.Body = v
	return true
}
