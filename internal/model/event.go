package model

import "github.com/moire-rt/moire/internal/ptime"

// EventTargetKind tags whether an event's target is an entity or a scope.
type EventTargetKind string

const (
	TargetEntity EventTargetKind = "entity"
	TargetScope  EventTargetKind = "scope"
)

// EventTarget is a sum type over (Entity(id) | Scope(id)).
type EventTarget struct {
	Kind     EventTargetKind
	EntityID ptime.EntityID
	ScopeID  ptime.ScopeID
}

func EntityTarget(id ptime.EntityID) EventTarget {
	return EventTarget{Kind: TargetEntity, EntityID: id}
}

func ScopeTarget(id ptime.ScopeID) EventTarget {
	return EventTarget{Kind: TargetScope, ScopeID: id}
}

// EventKindTag tags which variant an Event.Kind payload carries.
type EventKindTag string

const (
	EventStateChanged    EventKindTag = "state_changed"
	EventChannelSent     EventKindTag = "channel_sent"
	EventChannelReceived EventKindTag = "channel_received"
	EventCustom          EventKindTag = "custom"
)

// EventKind is the sum-typed payload of an Event.
type EventKind struct {
	Tag EventKindTag

	// Custom payload, present iff Tag == EventCustom.
	CustomKind        string
	CustomDisplayName string
	CustomPayloadJSON string
}

// Event is an immutable, append-only observation about an entity or scope.
type Event struct {
	ID     ptime.EventID
	At     ptime.PTime
	Source ptime.BacktraceID
	Target EventTarget
	Kind   EventKind
}

// References reports whether the event references the given entity, used by
// the graph store's deferred-removal sweep.
func (e Event) References(id ptime.EntityID) bool {
	return e.Target.Kind == TargetEntity && e.Target.EntityID == id
}
