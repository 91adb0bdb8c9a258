package model

import "github.com/moire-rt/moire/internal/ptime"

// ChangeKind tags which mutation a Change carries.
type ChangeKind string

const (
	ChangeUpsertEntity       ChangeKind = "upsert_entity"
	ChangeRemoveEntity       ChangeKind = "remove_entity"
	ChangeUpsertScope        ChangeKind = "upsert_scope"
	ChangeRemoveScope        ChangeKind = "remove_scope"
	ChangeLinkEntityScope    ChangeKind = "link_entity_scope"
	ChangeUnlinkEntityScope  ChangeKind = "unlink_entity_scope"
	ChangeUpsertEdge         ChangeKind = "upsert_edge"
	ChangeRemoveEdge         ChangeKind = "remove_edge"
	ChangeAppendEvent        ChangeKind = "append_event"
)

// Change is one mutation to the graph. Exactly one field group is populated
// per Kind; this mirrors the original's tagged-union Change enum without
// Go sum types.
type Change struct {
	Kind ChangeKind

	Entity *Entity

	RemovedEntityID ptime.EntityID

	Scope *Scope

	RemovedScopeID ptime.ScopeID

	LinkEntityID ptime.EntityID
	LinkScopeID  ptime.ScopeID

	Edge *Edge

	RemovedEdgeKey EdgeKey

	Event *Event
}

// StampedChange is a Change stamped with the SeqNo it was appended at.
type StampedChange struct {
	SeqNo  ptime.SeqNo
	Change Change
}
