// Package graph implements the single-mutex in-memory graph store: entities,
// scopes, edges, the event ring, and the append-only change log consumers
// pull deltas from.
package graph

import (
	"sync"

	"go.uber.org/zap"

	"github.com/moire-rt/moire/internal/metrics"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

const (
	// EventRingCapacity bounds the event ring; the oldest event is dropped
	// when full.
	EventRingCapacity = 16384

	// ChangeLogCompactionThreshold triggers compaction once the log grows
	// past this many entries.
	ChangeLogCompactionThreshold = 65536

	// ChangeLogRetainAfterCompaction is roughly how many recent entries
	// compaction keeps.
	ChangeLogRetainAfterCompaction = 8192
)

// ModuleRecord describes one loaded binary module for symbol resolution.
type ModuleRecord struct {
	ID          ptime.ModuleID
	RuntimeBase uint64
	Path        string
}

// BacktraceRecord is a captured call stack, interned by BacktraceID.
type BacktraceRecord struct {
	ID     ptime.BacktraceID
	Frames []FrameKey
}

// FrameKey locates one frame: a module plus a relative program counter.
type FrameKey struct {
	ModuleID ptime.ModuleID
	RelPC    uint64
}

// Store holds all graph state behind a single process-wide mutex. No I/O
// runs while the mutex is held.
type Store struct {
	mu sync.Mutex

	logger *zap.Logger

	entities map[ptime.EntityID]*model.Entity
	scopes   map[ptime.ScopeID]*model.Scope
	edges    map[model.EdgeKey]*model.Edge

	entityScopeLinks map[ptime.EntityID]map[ptime.ScopeID]struct{}
	taskScopeIndex   map[string]map[ptime.ScopeID]struct{}

	events     []model.Event
	eventsHead int // index of the oldest event in the ring

	changes          []model.StampedChange
	compactionFloor  ptime.SeqNo
	compactedBefore  *ptime.SeqNo
	seq              *ptime.SeqAllocator

	moduleManifest   []ModuleRecord
	manifestRevision uint64

	backtraceCatalog   map[ptime.BacktraceID]BacktraceRecord
	backtraceOrder     []ptime.BacktraceID
	maxBacktraceRecords int // 0 = unbounded; see SPEC_FULL.md open question #2

	retainMaxRemovedEntities int // 0 = unbounded
}

// Option configures a Store at construction.
type Option func(*Store)

// WithLogger attaches a zap logger; defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMaxBacktraceRecords bounds the backtrace catalog (0 = unbounded, the
// default). Once the bound is exceeded the oldest interned record is
// evicted first (FIFO over insertion order).
func WithMaxBacktraceRecords(n int) Option {
	return func(s *Store) { s.maxBacktraceRecords = n }
}

// New constructs an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		logger:           zap.NewNop(),
		entities:         make(map[ptime.EntityID]*model.Entity),
		scopes:           make(map[ptime.ScopeID]*model.Scope),
		edges:            make(map[model.EdgeKey]*model.Edge),
		entityScopeLinks: make(map[ptime.EntityID]map[ptime.ScopeID]struct{}),
		taskScopeIndex:   make(map[string]map[ptime.ScopeID]struct{}),
		seq:              ptime.NewSeqAllocator(),
		backtraceCatalog: make(map[ptime.BacktraceID]BacktraceRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) appendChangeLocked(c model.Change) ptime.SeqNo {
	seqNo := s.seq.Next()
	s.changes = append(s.changes, model.StampedChange{SeqNo: seqNo, Change: c})
	if len(s.changes) > ChangeLogCompactionThreshold {
		s.compactLocked()
	}
	return seqNo
}

// compactLocked folds the prefix of the log into current materialized state
// (a no-op here since entities/scopes/edges already ARE the materialized
// state) and truncates, remembering the new floor for stale pullers.
func (s *Store) compactLocked() {
	drop := len(s.changes) - ChangeLogRetainAfterCompaction
	if drop <= 0 {
		return
	}
	newFloor := s.changes[drop].SeqNo
	s.changes = append([]model.StampedChange(nil), s.changes[drop:]...)
	s.compactionFloor = newFloor
	floor := newFloor
	s.compactedBefore = &floor
	s.logger.Debug("compacted change log", zap.Uint64("floor", uint64(newFloor)))
	metrics.ChangeLogCompactions.Inc()
}

// UpsertEntity inserts or replaces an entity and appends an UpsertEntity change.
func (s *Store) UpsertEntity(e model.Entity) ptime.SeqNo {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := e
	s.entities[e.ID] = &stored
	return s.appendChangeLocked(model.Change{Kind: model.ChangeUpsertEntity, Entity: &stored})
}

// RemoveEntity marks an entity for deferred removal, finalizing the removal
// immediately if nothing else in the graph references it.
func (s *Store) RemoveEntity(id ptime.EntityID) ptime.SeqNo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeEntityLocked(id)
}

func (s *Store) removeEntityLocked(id ptime.EntityID) ptime.SeqNo {
	e, ok := s.entities[id]
	if !ok {
		return 0
	}
	now := ptime.Now()
	e.RemovedAt = &now
	seqNo := s.appendChangeLocked(model.Change{Kind: model.ChangeRemoveEntity, RemovedEntityID: id})
	s.sweepRetentionLocked(id)
	return seqNo
}

// sweepRetentionLocked finalizes removal of a deferred-removed entity once
// no event in the ring and no incident edge reference it any longer.
func (s *Store) sweepRetentionLocked(id ptime.EntityID) {
	e, ok := s.entities[id]
	if !ok || !e.IsRemoved() {
		return
	}
	if s.entityReferencedLocked(id) {
		return
	}
	delete(s.entities, id)
	delete(s.entityScopeLinks, id)
}

func (s *Store) entityReferencedLocked(id ptime.EntityID) bool {
	for _, ev := range s.events {
		if ev.References(id) {
			return true
		}
	}
	for key := range s.edges {
		if key.Src == id || key.Dst == id {
			return true
		}
	}
	return false
}

// RenameEntityAndMaybeUpsert renames an entity, returning false if absent.
func (s *Store) RenameEntityAndMaybeUpsert(id ptime.EntityID, newName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	e.Name = newName
	stored := *e
	s.appendChangeLocked(model.Change{Kind: model.ChangeUpsertEntity, Entity: &stored})
	return true
}

// MutateEntityBodyAndMaybeUpsert applies f to the entity's body in place,
// returning false with no change appended if the entity is absent.
func (s *Store) MutateEntityBodyAndMaybeUpsert(id ptime.EntityID, f func(model.EntityBody) model.EntityBody) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	e.Body = f(e.Body)
	stored := *e
	s.appendChangeLocked(model.Change{Kind: model.ChangeUpsertEntity, Entity: &stored})
	return true
}

// GetEntity returns a copy of the entity record, if present.
func (s *Store) GetEntity(id ptime.EntityID) (model.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return model.Entity{}, false
	}
	return *e, true
}

// UpsertScope inserts or replaces a scope.
func (s *Store) UpsertScope(sc model.Scope) ptime.SeqNo {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := sc
	s.scopes[sc.ID] = &stored
	if task, ok := stored.Body.(model.TaskScope); ok {
		if s.taskScopeIndex[task.TaskKey] == nil {
			s.taskScopeIndex[task.TaskKey] = make(map[ptime.ScopeID]struct{})
		}
		s.taskScopeIndex[task.TaskKey][sc.ID] = struct{}{}
	}
	return s.appendChangeLocked(model.Change{Kind: model.ChangeUpsertScope, Scope: &stored})
}

// RemoveScope deletes a scope and its task-scope index entry, if any.
func (s *Store) RemoveScope(id ptime.ScopeID) ptime.SeqNo {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scopes[id]
	if !ok {
		return 0
	}
	if task, ok := sc.Body.(model.TaskScope); ok {
		if set := s.taskScopeIndex[task.TaskKey]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(s.taskScopeIndex, task.TaskKey)
			}
		}
	}
	delete(s.scopes, id)
	return s.appendChangeLocked(model.Change{Kind: model.ChangeRemoveScope, RemovedScopeID: id})
}

// ScopesForTask returns the scopes registered for a task key via the
// task-scope index (the causal stack's synchronous-primitive fallback).
func (s *Store) ScopesForTask(taskKey string) []ptime.ScopeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.taskScopeIndex[taskKey]
	out := make([]ptime.ScopeID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// LinkEntityToScope records a many-to-many entity<->scope link.
func (s *Store) LinkEntityToScope(eid ptime.EntityID, sid ptime.ScopeID) ptime.SeqNo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entityScopeLinks[eid] == nil {
		s.entityScopeLinks[eid] = make(map[ptime.ScopeID]struct{})
	}
	s.entityScopeLinks[eid][sid] = struct{}{}
	return s.appendChangeLocked(model.Change{Kind: model.ChangeLinkEntityScope, LinkEntityID: eid, LinkScopeID: sid})
}

// UnlinkEntityFromScope removes a previously recorded link.
func (s *Store) UnlinkEntityFromScope(eid ptime.EntityID, sid ptime.ScopeID) ptime.SeqNo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set := s.entityScopeLinks[eid]; set != nil {
		delete(set, sid)
	}
	return s.appendChangeLocked(model.Change{Kind: model.ChangeUnlinkEntityScope, LinkEntityID: eid, LinkScopeID: sid})
}

// UpsertEdge inserts or replaces an edge, attributing no specific source.
func (s *Store) UpsertEdge(src, dst ptime.EntityID, kind model.EdgeKind) ptime.SeqNo {
	return s.UpsertEdgeWithSource(src, dst, kind, 0)
}

// UpsertEdgeWithSource inserts or replaces an edge stamped with the given
// creation backtrace id.
func (s *Store) UpsertEdgeWithSource(src, dst ptime.EntityID, kind model.EdgeKind, source ptime.BacktraceID) ptime.SeqNo {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.EdgeKey{Src: src, Dst: dst, Kind: kind}
	e := &model.Edge{Key: key, Source: source}
	s.edges[key] = e
	stored := *e
	return s.appendChangeLocked(model.Change{Kind: model.ChangeUpsertEdge, Edge: &stored})
}

// RemoveEdge deletes an edge by key, if present, and sweeps deferred
// removal for both endpoints since this may have been their last reference.
func (s *Store) RemoveEdge(src, dst ptime.EntityID, kind model.EdgeKind) ptime.SeqNo {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.EdgeKey{Src: src, Dst: dst, Kind: kind}
	if _, ok := s.edges[key]; !ok {
		return 0
	}
	delete(s.edges, key)
	seqNo := s.appendChangeLocked(model.Change{Kind: model.ChangeRemoveEdge, RemovedEdgeKey: key})
	s.sweepRetentionLocked(src)
	s.sweepRetentionLocked(dst)
	return seqNo
}

// HasEdge reports whether an edge with this exact key currently exists.
func (s *Store) HasEdge(src, dst ptime.EntityID, kind model.EdgeKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.edges[model.EdgeKey{Src: src, Dst: dst, Kind: kind}]
	return ok
}

// RecordEvent pushes an event onto the ring, dropping the oldest entry if
// full, and appends an AppendEvent change.
func (s *Store) RecordEvent(ev model.Event) ptime.SeqNo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) >= EventRingCapacity {
		dropped := s.events[0]
		s.events = s.events[1:]
		if dropped.Target.Kind == model.TargetEntity {
			s.sweepRetentionLocked(dropped.Target.EntityID)
		}
	}
	s.events = append(s.events, ev)
	stored := ev
	return s.appendChangeLocked(model.Change{Kind: model.ChangeAppendEvent, Event: &stored})
}

// RegisterModuleManifest replaces the module manifest, bumping its revision
// so the dashboard push loop knows to resend the handshake.
func (s *Store) RegisterModuleManifest(modules []ModuleRecord) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moduleManifest = modules
	s.manifestRevision++
	return s.manifestRevision
}

// ModuleManifest returns the current manifest and its revision.
func (s *Store) ModuleManifest() ([]ModuleRecord, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ModuleRecord, len(s.moduleManifest))
	copy(out, s.moduleManifest)
	return out, s.manifestRevision
}

// InternBacktrace records a captured backtrace under its id, bounding the
// catalog to maxBacktraceRecords (0 = unbounded) by evicting the oldest.
func (s *Store) InternBacktrace(rec BacktraceRecord) error {
	if len(rec.Frames) == 0 {
		return ptime.ErrEmptyBacktraceFrames
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.backtraceCatalog[rec.ID]; exists {
		return nil
	}
	s.backtraceCatalog[rec.ID] = rec
	s.backtraceOrder = append(s.backtraceOrder, rec.ID)
	metrics.BacktracesInterned.Inc()
	if s.maxBacktraceRecords > 0 && len(s.backtraceOrder) > s.maxBacktraceRecords {
		evict := s.backtraceOrder[0]
		s.backtraceOrder = s.backtraceOrder[1:]
		delete(s.backtraceCatalog, evict)
	}
	return nil
}

// BacktracesAfter returns catalog records with id greater than `after`, in
// ascending order — used by the dashboard push loop to flush new records.
func (s *Store) BacktracesAfter(after ptime.BacktraceID) []BacktraceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BacktraceRecord, 0)
	for _, id := range s.backtraceOrder {
		if id > after {
			out = append(out, s.backtraceCatalog[id])
		}
	}
	return out
}

// SnapshotState is the full materialized graph state, assembled for a
// dashboard SnapshotRequest reply: every live entity, scope, and edge, plus
// the cursor and backtrace catalog at the instant of assembly.
type SnapshotState struct {
	Entities   []model.Entity
	Scopes     []model.Scope
	Edges      []model.Edge
	Cursor     ptime.SeqNo
	Backtraces []BacktraceRecord
}

// Snapshot materializes the full graph state under one lock acquisition.
func (s *Store) Snapshot() SnapshotState {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities := make([]model.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		entities = append(entities, *e)
	}
	scopes := make([]model.Scope, 0, len(s.scopes))
	for _, sc := range s.scopes {
		scopes = append(scopes, *sc)
	}
	edges := make([]model.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		edges = append(edges, *e)
	}
	backtraces := make([]BacktraceRecord, 0, len(s.backtraceCatalog))
	for _, id := range s.backtraceOrder {
		backtraces = append(backtraces, s.backtraceCatalog[id])
	}

	return SnapshotState{
		Entities:   entities,
		Scopes:     scopes,
		Edges:      edges,
		Cursor:     s.seq.Peek(),
		Backtraces: backtraces,
	}
}

// ReportMetrics recomputes and publishes the Prometheus gauges describing
// current store occupancy: live entities by body kind, live edges by kind,
// change log length, and event ring occupancy. Counters (compactions,
// interned backtraces) are bumped at their own mutation site instead, since
// a gauge snapshot can't recover a monotonic count.
func (s *Store) ReportMetrics() {
	s.mu.Lock()
	defer s.mu.Unlock()

	byEntityKind := make(map[string]int)
	for _, e := range s.entities {
		if e.IsRemoved() {
			continue
		}
		byEntityKind[e.Body.Variant()]++
	}
	for kind, n := range byEntityKind {
		metrics.EntitiesLive.WithLabelValues(kind).Set(float64(n))
	}

	byEdgeKind := make(map[model.EdgeKind]int)
	for key := range s.edges {
		byEdgeKind[key.Kind]++
	}
	for kind, n := range byEdgeKind {
		metrics.EdgesLive.WithLabelValues(string(kind)).Set(float64(n))
	}

	metrics.ChangeLogLength.Set(float64(len(s.changes)))
	metrics.EventRingOccupancy.Set(float64(len(s.events)))
}
