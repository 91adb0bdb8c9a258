package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

func mustEntityID(t *testing.T) ptime.EntityID {
	t.Helper()
	id, err := ptime.NextEntityID()
	require.NoError(t, err)
	return id
}

func TestUpsertEntityThenGetEntityRoundTrips(t *testing.T) {
	s := New()
	id := mustEntityID(t)
	before := ptime.Now()
	s.UpsertEntity(model.Entity{ID: id, Birth: before, Name: "q", Body: model.MpscRx{}})

	got, ok := s.GetEntity(id)
	require.True(t, ok)
	assert.Equal(t, "q", got.Name)
	assert.LessOrEqual(t, got.Birth, ptime.Now())
	assert.Equal(t, model.MpscRx{}, got.Body)
}

func TestChangeLogHasContiguousSeqNosInIssueOrder(t *testing.T) {
	s := New()
	const n = 5
	ids := make([]ptime.EntityID, n)
	for i := 0; i < n; i++ {
		ids[i] = mustEntityID(t)
		s.UpsertEntity(model.Entity{ID: ids[i], Body: model.Future{}})
	}

	resp := s.PullChangesSince(ptime.ZeroSeqNo, 100)
	require.Len(t, resp.Changes, n)
	for i, sc := range resp.Changes {
		assert.Equal(t, ptime.SeqNo(i+1), sc.SeqNo)
		assert.Equal(t, ids[i], sc.Change.Entity.ID)
	}
}

func TestUpsertEntityTwiceYieldsTwoChangesNoDedup(t *testing.T) {
	s := New()
	id := mustEntityID(t)
	e := model.Entity{ID: id, Body: model.Future{}}
	s.UpsertEntity(e)
	s.UpsertEntity(e)

	resp := s.PullChangesSince(ptime.ZeroSeqNo, 100)
	assert.Len(t, resp.Changes, 2)
}

func TestEdgeKeyIsUniqueUpsertThenRemoveLeavesNone(t *testing.T) {
	s := New()
	src, dst := mustEntityID(t), mustEntityID(t)
	s.UpsertEdge(src, dst, model.WaitingOn)
	assert.True(t, s.HasEdge(src, dst, model.WaitingOn))

	s.UpsertEdge(src, dst, model.WaitingOn) // re-upsert the same key
	assert.True(t, s.HasEdge(src, dst, model.WaitingOn))

	s.RemoveEdge(src, dst, model.WaitingOn)
	assert.False(t, s.HasEdge(src, dst, model.WaitingOn))
}

func TestDeferredRemovalRetainsEntityWhileEventReferencesIt(t *testing.T) {
	s := New()
	id := mustEntityID(t)
	s.UpsertEntity(model.Entity{ID: id, Body: model.Future{}})

	evID, err := ptime.NextEventID()
	require.NoError(t, err)
	s.RecordEvent(model.Event{ID: evID, Target: model.EntityTarget(id), Kind: model.EventKind{Tag: model.EventStateChanged}})

	s.RemoveEntity(id)
	got, ok := s.GetEntity(id)
	require.True(t, ok, "entity must be retained while an event references it")
	assert.True(t, got.IsRemoved())
}

func TestPullChangesSinceCursorDiscipline(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		s.UpsertEntity(model.Entity{ID: mustEntityID(t), Body: model.Future{}})
	}

	resp := s.PullChangesSince(ptime.ZeroSeqNo, 10)
	assert.Len(t, resp.Changes, 3)
	assert.Equal(t, ptime.SeqNo(4), resp.NextSeqNo)
	assert.False(t, resp.Truncated)
	assert.Nil(t, resp.CompactedBeforeSeqNo)

	limited := s.PullChangesSince(ptime.ZeroSeqNo, 2)
	assert.Len(t, limited.Changes, 2)
	assert.True(t, limited.Truncated)
	assert.Equal(t, ptime.SeqNo(3), limited.NextSeqNo)
}

func TestCompactionReturnsEmptyBatchWithFloorHintBelowIt(t *testing.T) {
	s := New()
	for i := 0; i < ChangeLogCompactionThreshold+10; i++ {
		s.UpsertEntity(model.Entity{ID: mustEntityID(t), Body: model.Future{}})
	}

	resp := s.PullChangesSince(ptime.SeqNo(1), 10)
	require.NotNil(t, resp.CompactedBeforeSeqNo)
	assert.Empty(t, resp.Changes)
	assert.Equal(t, s.compactionFloor, *resp.CompactedBeforeSeqNo)
}

func TestRecordEventDropsOldestWhenRingFull(t *testing.T) {
	s := New()
	id := mustEntityID(t)
	s.UpsertEntity(model.Entity{ID: id, Body: model.Future{}})

	for i := 0; i < EventRingCapacity+1; i++ {
		evID, err := ptime.NextEventID()
		require.NoError(t, err)
		s.RecordEvent(model.Event{ID: evID, Target: model.EntityTarget(id), Kind: model.EventKind{Tag: model.EventStateChanged}})
	}
	assert.Len(t, s.events, EventRingCapacity)
}

func TestInternBacktraceRejectsEmptyFrames(t *testing.T) {
	s := New()
	err := s.InternBacktrace(BacktraceRecord{ID: 1, Frames: nil})
	assert.ErrorIs(t, err, ptime.ErrEmptyBacktraceFrames)
}

func TestBacktracesAfterOrdering(t *testing.T) {
	s := New()
	require.NoError(t, s.InternBacktrace(BacktraceRecord{ID: 1, Frames: []FrameKey{{ModuleID: 1, RelPC: 1}}}))
	require.NoError(t, s.InternBacktrace(BacktraceRecord{ID: 2, Frames: []FrameKey{{ModuleID: 1, RelPC: 2}}}))

	after := s.BacktracesAfter(0)
	require.Len(t, after, 2)
	assert.Equal(t, ptime.BacktraceID(1), after[0].ID)
	assert.Equal(t, ptime.BacktraceID(2), after[1].ID)

	assert.Len(t, s.BacktracesAfter(1), 1)
}
