package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

func newFixture() (*graph.Store, *causal.TaskScopeIndex) {
	store := graph.New()
	return store, causal.NewTaskScopeIndex(store)
}

func TestMutexLockUnlockIsMutuallyExclusive(t *testing.T) {
	store, tasks := newFixture()
	m, err := NewMutex(store, tasks, "m", 0)
	require.NoError(t, err)

	g := m.Lock(context.Background(), 0)
	unlocked := make(chan struct{})
	go func() {
		g2 := m.Lock(context.Background(), 0)
		close(unlocked)
		g2.Unlock()
	}()

	select {
	case <-unlocked:
		t.Fatal("second Lock should not have succeeded before first Unlock")
	case <-time.After(20 * time.Millisecond):
	}
	g.Unlock()
	<-unlocked
}

func TestMutexTryLockFailureRecordsTransientPollsEdge(t *testing.T) {
	store, tasks := newFixture()
	m, err := NewMutex(store, tasks, "m", 0)
	require.NoError(t, err)

	held := m.Lock(context.Background(), 0)
	defer held.Unlock()

	actorID, _ := ptime.NextEntityID()
	ctx := causal.WithEntity(context.Background(), actorID)

	before := store.PullChangesSince(0, 1024).NextSeqNo
	guard, ok := m.TryLock(ctx, 0)
	assert.False(t, ok)
	assert.Nil(t, guard)

	assert.False(t, store.HasEdge(actorID, m.handle.ID(), model.Polls), "Polls edge must not linger after a failed TryLock")
	assert.False(t, store.HasEdge(m.handle.ID(), actorID, model.Holds), "failed TryLock must never install a Holds edge")

	batch := store.PullChangesSince(before, 1024)
	var sawPollsUpsert, sawPollsRemove bool
	for _, sc := range batch.Changes {
		switch sc.Change.Kind {
		case model.ChangeUpsertEdge:
			if sc.Change.Edge != nil && sc.Change.Edge.Key.Kind == model.Polls {
				sawPollsUpsert = true
			}
		case model.ChangeRemoveEdge:
			if sc.Change.RemovedEdgeKey.Kind == model.Polls {
				sawPollsRemove = true
			}
		}
	}
	assert.True(t, sawPollsUpsert, "expected a transient Polls edge to be recorded on failed TryLock")
	assert.True(t, sawPollsRemove, "expected the transient Polls edge to be removed")
}

func TestSemaphoreAcquireRelease(t *testing.T) {
	store, tasks := newFixture()
	s, err := NewSemaphore(store, tasks, "s", 1, 0)
	require.NoError(t, err)

	p, err := s.Acquire(context.Background(), 1, 0)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		p2, err := s.Acquire(context.Background(), 1, 0)
		require.NoError(t, err)
		close(acquired)
		p2.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire should block while the permit is held")
	case <-time.After(20 * time.Millisecond):
	}
	p.Release()
	<-acquired
}

func TestSemaphoreAcquireInstallsHoldsEdgeRemovedOnRelease(t *testing.T) {
	store, tasks := newFixture()
	s, err := NewSemaphore(store, tasks, "s", 1, 0)
	require.NoError(t, err)

	actorID, _ := ptime.NextEntityID()
	ctx := causal.WithEntity(context.Background(), actorID)

	p, err := s.Acquire(ctx, 1, 0)
	require.NoError(t, err)
	assert.True(t, store.HasEdge(s.handle.ID(), actorID, model.Holds))

	p.Release()
	assert.False(t, store.HasEdge(s.handle.ID(), actorID, model.Holds))
}

func TestNotifyOneWakesExactlyOneWaiter(t *testing.T) {
	store, tasks := newFixture()
	n, err := NewNotify(store, tasks, "n", 0)
	require.NoError(t, err)

	woke := make(chan int, 2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			n.Notified(context.Background(), 0)
			woke <- i
		}()
	}
	time.Sleep(20 * time.Millisecond)
	n.NotifyOne()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("expected one waiter to wake")
	}
	select {
	case <-woke:
		t.Fatal("only one waiter should have woken")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestOnceCellCollapsesConcurrentInit(t *testing.T) {
	store, _ := newFixture()
	_ = store
	cell, err := NewOnceCell[int](store, "c", 0)
	require.NoError(t, err)

	calls := 0
	var results [5]int
	done := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		i := i
		go func() {
			v, err := cell.GetOrInit(context.Background(), func() (int, error) {
				calls++
				return 42, nil
			})
			require.NoError(t, err)
			results[i] = v
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestMpscSendRecvRoundTrips(t *testing.T) {
	store, tasks := newFixture()
	tx, rx, err := NewMpsc[int](store, tasks, "ch", 4, 0)
	require.NoError(t, err)

	tx.Send(context.Background(), 7, 0)
	v, ok := rx.Recv(context.Background(), 0)
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestMpscEntitiesAreNamedWithColonSeparator(t *testing.T) {
	store, tasks := newFixture()
	tx, rx, err := NewMpsc[int](store, tasks, "q", 16, 0)
	require.NoError(t, err)

	txEntity, ok := store.GetEntity(tx.handle.ID())
	require.True(t, ok)
	assert.Equal(t, "q:tx", txEntity.Name)

	rxEntity, ok := store.GetEntity(rx.handle.ID())
	require.True(t, ok)
	assert.Equal(t, "q:rx", rxEntity.Name)
}

func TestBroadcastFansOutToAllSubscribers(t *testing.T) {
	store, _ := newFixture()
	tx, err := NewBroadcast[string](store, "b", 4, 0)
	require.NoError(t, err)

	a, err := tx.Subscribe(0)
	require.NoError(t, err)
	b, err := tx.Subscribe(0)
	require.NoError(t, err)

	tx.Send("hi")

	va, err := a.Recv()
	require.NoError(t, err)
	vb, err := b.Recv()
	require.NoError(t, err)
	assert.Equal(t, "hi", va)
	assert.Equal(t, "hi", vb)
}

func TestBroadcastEntitiesAreNamedWithColonSeparator(t *testing.T) {
	store, _ := newFixture()
	tx, err := NewBroadcast[string](store, "b", 4, 0)
	require.NoError(t, err)

	txEntity, ok := store.GetEntity(tx.handle.ID())
	require.True(t, ok)
	assert.Equal(t, "b:tx", txEntity.Name)

	rx, err := tx.Subscribe(0)
	require.NoError(t, err)
	rxEntity, ok := store.GetEntity(rx.handle.ID())
	require.True(t, ok)
	assert.Equal(t, "b:rx", rxEntity.Name)
}

func TestWatchChangedObservesLatestValue(t *testing.T) {
	store, tasks := newFixture()
	tx, rx, err := NewWatch(store, tasks, "w", 0, 0)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		tx.Send(99)
	}()

	got := rx.Changed(context.Background(), 0)
	assert.Equal(t, 99, got)
}

func TestWatchEntitiesAreNamedWithColonSeparator(t *testing.T) {
	store, tasks := newFixture()
	tx, rx, err := NewWatch(store, tasks, "w", 0, 0)
	require.NoError(t, err)

	txEntity, ok := store.GetEntity(tx.handle.ID())
	require.True(t, ok)
	assert.Equal(t, "w:tx", txEntity.Name)

	rxEntity, ok := store.GetEntity(rx.handle.ID())
	require.True(t, ok)
	assert.Equal(t, "w:rx", rxEntity.Name)
}

func TestOneshotSendRecv(t *testing.T) {
	store, tasks := newFixture()
	tx, rx, err := NewOneshot[string](store, tasks, "o", 0)
	require.NoError(t, err)

	go tx.Send("done")

	v, err := rx.Recv(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestOneshotEntitiesAreNamedWithColonSeparator(t *testing.T) {
	store, tasks := newFixture()
	tx, rx, err := NewOneshot[string](store, tasks, "o", 0)
	require.NoError(t, err)

	txEntity, ok := store.GetEntity(tx.handle.ID())
	require.True(t, ok)
	assert.Equal(t, "o:tx", txEntity.Name)

	rxEntity, ok := store.GetEntity(rx.handle.ID())
	require.True(t, ok)
	assert.Equal(t, "o:rx", rxEntity.Name)
}

func TestOneshotSendAndRecvRecordChannelEvents(t *testing.T) {
	store, tasks := newFixture()
	tx, rx, err := NewOneshot[string](store, tasks, "o", 0)
	require.NoError(t, err)

	before := store.PullChangesSince(0, 1024).NextSeqNo
	tx.Send("done")
	_, err = rx.Recv(context.Background(), 0)
	require.NoError(t, err)

	batch := store.PullChangesSince(before, 1024)
	var sawSent, sawReceived bool
	for _, sc := range batch.Changes {
		if sc.Change.Kind != model.ChangeAppendEvent || sc.Change.Event == nil {
			continue
		}
		switch sc.Change.Event.Target {
		case model.EntityTarget(tx.handle.ID()):
			if sc.Change.Event.Kind.Tag == model.EventChannelSent {
				sawSent = true
			}
		case model.EntityTarget(rx.handle.ID()):
			if sc.Change.Event.Kind.Tag == model.EventChannelReceived {
				sawReceived = true
			}
		}
	}
	assert.True(t, sawSent, "expected a ChannelSent event targeting the tx entity")
	assert.True(t, sawReceived, "expected a ChannelReceived event targeting the rx entity")
}
