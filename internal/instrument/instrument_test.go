package instrument

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moire-rt/moire/internal/causal"
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/handles"
	"github.com/moire-rt/moire/internal/model"
)

func TestOperationPointImmediateSuccessInstallsNoEdge(t *testing.T) {
	store := graph.New()
	actor, err := handles.NewEntityHandle[model.Future](store, "actor", model.Future{}, 0)
	require.NoError(t, err)
	defer actor.Drop()
	target, err := handles.NewEntityHandle[model.Notify](store, "target", model.Notify{}, 0)
	require.NoError(t, err)
	defer target.Drop()

	op := NewOperationPoint(store, actor.ID(), true, target.ID(), 0)
	op.Run(func() bool { return true }, func() {})

	assert.False(t, store.HasEdge(actor.ID(), target.ID(), model.WaitingOn))
}

func TestOperationPointBlockingInstallsThenRemovesWaitingOn(t *testing.T) {
	store := graph.New()
	actor, err := handles.NewEntityHandle[model.Future](store, "actor", model.Future{}, 0)
	require.NoError(t, err)
	defer actor.Drop()
	target, err := handles.NewEntityHandle[model.Notify](store, "target", model.Notify{}, 0)
	require.NoError(t, err)
	defer target.Drop()

	op := NewOperationPoint(store, actor.ID(), true, target.ID(), 0)
	blocked := make(chan struct{})
	released := make(chan struct{})

	go op.Run(func() bool { return false }, func() {
		close(blocked)
		<-released
	})

	<-blocked
	assert.Eventually(t, func() bool {
		return store.HasEdge(actor.ID(), target.ID(), model.WaitingOn)
	}, time.Second, time.Millisecond)

	close(released)
	assert.Eventually(t, func() bool {
		return !store.HasEdge(actor.ID(), target.ID(), model.WaitingOn)
	}, time.Second, time.Millisecond)
}

func TestStepInstallsAwaitedByFromCausalParent(t *testing.T) {
	store := graph.New()
	parent, err := handles.NewEntityHandle[model.Future](store, "parent", model.Future{}, 0)
	require.NoError(t, err)
	defer parent.Drop()

	ctx := causal.WithEntity(context.Background(), parent.ID())

	stepCtx, step, err := Begin(ctx, store, "child", nil, 0)
	require.NoError(t, err)
	assert.True(t, store.HasEdge(parent.ID(), step.ID(), model.WaitingOn))
	_ = stepCtx

	step.End()
	assert.False(t, store.HasEdge(parent.ID(), step.ID(), model.WaitingOn))
}

func TestSpawnJoinRunsBodyAndReturnsNoError(t *testing.T) {
	store := graph.New()
	ran := false
	jh := Spawn(context.Background(), store, "worker", 0, func(context.Context) {
		ran = true
	})
	require.NoError(t, jh.Join())
	assert.True(t, ran)
}

func TestJoinSetSpawnAndJoinNextWaitsForChildren(t *testing.T) {
	store := graph.New()
	js, err := NewJoinSet(context.Background(), store, "pool", 0)
	require.NoError(t, err)
	defer js.Close()

	count := 0
	js.Spawn("a", func(context.Context) { count++ })
	js.Spawn("b", func(context.Context) { count++ })

	require.NoError(t, js.JoinNext(context.Background()))
	assert.Equal(t, 2, count)
}
