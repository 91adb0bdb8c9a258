package moire

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAndClose(t *testing.T) {
	r, err := Init()
	require.NoError(t, err)
	defer r.Close()
	assert.NotNil(t, r)
}

func TestNewMutexLockUnlock(t *testing.T) {
	r, err := Init()
	require.NoError(t, err)
	defer r.Close()

	m, err := r.NewMutex("test-mutex")
	require.NoError(t, err)

	guard := m.Lock(context.Background(), r.Source(0))
	guard.Unlock()
}

func TestSpawnJoins(t *testing.T) {
	r, err := Init()
	require.NoError(t, err)
	defer r.Close()

	ran := make(chan struct{})
	h := r.Spawn(context.Background(), "worker", func(context.Context) {
		close(ran)
	})
	require.NoError(t, h.Join())

	select {
	case <-ran:
	default:
		t.Fatal("spawned body did not run before Join returned")
	}
}

func TestJoinSetSpawnAndJoinNext(t *testing.T) {
	r, err := Init()
	require.NoError(t, err)
	defer r.Close()

	js, err := r.NewJoinSet(context.Background(), "batch")
	require.NoError(t, err)
	defer js.Close()

	var ran int
	done := make(chan struct{})
	js.Spawn("child-1", func(context.Context) { ran++; close(done) })

	require.NoError(t, js.JoinNext(context.Background()))
	<-done
	assert.Equal(t, 1, ran)
}

func TestStepRunExecutesBody(t *testing.T) {
	r, err := Init()
	require.NoError(t, err)
	defer r.Close()

	var ran bool
	err = r.StepRun(context.Background(), "step", nil, func(context.Context) { ran = true })
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestGenericChannelConstructorsRoundTrip(t *testing.T) {
	r, err := Init()
	require.NoError(t, err)
	defer r.Close()

	tx, rx, err := NewMpsc[int](r, "queue", 4)
	require.NoError(t, err)

	go tx.Send(context.Background(), 42, r.Source(0))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, ok := rx.Recv(ctx, r.Source(0))
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestNewOnceCellGetOrInitRunsOnce(t *testing.T) {
	r, err := Init()
	require.NoError(t, err)
	defer r.Close()

	cell, err := NewOnceCell[string](r, "config-path")
	require.NoError(t, err)

	var inits int
	init := func() (string, error) {
		inits++
		return "a", nil
	}

	v, err := cell.GetOrInit(context.Background(), init)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	v, err = cell.GetOrInit(context.Background(), init)
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, 1, inits)
}
