package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moire-rt/moire/internal/ptime"
)

func TestSlotProjectsOnlyMatchingVariant(t *testing.T) {
	id, err := ptime.NextEntityID()
	require.NoError(t, err)
	e := &Entity{ID: id, Body: Semaphore{MaxPermits: 4}}

	slot := NewSlot[Semaphore](e)
	v, ok := slot.Project()
	require.True(t, ok)
	assert.Equal(t, 4, v.MaxPermits)

	mismatched := NewSlot[Notify](e)
	_, ok = mismatched.Project()
	assert.False(t, ok)
}

func TestSlotProjectMutUpdatesBodyInPlace(t *testing.T) {
	id, err := ptime.NextEntityID()
	require.NoError(t, err)
	e := &Entity{ID: id, Body: Semaphore{MaxPermits: 4, HandedOutPermits: 0}}

	slot := NewSlot[Semaphore](e)
	ok := slot.ProjectMut(func(s *Semaphore) { s.HandedOutPermits++ })
	require.True(t, ok)

	v, _ := slot.Project()
	assert.Equal(t, 1, v.HandedOutPermits)
}

func TestEventReferencesEntity(t *testing.T) {
	id, err := ptime.NextEntityID()
	require.NoError(t, err)
	ev := Event{Target: EntityTarget(id)}
	assert.True(t, ev.References(id))

	other, err := ptime.NextEntityID()
	require.NoError(t, err)
	assert.False(t, ev.References(other))
}
