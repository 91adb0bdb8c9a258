package lockorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moire-rt/moire/internal/ptime"
)

func TestPushPopTracksNestedLocks(t *testing.T) {
	a, err := ptime.NextEntityID()
	require.NoError(t, err)
	b, err := ptime.NextEntityID()
	require.NoError(t, err)

	Push(a)
	Push(b)
	assert.Equal(t, []ptime.EntityID{a, b}, Snapshot())

	Pop(b)
	assert.Equal(t, []ptime.EntityID{a}, Snapshot())

	Pop(a)
	assert.Empty(t, Snapshot())
}

func TestSnapshotEmptyForGoroutineWithNoLocks(t *testing.T) {
	done := make(chan struct{})
	var snap []ptime.EntityID
	go func() {
		snap = Snapshot()
		close(done)
	}()
	<-done
	assert.Empty(t, snap)
}
