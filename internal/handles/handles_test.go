package handles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/model"
)

func TestEntityHandleDropRemovesFromGraph(t *testing.T) {
	store := graph.New()
	h, err := NewEntityHandle[model.Semaphore](store, "s", model.Semaphore{MaxPermits: 1}, 0)
	require.NoError(t, err)

	_, ok := store.GetEntity(h.ID())
	require.True(t, ok)

	h.Drop()
	_, ok = store.GetEntity(h.ID())
	assert.False(t, ok, "an entity no event or edge references is finalized on its last drop")
}

func TestEntityHandleCloneSharesOwnership(t *testing.T) {
	store := graph.New()
	h, err := NewEntityHandle[model.Notify](store, "n", model.Notify{}, 0)
	require.NoError(t, err)

	clone := h.Clone()
	h.Drop()

	got, ok := store.GetEntity(clone.ID())
	require.True(t, ok)
	assert.False(t, got.IsRemoved(), "entity must survive while a clone is alive")

	clone.Drop()
	got, ok = store.GetEntity(clone.ID())
	require.True(t, ok)
	assert.True(t, got.IsRemoved())
}

func TestEntityHandleMutatePanicsOnSlotMismatch(t *testing.T) {
	store := graph.New()
	h, err := NewEntityHandle[model.Notify](store, "n", model.Notify{}, 0)
	require.NoError(t, err)
	defer h.Drop()

	store.MutateEntityBodyAndMaybeUpsert(h.ID(), func(model.EntityBody) model.EntityBody {
		return model.Semaphore{}
	})

	assert.Panics(t, func() {
		h.Mutate(func(n *model.Notify) { n.WaiterCount++ })
	})
}

func TestWeakEntityHandleUpgradeFailsAfterRemoval(t *testing.T) {
	store := graph.New()
	h, err := NewEntityHandle[model.Notify](store, "n", model.Notify{}, 0)
	require.NoError(t, err)
	weak := h.Weak()

	h.Drop()
	// Nothing else references the entity, so the drop finalizes its removal
	// and Upgrade finds no record to revive.
	_, ok := weak.Upgrade()
	assert.False(t, ok)
}

func TestEdgeHandleDropRemovesEdge(t *testing.T) {
	store := graph.New()
	a, err := NewEntityHandle[model.Future](store, "a", model.Future{}, 0)
	require.NoError(t, err)
	defer a.Drop()
	b, err := NewEntityHandle[model.Future](store, "b", model.Future{}, 0)
	require.NoError(t, err)
	defer b.Drop()

	edge := NewEdgeHandle(store, a.ID(), b.ID(), model.WaitingOn, 0)
	assert.True(t, store.HasEdge(a.ID(), b.ID(), model.WaitingOn))

	edge.Drop()
	assert.False(t, store.HasEdge(a.ID(), b.ID(), model.WaitingOn))
}
