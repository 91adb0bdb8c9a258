//go:build moire_instrument

package dashboard

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
	"github.com/moire-rt/moire/internal/wire"
)

func newFixtureLoop(t *testing.T) (*Loop, *graph.Store, net.Conn, net.Conn) {
	t.Helper()
	store := graph.New()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	return New(store, "unused:0", zap.NewNop()), store, client, server
}

func TestSendHandshakeIfChangedSendsOnceForSameRevision(t *testing.T) {
	loop, store, client, server := newFixtureLoop(t)
	store.RegisterModuleManifest([]graph.ModuleRecord{{ID: 1, RuntimeBase: 0x1000, Path: "/bin/app"}})

	rev := ^uint64(0)
	done := make(chan error, 1)
	go func() { done <- loop.sendHandshakeIfChanged(client, &rev) }()

	msg, err := wire.DecodeClientMessageDefault(server)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, wire.ClientHandshake, msg.Tag)
	assert.Equal(t, uint64(1), msg.Handshake.ModuleManifest.Revision)

	// Same revision: no second send, so this call must return immediately
	// without writing to the pipe.
	err = loop.sendHandshakeIfChanged(client, &rev)
	assert.NoError(t, err)
}

func TestPushTickSendsDeltaBatchWhenChangesExist(t *testing.T) {
	loop, store, client, server := newFixtureLoop(t)
	id, err := ptime.NextEntityID()
	require.NoError(t, err)
	store.UpsertEntity(model.Entity{ID: id, Name: "task", Body: model.Notify{}})

	var cursor ptime.SeqNo
	var lastBT ptime.BacktraceID
	done := make(chan error, 1)
	go func() { done <- loop.pushTick(client, &cursor, &lastBT) }()

	msg, err := wire.DecodeClientMessageDefault(server)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, wire.ClientDeltaBatch, msg.Tag)
	assert.NotZero(t, cursor)
}

func TestPushTickAdvancesCursorWithNoChanges(t *testing.T) {
	loop, _, client, _ := newFixtureLoop(t)
	var cursor ptime.SeqNo
	var lastBT ptime.BacktraceID
	require.NoError(t, loop.pushTick(client, &cursor, &lastBT))
	assert.Equal(t, ptime.SeqNo(0), cursor)
}

func TestHandleInboundCutRequestSendsAck(t *testing.T) {
	loop, _, client, server := newFixtureLoop(t)
	var lastBT ptime.BacktraceID
	done := make(chan error, 1)
	go func() {
		done <- loop.handleInbound(client, wire.ServerMessage{
			Tag:        wire.ServerCutRequest,
			CutRequest: &wire.CutRequest{CutID: 42},
		}, &lastBT)
	}()

	msg, err := wire.DecodeClientMessageDefault(server)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, wire.ClientCutAck, msg.Tag)
	assert.Equal(t, uint64(42), msg.CutAck.CutID)
}

func TestHandleInboundSnapshotRequestSendsSnapshot(t *testing.T) {
	loop, store, client, server := newFixtureLoop(t)
	id, err := ptime.NextEntityID()
	require.NoError(t, err)
	store.UpsertEntity(model.Entity{ID: id, Name: "task", Body: model.Notify{}})

	done := make(chan error, 1)
	go func() {
		done <- loop.handleInbound(client, wire.ServerMessage{
			Tag:             wire.ServerSnapshotRequest,
			SnapshotRequest: &wire.SnapshotRequest{SnapshotID: 7},
		}, new(ptime.BacktraceID))
	}()

	snap, err := wire.DecodeSnapshotDefault(server)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, uint64(7), snap.SnapshotID)
	assert.Len(t, snap.Entities, 1)
}
