package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

func TestMagicRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMagic(&buf))
	require.NoError(t, ReadMagic(&buf))
}

func TestReadMagicRejectsWrongBytes(t *testing.T) {
	buf := bytes.NewBufferString("xxxx")
	assert.ErrorIs(t, ReadMagic(buf), ErrBadMagic)
}

func TestFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("payload")))
	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestWriteFrameRejectsOversizePayload(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxFrameSize+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestClientMessageHandshakeRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	msg := NewHandshakeMessage(Handshake{
		ProcessName: "app",
		PID:         123,
		Args:        []string{"--flag"},
		Env:         []string{"K=V"},
		ModuleManifest: ModuleManifest{
			Revision: 1,
			Modules:  []graph.ModuleRecord{{ID: 1, RuntimeBase: 0x1000, Path: "/bin/app"}},
		},
	})
	require.NoError(t, EncodeClientMessageDefault(&buf, msg))

	got, err := DecodeClientMessageDefault(&buf)
	require.NoError(t, err)
	require.Equal(t, ClientHandshake, got.Tag)
	assert.Equal(t, "app", got.Handshake.ProcessName)
	assert.Equal(t, uint64(1), got.Handshake.ModuleManifest.Revision)
}

func TestClientMessageDeltaBatchRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	id, err := ptime.NextEntityID()
	require.NoError(t, err)

	batch := graph.PullChangesResponse{
		FromSeqNo: 0,
		NextSeqNo: 2,
		Changes: []model.StampedChange{
			{SeqNo: 1, Change: model.Change{Kind: model.ChangeUpsertEntity, Entity: &model.Entity{ID: id, Name: "x", Body: model.Notify{WaiterCount: 1}}}},
		},
	}
	require.NoError(t, EncodeClientMessageDefault(&buf, NewDeltaBatchMessage(batch)))

	got, err := DecodeClientMessageDefault(&buf)
	require.NoError(t, err)
	require.Equal(t, ClientDeltaBatch, got.Tag)
	require.Len(t, got.DeltaBatch.Changes, 1)
	entity := got.DeltaBatch.Changes[0].Change.Entity
	require.NotNil(t, entity)
	assert.Equal(t, id, entity.ID)
	notify, ok := entity.Body.(model.Notify)
	require.True(t, ok)
	assert.Equal(t, 1, notify.WaiterCount)
}

func TestServerMessageCutRequestRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeServerMessageDefault(&buf, ServerMessage{Tag: ServerCutRequest, CutRequest: &CutRequest{CutID: 7}}))

	got, err := DecodeServerMessageDefault(&buf)
	require.NoError(t, err)
	require.Equal(t, ServerCutRequest, got.Tag)
	assert.Equal(t, uint64(7), got.CutRequest.CutID)
}
