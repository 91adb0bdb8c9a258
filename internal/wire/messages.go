package wire

import (
	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// ModuleManifest lists the process's loaded modules, sent in a Handshake
// and re-sent whenever its revision changes.
type ModuleManifest struct {
	Revision uint64                `json:"revision"`
	Modules  []graph.ModuleRecord `json:"modules"`
}

// Handshake is sent once per session and again whenever the module
// manifest revision changes.
type Handshake struct {
	ProcessName    string         `json:"process_name"`
	PID            uint32         `json:"pid"`
	Args           []string       `json:"args"`
	Env            []string       `json:"env"`
	ModuleManifest ModuleManifest `json:"module_manifest"`
}

// BacktraceRecord is sent before any change that references its id; it is
// the graph store's own BacktraceRecord shape (id plus module/pc frames).
type BacktraceRecord = graph.BacktraceRecord

// CutAck is the client's response to a server CutRequest.
type CutAck struct {
	CutID  uint64        `json:"cut_id"`
	Cursor ptime.SeqNo   `json:"cursor"`
}

// ClientMessageTag tags which variant a ClientMessage carries.
type ClientMessageTag string

const (
	ClientHandshake       ClientMessageTag = "handshake"
	ClientDeltaBatch      ClientMessageTag = "delta_batch"
	ClientBacktraceRecord ClientMessageTag = "backtrace_record"
	ClientCutAck          ClientMessageTag = "cut_ack"
)

// ClientMessage is the client→server sum type.
type ClientMessage struct {
	Tag ClientMessageTag `json:"tag"`

	Handshake       *Handshake               `json:"handshake,omitempty"`
	DeltaBatch      *graph.PullChangesResponse `json:"delta_batch,omitempty"`
	BacktraceRecord *BacktraceRecord         `json:"backtrace_record,omitempty"`
	CutAck          *CutAck                  `json:"cut_ack,omitempty"`
}

// NewHandshakeMessage builds a tagged ClientMessage carrying a Handshake.
func NewHandshakeMessage(h Handshake) ClientMessage {
	return ClientMessage{Tag: ClientHandshake, Handshake: &h}
}

// NewDeltaBatchMessage builds a tagged ClientMessage carrying a DeltaBatch.
func NewDeltaBatchMessage(batch graph.PullChangesResponse) ClientMessage {
	return ClientMessage{Tag: ClientDeltaBatch, DeltaBatch: &batch}
}

// NewBacktraceRecordMessage builds a tagged ClientMessage carrying one BacktraceRecord.
func NewBacktraceRecordMessage(rec BacktraceRecord) ClientMessage {
	return ClientMessage{Tag: ClientBacktraceRecord, BacktraceRecord: &rec}
}

// NewCutAckMessage builds a tagged ClientMessage carrying a CutAck.
func NewCutAckMessage(ack CutAck) ClientMessage {
	return ClientMessage{Tag: ClientCutAck, CutAck: &ack}
}

// ServerMessageTag tags which variant a ServerMessage carries.
type ServerMessageTag string

const (
	ServerCutRequest      ServerMessageTag = "cut_request"
	ServerSnapshotRequest ServerMessageTag = "snapshot_request"
)

// CutRequest asks the client for a coordinated cursor at a logical barrier.
type CutRequest struct {
	CutID uint64 `json:"cut_id"`
}

// SnapshotRequest asks the client for a full snapshot reply frame.
type SnapshotRequest struct {
	SnapshotID uint64 `json:"snapshot_id"`
}

// ServerMessage is the server→client sum type.
type ServerMessage struct {
	Tag ServerMessageTag `json:"tag"`

	CutRequest      *CutRequest      `json:"cut_request,omitempty"`
	SnapshotRequest *SnapshotRequest `json:"snapshot_request,omitempty"`
}

// Snapshot is the full-state reply assembled by the graph store for a
// SnapshotRequest — every live entity, scope, edge, the current cursor, and
// the full backtrace catalog.
type Snapshot struct {
	SnapshotID uint64              `json:"snapshot_id"`
	Entities   []model.Entity      `json:"entities"`
	Scopes     []model.Scope       `json:"scopes"`
	Edges      []model.Edge        `json:"edges"`
	Cursor     ptime.SeqNo         `json:"cursor"`
	Backtraces []graph.BacktraceRecord `json:"backtraces"`
}
