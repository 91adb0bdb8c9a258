package model

import (
	"encoding/json"
	"fmt"

	"github.com/moire-rt/moire/internal/ptime"
)

// ScopeBody is the sealed union of scope body variants.
type ScopeBody interface {
	isScopeBody()
	Variant() string
}

type ProcessScope struct {
	PID uint32 `json:"pid"`
}

func (ProcessScope) isScopeBody()  {}
func (ProcessScope) Variant() string { return "Process" }

type ThreadScope struct {
	Name *string `json:"name,omitempty"`
}

func (ThreadScope) isScopeBody()  {}
func (ThreadScope) Variant() string { return "Thread" }

type TaskScope struct {
	TaskKey string `json:"task_key"`
}

func (TaskScope) isScopeBody()  {}
func (TaskScope) Variant() string { return "Task" }

type ConnectionScope struct {
	LocalAddr *string `json:"local_addr,omitempty"`
	PeerAddr  *string `json:"peer_addr,omitempty"`
}

func (ConnectionScope) isScopeBody()  {}
func (ConnectionScope) Variant() string { return "Connection" }

// Scope is a long-lived execution context entities may be linked to.
type Scope struct {
	ID   ptime.ScopeID
	Body ScopeBody
}

type scopeWire struct {
	ID       ptime.ScopeID   `json:"id"`
	BodyKind string          `json:"body_kind"`
	Body     json.RawMessage `json:"body"`
}

// MarshalJSON encodes Body as a (kind, payload) pair keyed by Variant(),
// mirroring Entity's sealed-interface wire shape.
func (s Scope) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(s.Body)
	if err != nil {
		return nil, fmt.Errorf("model: marshaling scope body: %w", err)
	}
	return json.Marshal(scopeWire{ID: s.ID, BodyKind: s.Body.Variant(), Body: raw})
}

// UnmarshalJSON decodes Body via the scope variant switch.
func (s *Scope) UnmarshalJSON(data []byte) error {
	var w scopeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("model: unmarshaling scope: %w", err)
	}
	var body ScopeBody
	switch w.BodyKind {
	case "Process":
		var v ProcessScope
		if err := json.Unmarshal(w.Body, &v); err != nil {
			return fmt.Errorf("model: decoding Process scope body: %w", err)
		}
		body = v
	case "Thread":
		var v ThreadScope
		if err := json.Unmarshal(w.Body, &v); err != nil {
			return fmt.Errorf("model: decoding Thread scope body: %w", err)
		}
		body = v
	case "Task":
		var v TaskScope
		if err := json.Unmarshal(w.Body, &v); err != nil {
			return fmt.Errorf("model: decoding Task scope body: %w", err)
		}
		body = v
	case "Connection":
		var v ConnectionScope
		if err := json.Unmarshal(w.Body, &v); err != nil {
			return fmt.Errorf("model: decoding Connection scope body: %w", err)
		}
		body = v
	default:
		return fmt.Errorf("model: unknown scope body kind %q", w.BodyKind)
	}
	s.ID, s.Body = w.ID, body
	return nil
}
