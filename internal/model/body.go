// Package model holds the graph's data model: entities, scopes, edges,
// events, their sum-typed bodies, and the slot machinery typed handles use
// to refuse mutating a mismatched body.
package model

import (
	"encoding/json"
	"fmt"
)

// EntityBody is the sealed union of entity body variants. Each concrete
// type below is the runtime payload for one entity kind; Variant() names it
// for wire encoding and for the slot-mismatch panic message.
type EntityBody interface {
	isEntityBody()
	Variant() string
}

// LockKind distinguishes the flavors of Lock body.
type LockKind string

const (
	LockMutex  LockKind = "mutex"
	LockRWLock LockKind = "rwlock"
	LockOther  LockKind = "other"
)

type Future struct{}

func (Future) isEntityBody()    {}
func (Future) Variant() string  { return "Future" }

type Lock struct {
	Kind LockKind `json:"kind"`
}

func (Lock) isEntityBody()   {}
func (Lock) Variant() string { return "Lock" }

type MpscTx struct {
	QueueLen int  `json:"queue_len"`
	Capacity *int `json:"capacity,omitempty"`
}

func (MpscTx) isEntityBody()   {}
func (MpscTx) Variant() string { return "MpscTx" }

type MpscRx struct{}

func (MpscRx) isEntityBody()   {}
func (MpscRx) Variant() string { return "MpscRx" }

type BroadcastTx struct {
	Capacity int `json:"capacity"`
}

func (BroadcastTx) isEntityBody()   {}
func (BroadcastTx) Variant() string { return "BroadcastTx" }

type BroadcastRx struct {
	Lag uint64 `json:"lag"`
}

func (BroadcastRx) isEntityBody()   {}
func (BroadcastRx) Variant() string { return "BroadcastRx" }

type WatchTx struct {
	LastUpdateAt *uint64 `json:"last_update_at,omitempty"`
}

func (WatchTx) isEntityBody()   {}
func (WatchTx) Variant() string { return "WatchTx" }

type WatchRx struct{}

func (WatchRx) isEntityBody()   {}
func (WatchRx) Variant() string { return "WatchRx" }

type OneshotTx struct {
	Sent bool `json:"sent"`
}

func (OneshotTx) isEntityBody()   {}
func (OneshotTx) Variant() string { return "OneshotTx" }

type OneshotRx struct{}

func (OneshotRx) isEntityBody()   {}
func (OneshotRx) Variant() string { return "OneshotRx" }

type Semaphore struct {
	MaxPermits        int `json:"max_permits"`
	HandedOutPermits  int `json:"handed_out_permits"`
}

func (Semaphore) isEntityBody()   {}
func (Semaphore) Variant() string { return "Semaphore" }

type Notify struct {
	WaiterCount int `json:"waiter_count"`
}

func (Notify) isEntityBody()   {}
func (Notify) Variant() string { return "Notify" }

// OnceCellState enumerates the lifecycle of a OnceCell body.
type OnceCellState string

const (
	OnceCellEmpty        OnceCellState = "empty"
	OnceCellInitializing OnceCellState = "initializing"
	OnceCellInitialized  OnceCellState = "initialized"
)

type OnceCell struct {
	WaiterCount int           `json:"waiter_count"`
	State       OnceCellState `json:"state"`
}

func (OnceCell) isEntityBody()   {}
func (OnceCell) Variant() string { return "OnceCell" }

type Command struct {
	Program string   `json:"program"`
	Args    []string `json:"args"`
	Env     []string `json:"env"`
}

func (Command) isEntityBody()   {}
func (Command) Variant() string { return "Command" }

type FileOp struct {
	Op   string `json:"op"`
	Path string `json:"path"`
}

func (FileOp) isEntityBody()   {}
func (FileOp) Variant() string { return "FileOp" }

// NetKind distinguishes the flavors of net entity.
type NetKind string

const (
	NetConnect NetKind = "connect"
	NetAccept  NetKind = "accept"
	NetRead    NetKind = "read"
	NetWrite   NetKind = "write"
)

type Net struct {
	Kind NetKind `json:"kind"`
	Addr string  `json:"addr"`
}

func (Net) isEntityBody()   {}
func (Net) Variant() string { return "Net" }

type Request struct {
	ServiceName string `json:"service_name"`
	MethodName  string `json:"method_name"`
	ArgsJSON    string `json:"args_json"`
}

func (Request) isEntityBody()   {}
func (Request) Variant() string { return "Request" }

// ResponseStatusKind enumerates a response's status tag.
type ResponseStatusKind string

const (
	ResponsePending   ResponseStatusKind = "pending"
	ResponseOk        ResponseStatusKind = "ok"
	ResponseErrorKind ResponseStatusKind = "error"
	ResponseCancelled ResponseStatusKind = "cancelled"
)

// ResponseErrorClass distinguishes internal vs. user-originated errors.
type ResponseErrorClass string

const (
	ResponseErrorInternal ResponseErrorClass = "internal"
	ResponseErrorUserJSON ResponseErrorClass = "user_json"
)

type ResponseStatus struct {
	Kind       ResponseStatusKind `json:"kind"`
	OkJSON     string             `json:"ok_json,omitempty"`
	ErrorClass ResponseErrorClass `json:"error_class,omitempty"`
	ErrorJSON  string             `json:"error_json,omitempty"`
}

type Response struct {
	ServiceName string         `json:"service_name"`
	MethodName  string         `json:"method_name"`
	Status      ResponseStatus `json:"status"`
}

func (Response) isEntityBody()   {}
func (Response) Variant() string { return "Response" }

// Custom is the user-extensible entity body escape hatch.
type Custom struct {
	Kind        string `json:"kind"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	Icon        string `json:"icon"`
	AttrsJSON   string `json:"attrs_json"`
}

func (Custom) isEntityBody()   {}
func (Custom) Variant() string { return "Custom" }

// decodeEntityBody decodes raw into the concrete EntityBody variant named
// by kind, used by Entity.UnmarshalJSON to recover the sealed interface
// type a plain json.Unmarshal into EntityBody could never reconstruct.
func decodeEntityBody(kind string, raw json.RawMessage) (EntityBody, error) {
	var body EntityBody
	switch kind {
	case "Future":
		var v Future
		body = v
	case "Lock":
		var v Lock
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding Lock body: %w", err)
		}
		return v, nil
	case "MpscTx":
		var v MpscTx
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding MpscTx body: %w", err)
		}
		return v, nil
	case "MpscRx":
		var v MpscRx
		body = v
	case "BroadcastTx":
		var v BroadcastTx
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding BroadcastTx body: %w", err)
		}
		return v, nil
	case "BroadcastRx":
		var v BroadcastRx
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding BroadcastRx body: %w", err)
		}
		return v, nil
	case "WatchTx":
		var v WatchTx
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding WatchTx body: %w", err)
		}
		return v, nil
	case "WatchRx":
		var v WatchRx
		body = v
	case "OneshotTx":
		var v OneshotTx
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding OneshotTx body: %w", err)
		}
		return v, nil
	case "OneshotRx":
		var v OneshotRx
		body = v
	case "Semaphore":
		var v Semaphore
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding Semaphore body: %w", err)
		}
		return v, nil
	case "Notify":
		var v Notify
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding Notify body: %w", err)
		}
		return v, nil
	case "OnceCell":
		var v OnceCell
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding OnceCell body: %w", err)
		}
		return v, nil
	case "Command":
		var v Command
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding Command body: %w", err)
		}
		return v, nil
	case "FileOp":
		var v FileOp
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding FileOp body: %w", err)
		}
		return v, nil
	case "Net":
		var v Net
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding Net body: %w", err)
		}
		return v, nil
	case "Request":
		var v Request
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding Request body: %w", err)
		}
		return v, nil
	case "Response":
		var v Response
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding Response body: %w", err)
		}
		return v, nil
	case "Custom":
		var v Custom
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("model: decoding Custom body: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("model: unknown entity body kind %q", kind)
	}
	return body, nil
}
