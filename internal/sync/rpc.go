//go:build moire_instrument

package sync

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/handles"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

// RequestHandle represents one in-flight RPC request entity, named for its method.
type RequestHandle struct {
	store  *graph.Store
	handle handles.EntityHandle[model.Request]
}

// RPCRequest creates the request entity.
func RPCRequest(store *graph.Store, serviceName, methodName, argsJSON string, source ptime.BacktraceID) (*RequestHandle, error) {
	h, err := handles.NewEntityHandle[model.Request](store, methodName, model.Request{
		ServiceName: serviceName,
		MethodName:  methodName,
		ArgsJSON:    argsJSON,
	}, source)
	if err != nil {
		return nil, err
	}
	return &RequestHandle{store: store, handle: h}, nil
}

// ID returns the request entity's id.
func (r *RequestHandle) ID() ptime.EntityID { return r.handle.ID() }

// ResponseHandle represents the server-side response entity, paired from
// response to request (edge direction is response -> request, per the
// original's rpc_response_for contract).
type ResponseHandle struct {
	store  *graph.Store
	handle handles.EntityHandle[model.Response]
}

// RPCResponseFor creates the response entity and the PairedWith edge from
// response to request.
func RPCResponseFor(store *graph.Store, req *RequestHandle, source ptime.BacktraceID) (*ResponseHandle, error) {
	h, err := handles.NewEntityHandle[model.Response](store, req.handle.ID().String(), model.Response{
		Status: model.ResponseStatus{Kind: model.ResponsePending},
	}, source)
	if err != nil {
		return nil, err
	}
	store.UpsertEdgeWithSource(h.ID(), req.ID(), model.PairedWith, source)
	return &ResponseHandle{store: store, handle: h}, nil
}

// Resolve transitions the response to Ok, emitting StateChanged.
func (r *ResponseHandle) Resolve(okJSON string) {
	r.handle.Mutate(func(body *model.Response) {
		body.Status = model.ResponseStatus{Kind: model.ResponseOk, OkJSON: okJSON}
	})
	recordEvent(r.store, r.handle.ID(), model.EventStateChanged)
}

// Fail transitions the response to Error, emitting StateChanged.
func (r *ResponseHandle) Fail(class model.ResponseErrorClass, errJSON string) {
	r.handle.Mutate(func(body *model.Response) {
		body.Status = model.ResponseStatus{Kind: model.ResponseErrorKind, ErrorClass: class, ErrorJSON: errJSON}
	})
	recordEvent(r.store, r.handle.ID(), model.EventStateChanged)
}

// Cancel transitions the response to Cancelled, emitting StateChanged.
func (r *ResponseHandle) Cancel() {
	r.handle.Mutate(func(body *model.Response) {
		body.Status = model.ResponseStatus{Kind: model.ResponseCancelled}
	})
	recordEvent(r.store, r.handle.ID(), model.EventStateChanged)
}

// Drop releases the response entity.
func (r *ResponseHandle) Drop() { r.handle.Drop() }

// CircuitBreaker wraps an RPC call with sony/gobreaker, opening after
// repeated failures to shed load from a misbehaving peer; opt-in, used by
// callers that dial an RPC peer rather than by the request/response
// bookkeeping above.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker builds a breaker named for the peer/service it guards,
// opening after 5 consecutive failures and probing again after 30s.
func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})}
}

// Call executes fn through the breaker.
func (b *CircuitBreaker) Call(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}
