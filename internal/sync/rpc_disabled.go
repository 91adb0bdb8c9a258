//go:build !moire_instrument

package sync

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/moire-rt/moire/internal/graph"
	"github.com/moire-rt/moire/internal/model"
	"github.com/moire-rt/moire/internal/ptime"
)

type RequestHandle struct {
	methodName string
}

func RPCRequest(_ *graph.Store, serviceName, methodName, argsJSON string, _ ptime.BacktraceID) (*RequestHandle, error) {
	return &RequestHandle{methodName: methodName}, nil
}

func (r *RequestHandle) ID() ptime.EntityID { return ptime.EntityID{} }

type ResponseHandle struct {
	status model.ResponseStatus
}

func RPCResponseFor(_ *graph.Store, _ *RequestHandle, _ ptime.BacktraceID) (*ResponseHandle, error) {
	return &ResponseHandle{status: model.ResponseStatus{Kind: model.ResponsePending}}, nil
}

func (r *ResponseHandle) Resolve(okJSON string) {
	r.status = model.ResponseStatus{Kind: model.ResponseOk, OkJSON: okJSON}
}

func (r *ResponseHandle) Fail(class model.ResponseErrorClass, errJSON string) {
	r.status = model.ResponseStatus{Kind: model.ResponseErrorKind, ErrorClass: class, ErrorJSON: errJSON}
}

func (r *ResponseHandle) Cancel() {
	r.status = model.ResponseStatus{Kind: model.ResponseCancelled}
}

func (r *ResponseHandle) Drop() {}

type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})}
}

func (b *CircuitBreaker) Call(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}
