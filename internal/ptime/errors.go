package ptime

import "errors"

// Error taxonomy for id construction, per the id-exhaustion contract.
var (
	ErrZeroID             = errors.New("ptime: id counter is zero")
	ErrIDOutOfRange       = errors.New("ptime: id counter out of range")
	ErrEmptyField         = errors.New("ptime: required field is empty")
	ErrEmptyBacktraceFrames = errors.New("ptime: backtrace must have at least one frame")
)
