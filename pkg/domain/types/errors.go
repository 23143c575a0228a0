package types

import "errors"

var (
	// ErrRunNotFound is returned by RunStore when no run exists for the ID
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotCancelable is returned when cancellation is requested
	// for a run that already finished
	ErrRunNotCancelable = errors.New("run already finished")

	// ErrRunNotFinished is returned when a re-run is requested for a
	// run that is still in flight
	ErrRunNotFinished = errors.New("run still in flight")
)
