package run

import "errors"

var (
	// ErrRunNotFound is returned for an unknown or released run ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotComplete is returned when a result is requested while the run is still going.
	ErrRunNotComplete = errors.New("run not complete")
)
