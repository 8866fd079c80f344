package frontier

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueBoundExceeded is returned when max_pages has been reached.
	ErrQueueBoundExceeded = errors.New("queue bound exceeded")

	// ErrDepthExceeded is returned when a page would exceed max_depth.
	// It wraps ErrQueueBoundExceeded.
	ErrDepthExceeded = fmt.Errorf("%w: max depth", ErrQueueBoundExceeded)

	// ErrAlreadySeen is returned when a URL was already admitted.
	ErrAlreadySeen = errors.New("url already seen")

	// ErrQueueClosed is returned after the queue was closed.
	ErrQueueClosed = errors.New("queue closed")

	// ErrUnknownPage is returned by Complete for a URL that was never admitted.
	ErrUnknownPage = errors.New("unknown page")

	// ErrInvalidTransition is returned by Complete when the page is not processing
	// or the target state is not terminal.
	ErrInvalidTransition = errors.New("invalid page state transition")
)
