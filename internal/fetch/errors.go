package fetch

import (
	"context"
	"errors"
	"net"
	"os"
)

var (
	// ErrFetchFailed is returned for network errors and HTTP error statuses.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrFetchTimeout is returned when the deadline expired.
	ErrFetchTimeout = errors.New("fetch timeout")
)

// isTimeout reports whether err is a deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
