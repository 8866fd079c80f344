// Package progress aggregates page lifecycle events into a progress snapshot.
//
// The Reporter is fed by the frontier: every admission, claim and
// completion becomes an Event. Snapshot returns the current counters plus an
// estimated time remaining based on a moving average of recent page
// processing times.
//
// A Reporter is safe for concurrent use. Listeners registered with
// WithListener are called after the internal lock is released.
package progress
