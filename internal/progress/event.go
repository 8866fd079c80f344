package progress

import (
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// EventKind identifies a progress event.
type EventKind int

const (
	// PageQueued is emitted when a page is admitted to the queue.
	PageQueued EventKind = iota

	// PageStarted is emitted when a worker claims a page.
	PageStarted

	// PageCompleted is emitted when a page reaches a terminal state.
	PageCompleted

	// PagesDiscovered is emitted after link discovery on a page.
	PagesDiscovered
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case PageQueued:
		return "page_queued"
	case PageStarted:
		return "page_started"
	case PageCompleted:
		return "page_completed"
	case PagesDiscovered:
		return "pages_discovered"
	default:
		return "unknown"
	}
}

// Event is one page lifecycle notification.
type Event struct {
	Kind EventKind
	URL  string

	// Outcome is the terminal state of a PageCompleted event.
	Outcome model.PageState

	// Duration is the processing time of a PageCompleted event.
	Duration time.Duration

	// Count is the number of links of a PagesDiscovered event.
	Count int

	// Err is the failure of a PageCompleted event, if any.
	Err string
}

// Queued builds a PageQueued event.
func Queued(url string) Event {
	return Event{Kind: PageQueued, URL: url}
}

// Started builds a PageStarted event.
func Started(url string) Event {
	return Event{Kind: PageStarted, URL: url}
}

// Completed builds a PageCompleted event.
func Completed(url string, outcome model.PageState, d time.Duration) Event {
	return Event{Kind: PageCompleted, URL: url, Outcome: outcome, Duration: d}
}

// Discovered builds a PagesDiscovered event.
func Discovered(url string, n int) Event {
	return Event{Kind: PagesDiscovered, URL: url, Count: n}
}

// Observer receives events. *Reporter implements it.
type Observer interface {
	Update(Event)
}
