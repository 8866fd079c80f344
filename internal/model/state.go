package model

import "fmt"

// PageState is the lifecycle state of a page in a crawl.
//
// The only legal transitions are queued -> processing -> one of the
// terminal states. Terminal states are never left.
type PageState int

const (
	// StateQueued means the page was admitted and waits to be claimed.
	StateQueued PageState = iota

	// StateProcessing means a worker claimed the page.
	StateProcessing

	// StateSuccess means the page was fetched and processed.
	StateSuccess

	// StateFailed means the fetch failed (network error or HTTP error status).
	StateFailed

	// StateTimeout means the per-page deadline elapsed.
	// Partial content may still have been processed.
	StateTimeout

	// StateRedirected means the page resolved to a different final URL.
	StateRedirected
)

var pageStateNames = map[PageState]string{
	StateQueued:     "queued",
	StateProcessing: "processing",
	StateSuccess:    "success",
	StateFailed:     "failed",
	StateTimeout:    "timeout",
	StateRedirected: "redirected",
}

// String returns the lowercase name of the state.
func (s PageState) String() string {
	if name, ok := pageStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether s is one of success, failed, timeout or redirected.
func (s PageState) IsTerminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateTimeout, StateRedirected:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is legal.
func (s PageState) CanTransition(next PageState) bool {
	switch s {
	case StateQueued:
		return next == StateProcessing
	case StateProcessing:
		return next.IsTerminal()
	default:
		return false
	}
}

// MarshalText encodes the state as its name.
func (s PageState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *PageState) UnmarshalText(text []byte) error {
	parsed, err := ParsePageState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParsePageState converts a state name back to a PageState.
func ParsePageState(name string) (PageState, error) {
	for state, n := range pageStateNames {
		if n == name {
			return state, nil
		}
	}
	return StateQueued, fmt.Errorf("unknown page state %q", name)
}

// TerminalStates lists the terminal states in display order.
func TerminalStates() []PageState {
	return []PageState{StateSuccess, StateRedirected, StateTimeout, StateFailed}
}

// DiscoveryMethod records how a page entered the crawl.
type DiscoveryMethod string

const (
	// MethodManual is a caller-supplied URL (the seed or an explicit enqueue).
	MethodManual DiscoveryMethod = "manual"

	// MethodLink is a hyperlink found in a fetched page.
	MethodLink DiscoveryMethod = "link"

	// MethodSitemap is a location listed in the site's sitemap.
	MethodSitemap DiscoveryMethod = "sitemap"

	// MethodRedirect is the final URL of a redirecting page.
	MethodRedirect DiscoveryMethod = "redirect"
)

// SiteStatus is the overall status of a crawl run.
type SiteStatus string

const (
	// SiteRunning means workers may still be processing pages.
	SiteRunning SiteStatus = "running"

	// SiteCompleted means the frontier drained or the page bound was reached.
	SiteCompleted SiteStatus = "completed"

	// SiteFailed means the seed itself could not be processed.
	SiteFailed SiteStatus = "failed"

	// SiteCancelled means the caller cancelled and all in-flight pages finished.
	SiteCancelled SiteStatus = "cancelled"
)

// IsDone reports whether the run has finished.
func (s SiteStatus) IsDone() bool {
	return s == SiteCompleted || s == SiteFailed || s == SiteCancelled
}
