package model

import "time"

// CrawlResult is the outcome of one site crawl.
type CrawlResult struct {
	// ID identifies the run. Empty for crawls not started through a run manager.
	ID string `json:"id,omitempty"`

	// Seed is the normalized seed URL.
	Seed string `json:"seed"`

	Status SiteStatus `json:"status"`

	// Record is the aggregated record of every terminal page, folded in
	// discovery order.
	Record AggregatedRecord `json:"record"`

	// Pages are every admitted page in admission order.
	Pages []Page `json:"pages"`

	// Edges are the parent to child links observed during the crawl,
	// including links to pages that were never admitted.
	Edges []Edge `json:"edges"`

	// Orphans are pages admitted without a parent that are not the seed.
	Orphans []string `json:"orphans,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// Error is set when the run could not start or the seed failed.
	Error string `json:"error,omitempty"`
}

// Duration returns the wall clock time of the crawl.
func (r *CrawlResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CountByState returns the number of pages per state.
func (r *CrawlResult) CountByState() map[PageState]int {
	counts := make(map[PageState]int)
	for _, p := range r.Pages {
		counts[p.State]++
	}
	return counts
}

// FailedPages returns the pages that failed or timed out.
func (r *CrawlResult) FailedPages() []Page {
	var out []Page
	for _, p := range r.Pages {
		if p.State == StateFailed || p.State == StateTimeout {
			out = append(out, p)
		}
	}
	return out
}
