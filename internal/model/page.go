package model

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// NoDepth marks a page whose depth is unknown (an orphan).
const NoDepth = -1

// Page is one URL's record in a crawl, keyed by its normalized URL.
type Page struct {
	// URL is the normalized URL the page was admitted under.
	URL string `json:"url"`

	// CanonicalURL is the normalized final URL after redirects.
	// Equal to URL when the page did not redirect.
	CanonicalURL string `json:"canonical_url,omitempty"`

	// Depth is the link distance from the seed. NoDepth for orphans.
	Depth int `json:"depth"`

	// FetchURL is the URL as discovered when it differs from URL only in
	// spelling, for example by a trailing slash. Fetchers request it so that
	// relative links resolve as the site wrote them.
	FetchURL string `json:"fetch_url,omitempty"`

	// Parent is the URL of the page that first linked here. Empty for seeds.
	Parent string `json:"parent,omitempty"`

	// Method is how the page was discovered.
	Method DiscoveryMethod `json:"method"`

	// Score orders pages in priority queues. Higher is claimed earlier.
	Score int `json:"score,omitempty"`

	// Seq is the admission order within the run, starting at 1.
	// Aggregation uses it to break ties by discovery order.
	Seq int `json:"seq"`

	// State is the current lifecycle state.
	State PageState `json:"state"`

	QueuedAt   time.Time `json:"queued_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// ProcessingTime is FinishedAt minus StartedAt.
	ProcessingTime time.Duration `json:"processing_time"`

	// StatusCode is the HTTP status of the final response, 0 if none.
	StatusCode int `json:"status_code,omitempty"`

	// ContentType is the MIME type of the final response.
	ContentType string `json:"content_type,omitempty"`

	// ContentHash is the BLAKE2b-256 digest of the body.
	ContentHash string `json:"content_hash,omitempty"`

	// Error describes the fetch failure or timeout.
	Error string `json:"error,omitempty"`

	// ExtractionError describes an extractor failure. The page keeps its fetch state.
	ExtractionError string `json:"extraction_error,omitempty"`

	// Extraction is what the extractor returned. Nil when extraction did not run.
	Extraction *Extraction `json:"extraction,omitempty"`

	// ChildrenCount is the number of distinct pages this page linked to.
	ChildrenCount int `json:"children_count"`
}

// HashContent returns the hex BLAKE2b-256 digest of body, or "" when empty.
func HashContent(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// IsHTML reports whether the page's content type indicates HTML.
// An empty content type is treated as HTML.
func (p *Page) IsHTML() bool {
	return IsHTMLContentType(p.ContentType)
}

// IsHTMLContentType reports whether ct is an HTML media type or empty.
func IsHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" {
		return true
	}
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// IsOrphan reports whether the page has no known parent and is not a seed.
func (p *Page) IsOrphan() bool {
	return p.Depth == NoDepth
}

// Edge records that Child was discovered from Parent.
type Edge struct {
	Parent string          `json:"parent" db:"parent_url"`
	Child  string          `json:"child" db:"child_url"`
	Method DiscoveryMethod `json:"method" db:"method"`
}
