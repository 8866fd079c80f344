package fetch

import (
	"context"
	"net/http"
)

// Fetcher retrieves one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// Response is the content of a fetched page.
type Response struct {
	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// FinalURL is the URL the content was served from after redirects.
	// Fetchers should always set it; when empty, the requested URL is
	// used as the base for relative links.
	FinalURL string

	// Redirects lists each URL that was redirected to, in order.
	Redirects []string

	// Body is the response body decoded to UTF-8 for HTML content.
	Body []byte

	ContentType string
	Header      http.Header

	// Partial is true when Body was cut short by the deadline.
	Partial bool
}

// Redirected reports whether the response went through at least one redirect.
func (r *Response) Redirected() bool {
	return r != nil && len(r.Redirects) > 0
}

// Func adapts a function to the Fetcher interface.
type Func func(ctx context.Context, url string) (*Response, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, url string) (*Response, error) {
	return f(ctx, url)
}
