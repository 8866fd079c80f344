package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/nao1215/sitecrawl/internal/model"
)

const (
	// DefaultUserAgent identifies the crawler.
	DefaultUserAgent = "sitecrawl/1.0 (+https://github.com/nao1215/sitecrawl)"

	// DefaultMaxBodySize is the body read limit.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// DefaultMaxRedirects is the redirect chain limit.
	DefaultMaxRedirects = 10
)

// HTTPFetcher fetches pages with net/http.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodySize  int64
	maxRedirects int
	headers      map[string]string
	cookie       string
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum number of body bytes read.
func WithMaxBodySize(size int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithMaxRedirects sets how many redirects are followed.
func WithMaxRedirects(n int) HTTPOption {
	return func(f *HTTPFetcher) {
		if n >= 0 {
			f.maxRedirects = n
		}
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.headers = headers
	}
}

// WithCookie sets the Cookie header, for sites that need a session.
func WithCookie(cookie string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.cookie = cookie
	}
}

// NewHTTPFetcher creates a fetcher on client. A nil client uses a client
// with a 60 second overall timeout; per-page deadlines come from the context.
func NewHTTPFetcher(client *http.Client, opts ...HTTPOption) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	f := &HTTPFetcher{
		client:       client,
		userAgent:    DefaultUserAgent,
		maxBodySize:  DefaultMaxBodySize,
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET and reads the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	// The client is copied so the redirect chain is per request.
	var redirects []string
	client := *f.client
	client.CheckRedirect = func(next *http.Request, via []*http.Request) error {
		if len(via) > f.maxRedirects {
			return fmt.Errorf("stopped after %d redirects", f.maxRedirects)
		}
		redirects = append(redirects, next.URL.String())
		return nil
	}

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %w", ErrFetchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	out := &Response{
		StatusCode:  resp.StatusCode,
		FinalURL:    resp.Request.URL.String(),
		Redirects:   redirects,
		ContentType: contentType,
		Header:      resp.Header,
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	out.Body = decode(body, contentType)
	if readErr != nil {
		if isTimeout(readErr) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.Partial = true
			return out, fmt.Errorf("%w: body read: %w", ErrFetchTimeout, readErr)
		}
		return out, fmt.Errorf("%w: body read: %w", ErrFetchFailed, readErr)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return out, fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode)
	}
	return out, nil
}

// decode converts an HTML body to UTF-8 using the declared or sniffed charset.
func decode(body []byte, contentType string) []byte {
	if len(body) == 0 || !model.IsHTMLContentType(contentType) {
		return body
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return decoded
}
