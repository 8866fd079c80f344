package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// DefaultRemoteMaxHTML is the largest page body sent to a remote extractor.
const DefaultRemoteMaxHTML = 512 * 1024

// RemoteExtractor delegates extraction to an HTTP endpoint.
//
// Request body:
//
//	{"url": "...", "site": {"seed": "...", "host": "..."}, "html": "..."}
//
// Response body:
//
//	{"fields": {"name": {"value": "...", "confidence": 0.9},
//	            "menu": {"values": ["..."]}},
//	 "confidence": 0.5}
type RemoteExtractor struct {
	endpoint string
	client   *http.Client
	maxHTML  int
}

// RemoteOption configures a RemoteExtractor.
type RemoteOption func(*RemoteExtractor)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) RemoteOption {
	return func(r *RemoteExtractor) {
		if c != nil {
			r.client = c
		}
	}
}

// WithMaxHTML limits how many body bytes are sent.
func WithMaxHTML(n int) RemoteOption {
	return func(r *RemoteExtractor) {
		if n > 0 {
			r.maxHTML = n
		}
	}
}

// NewRemoteExtractor creates an extractor posting to endpoint.
func NewRemoteExtractor(endpoint string, opts ...RemoteOption) *RemoteExtractor {
	r := &RemoteExtractor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
		maxHTML:  DefaultRemoteMaxHTML,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type remoteRequest struct {
	URL  string      `json:"url"`
	Site SiteContext `json:"site"`
	HTML string      `json:"html"`
}

// Extract implements Extractor.
func (r *RemoteExtractor) Extract(ctx context.Context, body []byte, pageURL string, site SiteContext) (model.Extraction, error) {
	if len(body) > r.maxHTML {
		body = body[:r.maxHTML]
	}
	payload, err := json.Marshal(remoteRequest{URL: pageURL, Site: site, HTML: string(body)})
	if err != nil {
		return model.Extraction{}, fmt.Errorf("%w: encode request: %w", ErrExtractionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return model.Extraction{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return model.Extraction{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Extraction{}, fmt.Errorf("%w: endpoint returned %d: %s", ErrExtractionFailed, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out model.Extraction
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Extraction{}, fmt.Errorf("%w: decode response: %w", ErrExtractionFailed, err)
	}
	if out.Fields == nil {
		out.Fields = make(map[string]model.Field)
	}
	return out, nil
}
