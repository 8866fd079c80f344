package extract

import (
	"context"

	"github.com/nao1215/sitecrawl/internal/model"
)

// SiteContext describes the site a page belongs to.
type SiteContext struct {
	// Seed is the normalized seed URL of the crawl.
	Seed string `json:"seed"`

	// Host is the seed's host name.
	Host string `json:"host"`
}

// Extractor produces structured fields for one page.
type Extractor interface {
	Extract(ctx context.Context, body []byte, pageURL string, site SiteContext) (model.Extraction, error)
}

// Func adapts a function to the Extractor interface.
type Func func(ctx context.Context, body []byte, pageURL string, site SiteContext) (model.Extraction, error)

// Extract calls f.
func (f Func) Extract(ctx context.Context, body []byte, pageURL string, site SiteContext) (model.Extraction, error) {
	return f(ctx, body, pageURL, site)
}
