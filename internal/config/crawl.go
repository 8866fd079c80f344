package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/sitecrawl/internal/discovery"
	"github.com/nao1215/sitecrawl/internal/frontier"
)

// Default crawl values.
const (
	// DefaultMaxPages bounds a run to a typical small business site.
	DefaultMaxPages = 50

	// DefaultMaxDepth reaches pages linked from the home page's sub pages.
	DefaultMaxDepth = 3

	// DefaultConcurrency is the number of pages processed in parallel per site.
	DefaultConcurrency = 4

	// DefaultRateLimit is the minimum interval between two dispatches on a site.
	DefaultRateLimit = 500 * time.Millisecond

	// DefaultPerPageTimeout bounds the fetch and, separately, the extraction of one page.
	DefaultPerPageTimeout = 30 * time.Second

	// DefaultETAWindow is the number of recent pages in the ETA moving average.
	DefaultETAWindow = 20

	// DefaultPageEstimate is the assumed page time before any page completes.
	DefaultPageEstimate = 2 * time.Second

	// DefaultUserAgent identifies sitecrawl in HTTP requests.
	DefaultUserAgent = "sitecrawl/1.0 (+https://github.com/nao1215/sitecrawl)"

	// DefaultMaxBodySize limits the response body size to read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Crawl holds the configuration of one crawl run.
type Crawl struct {
	// MaxPages is the maximum number of pages admitted to the frontier.
	MaxPages int

	// MaxDepth is the maximum link distance from the seed.
	// 0 means only the seed page is fetched.
	MaxDepth int

	// Concurrency is the number of pages processed in parallel.
	Concurrency int

	// RateLimit is the minimum interval between two page dispatches on the
	// site, independent of Concurrency. 0 disables it.
	RateLimit time.Duration

	// PerPageTimeout is the deadline for fetching one page. Extraction gets
	// its own deadline of the same length.
	PerPageTimeout time.Duration

	// Include are glob patterns a discovered URL path must match (any of).
	// Empty admits every path.
	Include []string

	// Exclude are glob patterns that reject a discovered URL path.
	// Exclude takes precedence over Include.
	Exclude []string

	// SameHostOnly restricts discovery to the seed's host.
	SameHostOnly bool

	// RespectRobots honours the site's robots.txt.
	RespectRobots bool

	// UseSitemap enqueues the locations listed in the site's sitemap.xml.
	UseSitemap bool

	// QueueOrder is "fifo" or "priority". Priority claims pages matching
	// earlier include patterns first.
	QueueOrder string

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// Headers are extra request headers.
	Headers map[string]string

	// Cookie is sent with every request when set.
	Cookie string

	// ETAWindow is the number of recent pages in the ETA moving average.
	ETAWindow int

	// DefaultPageEstimate is the assumed page time before any page completes.
	DefaultPageEstimate time.Duration
}

// NewCrawl returns a Crawl with default values.
func NewCrawl() Crawl {
	return Crawl{
		MaxPages:            DefaultMaxPages,
		MaxDepth:            DefaultMaxDepth,
		Concurrency:         DefaultConcurrency,
		RateLimit:           DefaultRateLimit,
		PerPageTimeout:      DefaultPerPageTimeout,
		SameHostOnly:        true,
		QueueOrder:          frontier.OrderFIFO.String(),
		UserAgent:           DefaultUserAgent,
		MaxBodySize:         DefaultMaxBodySize,
		ETAWindow:           DefaultETAWindow,
		DefaultPageEstimate: DefaultPageEstimate,
	}
}

// SinglePage returns a copy of c that fetches only the seed.
func (c Crawl) SinglePage() Crawl {
	c.MaxPages = 1
	c.MaxDepth = 0
	c.UseSitemap = false
	return c
}

// Order returns the parsed queue order.
func (c Crawl) Order() frontier.Order {
	o, err := frontier.ParseOrder(c.QueueOrder)
	if err != nil {
		return frontier.OrderFIFO
	}
	return o
}

// Filter returns the compiled include and exclude patterns.
func (c Crawl) Filter() discovery.Filter {
	return discovery.NewFilter(c.Include, c.Exclude)
}

// Validate checks the crawl bounds and returns the first problem found.
func (c Crawl) Validate() error {
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.PerPageTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if _, err := frontier.ParseOrder(c.QueueOrder); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidQueueOrder, c.QueueOrder)
	}
	if err := c.Filter().Validate(); err != nil {
		if errors.Is(err, discovery.ErrBadPattern) {
			return fmt.Errorf("%w: %w", ErrInvalidPattern, err)
		}
		return err
	}
	return nil
}
