package crawler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/sitecrawl/internal/aggregate"
	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/discovery"
	"github.com/nao1215/sitecrawl/internal/frontier"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/progress"
	"github.com/nao1215/sitecrawl/internal/urlnorm"
)

// Site is the state of one crawl run.
type Site struct {
	seed     string
	cfg      config.Crawl
	tracker  *frontier.Tracker
	queue    *frontier.Queue
	reporter *progress.Reporter
	now      func() time.Time

	mu         sync.Mutex
	record     model.AggregatedRecord
	status     model.SiteStatus
	started    bool
	startedAt  time.Time
	finishedAt time.Time
	robots     *discovery.Robots
	err        error
}

type siteOptions struct {
	listeners []progress.Listener
	logger    *slog.Logger
	now       func() time.Time
}

// SiteOption configures a Site.
type SiteOption func(*siteOptions)

// WithListener registers a progress listener for discovery and failure events.
// Listeners run while the frontier is locked and must not call back into the Site.
func WithListener(l progress.Listener) SiteOption {
	return func(o *siteOptions) {
		if l != nil {
			o.listeners = append(o.listeners, l)
		}
	}
}

// WithSiteLogger sets the logger of the site's frontier.
func WithSiteLogger(l *slog.Logger) SiteOption {
	return func(o *siteOptions) {
		o.logger = l
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) SiteOption {
	return func(o *siteOptions) {
		o.now = now
	}
}

// NewSite validates cfg, normalizes seed and builds an idle site.
func NewSite(seed string, cfg config.Crawl, opts ...SiteOption) (*Site, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	norm, err := urlnorm.Normalize(seed, "")
	if err != nil {
		return nil, fmt.Errorf("seed %q: %w", seed, err)
	}

	o := siteOptions{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	reporterOpts := []progress.Option{
		progress.WithWindow(cfg.ETAWindow),
		progress.WithDefaultEstimate(cfg.DefaultPageEstimate),
	}
	for _, l := range o.listeners {
		reporterOpts = append(reporterOpts, progress.WithListener(l))
	}
	reporter := progress.NewReporter(cfg.Concurrency, reporterOpts...)

	tracker := frontier.NewTracker()
	queue := frontier.NewQueue(
		frontier.WithMaxPages(cfg.MaxPages),
		frontier.WithMaxDepth(cfg.MaxDepth),
		frontier.WithRateLimit(cfg.RateLimit),
		frontier.WithOrder(cfg.Order()),
		frontier.WithObserver(reporter),
		frontier.WithTracker(tracker),
		frontier.WithLogger(o.logger),
		frontier.WithClock(o.now),
	)

	return &Site{
		seed:     norm,
		cfg:      cfg,
		tracker:  tracker,
		queue:    queue,
		reporter: reporter,
		now:      o.now,
		record:   model.NewAggregatedRecord(),
		status:   model.SiteRunning,
	}, nil
}

// Seed returns the normalized seed URL.
func (s *Site) Seed() string {
	return s.seed
}

// Config returns the crawl configuration.
func (s *Site) Config() config.Crawl {
	return s.cfg
}

// Queue returns the site's frontier.
func (s *Site) Queue() *frontier.Queue {
	return s.queue
}

// Tracker returns the site's relationship tracker.
func (s *Site) Tracker() *frontier.Tracker {
	return s.tracker
}

// Progress returns the current progress snapshot.
func (s *Site) Progress() progress.Snapshot {
	return s.reporter.Snapshot()
}

// Status returns the site status.
func (s *Site) Status() model.SiteStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Record returns a copy of the record folded so far.
func (s *Site) Record() model.AggregatedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

// Result returns the site's current result. Pages still queued or
// processing are included with their current state.
func (s *Site) Result() model.CrawlResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultLocked()
}

func (s *Site) resultLocked() model.CrawlResult {
	r := model.CrawlResult{
		Seed:       s.seed,
		Status:     s.status,
		Record:     s.record.Clone(),
		Pages:      s.queue.Pages(),
		Edges:      s.tracker.Edges(),
		Orphans:    s.tracker.Orphans(),
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
	}
	if s.err != nil {
		r.Error = s.err.Error()
	}
	return r
}

// start marks the site as started. It reports false when it already was.
func (s *Site) start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return false
	}
	s.started = true
	s.startedAt = s.now()
	return true
}

func (s *Site) setRobots(r *discovery.Robots) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.robots = r
}

func (s *Site) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// fold merges a finalized page into the running record.
func (s *Site) fold(page model.Page) {
	var res model.Extraction
	if page.Extraction != nil {
		res = *page.Extraction
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = aggregate.Fold(s.record, page, res)
}

// finish computes the final record and status. cancelErr is the run
// context's error, if any.
func (s *Site) finish(cancelErr error) model.CrawlResult {
	s.queue.Close()
	pages := s.queue.Pages()

	s.mu.Lock()
	defer s.mu.Unlock()

	// The final record is folded in discovery order.
	s.record = aggregate.FoldAll(pages)
	s.finishedAt = s.now()

	switch {
	case cancelErr != nil:
		s.status = model.SiteCancelled
	case s.err != nil:
		s.status = model.SiteFailed
	case seedFailed(s.seed, pages) && s.record.Stats.PagesSucceeded == 0 && s.record.Stats.PagesTimedOut == 0:
		s.status = model.SiteFailed
		s.err = fmt.Errorf("seed failed: %s", pages[0].Error)
	default:
		s.status = model.SiteCompleted
	}
	return s.resultLocked()
}

func seedFailed(seed string, pages []model.Page) bool {
	return len(pages) > 0 && pages[0].URL == seed && pages[0].State == model.StateFailed
}

func (s *Site) robotsSitemaps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.robots.Sitemaps()
}

func (s *Site) robotsAllowed(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.robots.Allowed(url)
}
