package crawler

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/discovery"
	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/pipeline"
	"github.com/nao1215/sitecrawl/internal/urlnorm"
)

// Crawler runs sites. One Crawler may run many sites concurrently; all
// per-run state lives in the Site.
type Crawler struct {
	fetcher    fetch.Fetcher
	auxFetcher fetch.Fetcher
	extractor  extract.Extractor
	client     *http.Client
	logger     *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithFetcher sets the page fetcher. Without it every site gets an
// HTTPFetcher built from its own user agent, headers and cookie.
func WithFetcher(f fetch.Fetcher) Option {
	return func(c *Crawler) {
		c.fetcher = f
	}
}

// WithAuxFetcher sets the fetcher for robots.txt and sitemaps. It defaults
// to the page fetcher.
func WithAuxFetcher(f fetch.Fetcher) Option {
	return func(c *Crawler) {
		c.auxFetcher = f
	}
}

// WithExtractor sets the extractor. Defaults to extract.NewDefaultExtractor.
func WithExtractor(e extract.Extractor) Option {
	return func(c *Crawler) {
		if e != nil {
			c.extractor = e
		}
	}
}

// WithHTTPClient sets the client of the default HTTPFetcher.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Crawler) {
		c.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Crawler.
func New(opts ...Option) *Crawler {
	c := &Crawler{
		extractor: extract.NewDefaultExtractor(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run crawls site and blocks until it finishes. A cancelled ctx stops new
// claims; Run still waits for in-flight pages. The error is non-nil only
// when site was already started.
func (c *Crawler) Run(ctx context.Context, site *Site) (model.CrawlResult, error) {
	if !site.start() {
		return model.CrawlResult{}, ErrSiteStarted
	}
	cfg := site.Config()
	logger := c.logger.With("seed", site.Seed())
	logger.Info("crawl started",
		"max_pages", cfg.MaxPages,
		"max_depth", cfg.MaxDepth,
		"concurrency", cfg.Concurrency,
	)

	fetcher := c.fetcherFor(cfg)
	aux := c.auxFetcher
	if aux == nil {
		aux = fetcher
	}

	var robots *discovery.Robots
	if cfg.RespectRobots {
		robots = c.loadRobots(ctx, aux, site, logger)
		site.setRobots(robots)
		if !robots.Allowed(site.Seed()) {
			site.fail(ErrSeedDisallowed)
			logger.Warn("seed disallowed by robots.txt")
			return c.finish(ctx, site, logger), nil
		}
		if delay := robots.CrawlDelay(); delay > cfg.RateLimit {
			logger.Debug("using robots.txt crawl delay", "delay", delay)
			site.Queue().SetRateLimit(delay)
		}
	}

	if err := site.Queue().Seed(site.Seed()); err != nil {
		site.fail(err)
		return c.finish(ctx, site, logger), nil
	}
	if cfg.UseSitemap {
		n := c.seedSitemaps(ctx, aux, site, logger)
		logger.Debug("sitemap pages admitted", "count", n)
	}

	sameHost := ""
	if cfg.SameHostOnly {
		sameHost = site.Seed()
	}
	pl := pipeline.NewPagePipeline(pipeline.PageDeps{
		Fetcher:   fetcher,
		Extractor: c.extractor,
		Frontier:  site.Queue(),
		Filter:    cfg.Filter(),
		SameHost:  sameHost,
		Robots:    robots,
		Timeout:   cfg.PerPageTimeout,
		Logger:    logger,
	})
	logger.Debug("page pipeline", "steps", pl.StepNames())
	siteCtx := extract.SiteContext{Seed: site.Seed(), Host: urlnorm.Host(site.Seed())}

	var g errgroup.Group
	for range cfg.Concurrency {
		g.Go(func() error {
			for {
				page, ok := site.Queue().Claim(ctx)
				if !ok {
					return nil
				}
				c.process(ctx, site, pl, siteCtx, page, logger)
			}
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	return c.finish(ctx, site, logger), nil
}

// process runs one claimed page to its terminal state. The page's steps run
// detached from ctx so a cancelled run still completes it.
func (c *Crawler) process(ctx context.Context, site *Site, pl *pipeline.Pipeline, siteCtx extract.SiteContext, page model.Page, logger *slog.Logger) {
	pctx := context.WithoutCancel(ctx)

	task := pipeline.NewTask(page, siteCtx)
	if err := pl.Execute(pctx, task); err != nil {
		task.Fail(err)
	}

	final, err := site.Queue().Complete(page.URL, task.Outcome)
	if err != nil {
		logger.Error("complete page", "url", page.URL, "error", err)
		return
	}
	site.fold(final)

	attrs := []any{
		"url", final.URL,
		"state", final.State.String(),
		"depth", final.Depth,
		"elapsed", final.ProcessingTime,
		"links", len(task.Links),
		"admitted", task.Admitted,
	}
	if final.Error != "" {
		attrs = append(attrs, "error", final.Error)
	}
	if final.ExtractionError != "" {
		attrs = append(attrs, "extraction_error", final.ExtractionError)
	}
	logger.Debug("page finished", attrs...)
}

func (c *Crawler) finish(ctx context.Context, site *Site, logger *slog.Logger) model.CrawlResult {
	result := site.finish(ctx.Err())
	logger.Info("crawl finished",
		"status", string(result.Status),
		"pages", len(result.Pages),
		"succeeded", result.Record.Stats.PagesSucceeded,
		"failed", result.Record.Stats.PagesFailed,
		"timed_out", result.Record.Stats.PagesTimedOut,
		"elapsed", result.Duration(),
	)
	return result
}

func (c *Crawler) fetcherFor(cfg config.Crawl) fetch.Fetcher {
	if c.fetcher != nil {
		return c.fetcher
	}
	opts := []fetch.HTTPOption{
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithHeaders(cfg.Headers),
	}
	if cfg.Cookie != "" {
		opts = append(opts, fetch.WithCookie(cfg.Cookie))
	}
	return fetch.NewHTTPFetcher(c.client, opts...)
}
