package crawler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/sitecrawl/internal/discovery"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/frontier"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/urlnorm"
)

// maxSitemapFetches bounds how many sitemap documents, including nested
// index entries, are read per site.
const maxSitemapFetches = 10

// loadRobots fetches and parses the site's robots.txt. An unreachable file
// allows everything.
func (c *Crawler) loadRobots(ctx context.Context, f fetch.Fetcher, site *Site, logger *slog.Logger) *discovery.Robots {
	robotsURL, err := discovery.RobotsURL(site.Seed())
	if err != nil {
		return nil
	}

	fctx, cancel := context.WithTimeout(ctx, site.Config().PerPageTimeout)
	defer cancel()
	resp, err := f.Fetch(fctx, robotsURL)
	if resp == nil {
		logger.Warn("robots.txt unavailable", "url", robotsURL, "error", err)
		return nil
	}

	robots, err := discovery.ParseRobots(resp.StatusCode, resp.Body, site.Config().UserAgent)
	if err != nil {
		logger.Warn("robots.txt unreadable", "url", robotsURL, "error", err)
		return nil
	}
	return robots
}

// seedSitemaps admits the locations of the site's sitemaps with the seed as
// parent and returns how many pages were admitted.
func (c *Crawler) seedSitemaps(ctx context.Context, f fetch.Fetcher, site *Site, logger *slog.Logger) int {
	cfg := site.Config()
	filter := cfg.Filter()

	pending := site.robotsSitemaps()
	if len(pending) == 0 {
		loc, err := discovery.SitemapURL(site.Seed())
		if err != nil {
			return 0
		}
		pending = []string{loc}
	}

	visited := make(map[string]bool)
	admitted := 0
	for fetched := 0; len(pending) > 0 && fetched < maxSitemapFetches; {
		loc := pending[0]
		pending = pending[1:]
		if visited[loc] {
			continue
		}
		visited[loc] = true
		fetched++

		sm, err := c.fetchSitemap(ctx, f, loc, cfg.PerPageTimeout)
		if err != nil {
			logger.Debug("sitemap skipped", "url", loc, "error", err)
			continue
		}
		pending = append(pending, sm.Children...)

		for _, raw := range sm.Pages {
			norm, err := urlnorm.Normalize(raw, "")
			if err != nil {
				continue
			}
			if cfg.SameHostOnly && !urlnorm.SameHost(norm, site.Seed()) {
				continue
			}
			score, ok := filter.Score(urlnorm.Path(norm))
			if !ok || !site.robotsAllowed(norm) {
				continue
			}

			err = site.Queue().Admit(frontier.Candidate{
				URL:    norm,
				Parent: site.Seed(),
				Method: model.MethodSitemap,
				Score:  score,
			})
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, frontier.ErrQueueBoundExceeded), errors.Is(err, frontier.ErrQueueClosed):
				// Every sitemap page sits at depth 1, so a depth rejection
				// rejects the rest as well.
				return admitted
			}
		}
	}
	return admitted
}

func (c *Crawler) fetchSitemap(ctx context.Context, f fetch.Fetcher, loc string, timeout time.Duration) (discovery.Sitemap, error) {
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := f.Fetch(fctx, loc)
	if err != nil {
		return discovery.Sitemap{}, err
	}
	return discovery.ParseSitemap(resp.Body)
}
