package crawler

import "errors"

var (
	// ErrSiteStarted is returned when Run is called twice for the same Site.
	ErrSiteStarted = errors.New("site crawl already started")

	// ErrSeedDisallowed is recorded when robots.txt disallows the seed URL.
	ErrSeedDisallowed = errors.New("seed disallowed by robots.txt")
)
