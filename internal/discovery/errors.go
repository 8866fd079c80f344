package discovery

import "errors"

var (
	// ErrBadPattern is returned when an include or exclude pattern is not valid glob syntax.
	ErrBadPattern = errors.New("invalid glob pattern")

	// ErrInvalidSitemap is returned when a sitemap document cannot be parsed.
	ErrInvalidSitemap = errors.New("invalid sitemap")
)
