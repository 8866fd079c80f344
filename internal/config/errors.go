package config

import "errors"

// Configuration validation errors.
// These errors are returned by Crawl.Validate and Config.Validate so callers
// can use errors.Is for programmatic handling.
var (
	// ErrNoTarget is returned when no seed URL is specified.
	ErrNoTarget = errors.New("no target specified: provide at least one URL")

	// ErrInvalidMaxPages is returned when max pages is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxDepth is returned when max depth is negative.
	// Use 0 to fetch only the seed page.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidConcurrency is returned when the concurrency limit is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidRateLimit is returned when the rate limit interval is negative.
	// Use 0 to dispatch pages without a minimum interval.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidTimeout is returned when the per-page timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidPattern is returned when an include or exclude pattern is not valid glob syntax.
	ErrInvalidPattern = errors.New("invalid include or exclude pattern")

	// ErrInvalidQueueOrder is returned for a queue order other than fifo or priority.
	ErrInvalidQueueOrder = errors.New("invalid queue order: must be fifo or priority")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidRenderer is returned for a renderer other than http or browser.
	ErrInvalidRenderer = errors.New("invalid renderer: must be http or browser")

	// ErrConflictingReportFormats is returned when more than one of --json,
	// --markdown and --xlsx is specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: choose one of --json, --markdown, --xlsx")

	// ErrXLSXNeedsFile is returned when an XLSX report has no output file.
	ErrXLSXNeedsFile = errors.New("xlsx report requires --output")

	// ErrInvalidSkipRecent is returned when --skip-recent is negative.
	ErrInvalidSkipRecent = errors.New("invalid skip recent: must be non-negative")
)
