package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is the number of sites processed at once when
// WithConcurrency is not given.
const DefaultBatchConcurrency = 4

// SiteFunc crawls one seed.
type SiteFunc[R any] func(ctx context.Context, seed string) (R, error)

// BatchResult is the outcome of one seed of a batch.
type BatchResult[R any] struct {
	Seed   string
	Result R
	Err    error
}

// batchSettings holds the options shared by every BatchProcessor instantiation.
type batchSettings struct {
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*batchSettings)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *batchSettings) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of sites processed at once.
func WithConcurrency(n int) BatchOption {
	return func(b *batchSettings) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// BatchProcessor runs a SiteFunc over several seeds with bounded concurrency.
// A failing site never stops the others.
type BatchProcessor[R any] struct {
	fn SiteFunc[R]
	batchSettings
}

// NewBatchProcessor creates a BatchProcessor that calls fn for each seed.
func NewBatchProcessor[R any](fn SiteFunc[R], opts ...BatchOption) *BatchProcessor[R] {
	settings := batchSettings{concurrency: DefaultBatchConcurrency}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.logger == nil {
		settings.logger = slog.Default()
	}
	return &BatchProcessor[R]{fn: fn, batchSettings: settings}
}

// ProcessBatchWithCallback processes seeds and calls callback as each one
// finishes. callback runs on the worker goroutine and must be safe for
// concurrent use when it touches shared state; distinct indexes never race.
// The error is non-nil only when ctx ended before every seed started; seeds
// that never started are reported with ctx's error.
func (bp *BatchProcessor[R]) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(result BatchResult[R], index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_sites", len(seeds),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	var cancelled error
	for i, seed := range seeds {
		if err := ctx.Err(); err != nil {
			cancelled = err
			callback(BatchResult[R]{Seed: seed, Err: err}, i)
			continue
		}
		g.Go(func() error {
			bp.logger.Info("crawling site",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)
			res, err := bp.fn(ctx, seed)
			if err != nil {
				bp.logger.Warn("site failed", "seed", seed, "error", err)
			}
			callback(BatchResult[R]{Seed: seed, Result: res, Err: err}, i)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	bp.logger.Info("batch processing complete",
		"total_sites", len(seeds),
		"elapsed", time.Since(startTime),
	)
	return cancelled
}
