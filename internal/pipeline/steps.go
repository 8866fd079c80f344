package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/sitecrawl/internal/discovery"
	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/urlnorm"
)

// Redirector registers redirect targets as aliases. *frontier.Queue implements it.
type Redirector interface {
	Redirect(from, to string) bool
}

// LinkEnqueuer admits discovered links. *frontier.Queue implements it.
type LinkEnqueuer interface {
	EnqueueLinks(parent string, links []discovery.Link, method model.DiscoveryMethod) int
}

// Frontier is what the page pipeline needs from the queue.
type Frontier interface {
	Redirector
	LinkEnqueuer
}

// FetchStep fetches the page under a per-page deadline.
type FetchStep struct {
	fetcher fetch.Fetcher
	timeout time.Duration
}

// NewFetchStep creates a fetch step. A non-positive timeout means the
// caller's context is the only deadline.
func NewFetchStep(f fetch.Fetcher, timeout time.Duration) *FetchStep {
	return &FetchStep{fetcher: f, timeout: timeout}
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do fetches the page as discovered. A timeout that delivered content keeps
// the partial response so later steps still run on it.
func (s *FetchStep) Do(ctx context.Context, task *Task) error {
	fctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.fetcher.Fetch(fctx, task.RequestURL())
	if resp != nil {
		task.Outcome.StatusCode = resp.StatusCode
		task.Outcome.ContentType = resp.ContentType
		if len(resp.Body) > 0 {
			task.Outcome.ContentHash = model.HashContent(resp.Body)
		}
	}

	switch {
	case err == nil && resp == nil:
		task.Fail(fmt.Errorf("%w: empty response", fetch.ErrFetchFailed))
	case err == nil:
		task.Response = resp
	case errors.Is(err, fetch.ErrFetchTimeout) || errors.Is(err, context.DeadlineExceeded):
		if !errors.Is(err, fetch.ErrFetchTimeout) {
			err = fmt.Errorf("%w: %w", fetch.ErrFetchTimeout, err)
		}
		task.Outcome.State = model.StateTimeout
		task.Outcome.Err = err
		if resp != nil && len(resp.Body) > 0 {
			task.Response = resp
			return nil
		}
		task.Halt("timeout")
	default:
		if !errors.Is(err, fetch.ErrFetchFailed) {
			err = fmt.Errorf("%w: %w", fetch.ErrFetchFailed, err)
		}
		task.Fail(err)
	}
	return nil
}

// RedirectStep resolves the page's final URL against the frontier.
type RedirectStep struct {
	frontier Redirector
}

// NewRedirectStep creates a redirect step.
func NewRedirectStep(r Redirector) *RedirectStep {
	return &RedirectStep{frontier: r}
}

// Name returns the step name.
func (s *RedirectStep) Name() string {
	return "redirect"
}

// Do marks a page whose normalized final URL differs from its own URL as
// redirected. When the target was already seen the task halts, so the same
// content is not discovered or extracted twice.
func (s *RedirectStep) Do(_ context.Context, task *Task) error {
	if task.Response == nil || task.Response.FinalURL == "" {
		return nil
	}
	final, err := urlnorm.Normalize(task.Response.FinalURL, "")
	if err != nil || final == task.Page.URL {
		return nil
	}

	task.Outcome.CanonicalURL = final
	if task.Outcome.State == model.StateSuccess {
		task.Outcome.State = model.StateRedirected
	}
	if !s.frontier.Redirect(task.Page.URL, final) {
		task.Halt("redirect target already seen")
	}
	return nil
}

// DiscoverStep collects the page's links that pass the site's filters.
type DiscoverStep struct {
	filter discovery.Filter
	seed   string
	robots *discovery.Robots
}

// DiscoverOption configures a DiscoverStep.
type DiscoverOption func(*DiscoverStep)

// WithSameHost keeps only links on the host of seed.
func WithSameHost(seed string) DiscoverOption {
	return func(s *DiscoverStep) {
		s.seed = seed
	}
}

// WithRobots drops links the robots policy disallows.
func WithRobots(r *discovery.Robots) DiscoverOption {
	return func(s *DiscoverStep) {
		s.robots = r
	}
}

// NewDiscoverStep creates a discovery step.
func NewDiscoverStep(filter discovery.Filter, opts ...DiscoverOption) *DiscoverStep {
	s := &DiscoverStep{filter: filter}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return "discover"
}

// Do parses HTML content for links. Relative links resolve against the
// fetched final URL, or the requested URL when the fetcher did not report one.
func (s *DiscoverStep) Do(_ context.Context, task *Task) error {
	if !task.IsHTML() {
		return nil
	}
	base := task.Response.FinalURL
	if base == "" {
		base = task.RequestURL()
	}

	links := s.filter.Discover(task.Response.Body, base)
	kept := make([]discovery.Link, 0, len(links))
	for _, l := range links {
		if s.seed != "" && !urlnorm.SameHost(l.URL, s.seed) {
			continue
		}
		if !s.robots.Allowed(l.URL) {
			continue
		}
		kept = append(kept, l)
	}
	task.Links = kept
	return nil
}

// EnqueueStep offers the discovered links to the frontier with the page as parent.
type EnqueueStep struct {
	frontier LinkEnqueuer
}

// NewEnqueueStep creates an enqueue step.
func NewEnqueueStep(q LinkEnqueuer) *EnqueueStep {
	return &EnqueueStep{frontier: q}
}

// Name returns the step name.
func (s *EnqueueStep) Name() string {
	return "enqueue"
}

// Do admits task.Links. It runs while the page is still processing, so the
// frontier cannot look drained before the children are queued.
func (s *EnqueueStep) Do(_ context.Context, task *Task) error {
	if len(task.Links) == 0 {
		return nil
	}
	task.Admitted = s.frontier.EnqueueLinks(task.Page.URL, task.Links, model.MethodLink)
	return nil
}

// ExtractStep runs the extractor under its own deadline.
type ExtractStep struct {
	extractor extract.Extractor
	timeout   time.Duration
}

// NewExtractStep creates an extraction step.
func NewExtractStep(e extract.Extractor, timeout time.Duration) *ExtractStep {
	return &ExtractStep{extractor: e, timeout: timeout}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do extracts fields from HTML content. An extractor error is kept on the
// page next to its fetch outcome.
func (s *ExtractStep) Do(ctx context.Context, task *Task) error {
	if !task.IsHTML() || len(task.Body()) == 0 {
		return nil
	}
	ectx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	ex, err := s.extractor.Extract(ectx, task.Body(), task.Outcome.CanonicalURL, task.Site)
	if err != nil {
		if !errors.Is(err, extract.ErrExtractionFailed) {
			err = fmt.Errorf("%w: %w", extract.ErrExtractionFailed, err)
		}
		task.Outcome.ExtractErr = err
		return nil
	}
	task.Outcome.Extraction = &ex
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// PageDeps are the collaborators of the standard page pipeline.
type PageDeps struct {
	Fetcher   fetch.Fetcher
	Extractor extract.Extractor
	Frontier  Frontier
	Filter    discovery.Filter

	// SameHost restricts discovery to the host of this seed when set.
	SameHost string
	Robots   *discovery.Robots

	// Timeout bounds the fetch and, separately, the extraction.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewPagePipeline returns the fetch, redirect, discover, enqueue, extract pipeline.
func NewPagePipeline(d PageDeps) *Pipeline {
	var discoverOpts []DiscoverOption
	if d.SameHost != "" {
		discoverOpts = append(discoverOpts, WithSameHost(d.SameHost))
	}
	if d.Robots != nil {
		discoverOpts = append(discoverOpts, WithRobots(d.Robots))
	}

	p := New(WithLogger(d.Logger))
	p.AddSteps(
		NewFetchStep(d.Fetcher, d.Timeout),
		NewRedirectStep(d.Frontier),
		NewDiscoverStep(d.Filter, discoverOpts...),
		NewEnqueueStep(d.Frontier),
		NewExtractStep(d.Extractor, d.Timeout),
	)
	return p
}
