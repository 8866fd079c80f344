package frontier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/sitecrawl/internal/discovery"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/progress"
	"github.com/nao1215/sitecrawl/internal/urlnorm"
)

// Candidate is a URL offered to the queue.
type Candidate struct {
	URL    string
	Parent string
	Method model.DiscoveryMethod
	Score  int

	// Href is the target as discovered, before normalization. Optional.
	Href string
}

// Completion is the outcome of processing a claimed page.
type Completion struct {
	State        model.PageState
	StatusCode   int
	ContentType  string
	ContentHash  string
	CanonicalURL string
	Extraction   *model.Extraction
	Err          error
	ExtractErr   error

	// Children are offered to the queue before the page is finalized, so the
	// frontier never looks drained while they are pending.
	Children []Candidate
}

// Snapshot is a point-in-time count of pages by state.
type Snapshot struct {
	Queued     int
	Processing int

	// Completed counts success, redirected and timeout pages.
	Completed int
	Failed    int
	Total     int
}

// Queue is the page frontier of one site. It is safe for concurrent use.
type Queue struct {
	mu sync.Mutex

	maxPages int
	maxDepth int
	tracker  *Tracker
	observer progress.Observer
	limiter  *rate.Limiter
	logger   *slog.Logger
	now      func() time.Time

	pages   map[string]*model.Page
	hops    map[string]int
	aliases map[string]string
	admits  []string
	waiting pendingHeap

	processing int
	claimed    int
	seq        int

	closed   bool
	closedCh chan struct{}
	changed  chan struct{}

	// claimSlot serializes claimers so only one waits on the limiter at a time.
	claimSlot chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxPages sets the page bound. Values below 1 are ignored.
func WithMaxPages(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxPages = n
		}
	}
}

// WithMaxDepth sets the depth bound. 0 admits only seeds and orphans.
func WithMaxDepth(d int) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.maxDepth = d
		}
	}
}

// WithRateLimit sets the minimum interval between two claims. 0 disables it.
func WithRateLimit(interval time.Duration) Option {
	return func(q *Queue) {
		if interval <= 0 {
			q.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		q.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// SetRateLimit replaces the minimum interval between two claims, for example
// with a robots.txt crawl delay. 0 disables it.
func (q *Queue) SetRateLimit(interval time.Duration) {
	if interval <= 0 {
		q.limiter.SetLimit(rate.Inf)
		return
	}
	q.limiter.SetLimit(rate.Every(interval))
}

// WithOrder sets the claim order.
func WithOrder(o Order) Option {
	return func(q *Queue) {
		q.waiting.order = o
	}
}

// WithObserver sets the receiver of lifecycle events. Events are delivered
// while the queue lock is held; observers must not call back into the queue.
func WithObserver(o progress.Observer) Option {
	return func(q *Queue) {
		q.observer = o
	}
}

// WithTracker shares an existing tracker.
func WithTracker(t *Tracker) Option {
	return func(q *Queue) {
		if t != nil {
			q.tracker = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// NewQueue returns an empty queue. Defaults: 50 pages, depth 3, no rate limit.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		maxPages:  50,
		maxDepth:  3,
		tracker:   NewTracker(),
		limiter:   rate.NewLimiter(rate.Inf, 1),
		logger:    slog.Default(),
		now:       time.Now,
		pages:     make(map[string]*model.Page),
		hops:      make(map[string]int),
		aliases:   make(map[string]string),
		closedCh:  make(chan struct{}),
		changed:   make(chan struct{}),
		claimSlot: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Tracker returns the relationship tracker fed by this queue.
func (q *Queue) Tracker() *Tracker {
	return q.tracker
}

// Seed admits url as a depth 0 seed.
func (q *Queue) Seed(url string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.admit(Candidate{URL: url, Method: model.MethodManual}, true)
}

// Enqueue offers url with the given parent. It normalizes url and reports
// whether the page was admitted. Rejections are not errors.
func (q *Queue) Enqueue(url, parent string, method model.DiscoveryMethod) bool {
	norm, err := urlnorm.Normalize(url, parent)
	if err != nil {
		return false
	}
	return q.Admit(Candidate{URL: norm, Parent: parent, Method: method}) == nil
}

// Admit offers a normalized candidate. It returns ErrAlreadySeen,
// ErrQueueBoundExceeded, ErrDepthExceeded or ErrQueueClosed on rejection.
func (q *Queue) Admit(c Candidate) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.admit(c, false)
}

// EnqueueLinks offers discovered links of parent and returns how many were admitted.
func (q *Queue) EnqueueLinks(parent string, links []discovery.Link, method model.DiscoveryMethod) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.emit(progress.Discovered(parent, len(links)))
	admitted := 0
	for _, l := range links {
		if q.admit(Candidate{URL: l.URL, Href: l.Href, Parent: parent, Method: method, Score: l.Score}, false) == nil {
			admitted++
		}
	}
	return admitted
}

// admit is the single admission path. Caller holds mu.
func (q *Queue) admit(c Candidate, seed bool) error {
	if q.closed {
		return ErrQueueClosed
	}
	if c.Method == "" {
		c.Method = model.MethodManual
	}

	// Rejected edges stay in the graph. Only admission fixes parent and depth.
	if !seed && c.Parent != "" {
		q.tracker.RecordEdge(c.Parent, c.URL, c.Method)
	}

	if q.isSeen(c.URL) {
		return ErrAlreadySeen
	}
	if len(q.pages) >= q.maxPages {
		q.logger.Debug("page bound reached", "url", c.URL, "max_pages", q.maxPages)
		return ErrQueueBoundExceeded
	}

	hops := 0
	if !seed && c.Parent != "" {
		hops = q.hops[c.Parent] + 1
	}
	if hops > q.maxDepth {
		q.logger.Debug("depth bound reached", "url", c.URL, "depth", hops)
		return ErrDepthExceeded
	}

	switch {
	case seed:
		q.tracker.RecordSeed(c.URL)
	case c.Parent != "":
		q.tracker.RecordAdmitted(c.Parent, c.URL, c.Method)
	default:
		q.tracker.RecordOrphan(c.URL, c.Method)
	}
	rel, _ := q.tracker.Relationship(c.URL)

	q.seq++
	page := &model.Page{
		URL:      c.URL,
		Parent:   rel.Parent,
		Depth:    rel.Depth,
		Method:   rel.Method,
		Score:    c.Score,
		Seq:      q.seq,
		FetchURL: fetchURL(c),
		State:    model.StateQueued,
		QueuedAt: q.now(),
	}
	q.pages[c.URL] = page
	q.hops[c.URL] = hops
	q.admits = append(q.admits, c.URL)
	q.waiting.push(pending{url: c.URL, score: c.Score, seq: page.Seq})

	q.emit(progress.Queued(c.URL))
	q.broadcast()
	return nil
}

// fetchURL is the URL to request for c, empty when it is c.URL itself.
// Hrefs that normalize to another page are ignored.
func fetchURL(c Candidate) string {
	if c.Href == "" || c.Href == c.URL {
		return ""
	}
	if norm, err := urlnorm.Normalize(c.Href, ""); err != nil || norm != c.URL {
		return ""
	}
	return c.Href
}

func (q *Queue) isSeen(url string) bool {
	if _, ok := q.pages[url]; ok {
		return true
	}
	_, ok := q.aliases[url]
	return ok
}

// Claim blocks until a page is available and moves it to processing.
// It returns false once the frontier is drained (nothing queued and nothing
// processing), once max_pages pages were claimed, after Close, or when ctx
// is done. Consecutive claims are at least the rate limit interval apart.
func (q *Queue) Claim(ctx context.Context) (model.Page, bool) {
	select {
	case q.claimSlot <- struct{}{}:
	case <-ctx.Done():
		return model.Page{}, false
	case <-q.closedCh:
		return model.Page{}, false
	}
	defer func() { <-q.claimSlot }()

	for {
		q.mu.Lock()
		if q.closed || ctx.Err() != nil || q.claimed >= q.maxPages {
			q.mu.Unlock()
			return model.Page{}, false
		}
		if q.waiting.Len() == 0 {
			if q.processing == 0 {
				q.mu.Unlock()
				return model.Page{}, false
			}
			changed := q.changed
			q.mu.Unlock()

			select {
			case <-changed:
				continue
			case <-ctx.Done():
				return model.Page{}, false
			case <-q.closedCh:
				return model.Page{}, false
			}
		}
		q.mu.Unlock()

		// Only the claim slot holder pops, so the head survives the wait.
		if err := q.limiter.Wait(ctx); err != nil {
			return model.Page{}, false
		}

		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return model.Page{}, false
		}
		next := q.waiting.pop()
		page := q.pages[next.url]
		page.State = model.StateProcessing
		page.StartedAt = q.now()
		q.processing++
		q.claimed++
		q.emit(progress.Started(page.URL))
		q.broadcast()
		claimed := *page
		q.mu.Unlock()

		return claimed, true
	}
}

// Redirect registers to as an alias of the claimed page from. It returns
// false when to was already seen, in which case the caller must not process
// the content a second time.
func (q *Queue) Redirect(from, to string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if from == to {
		return true
	}
	if q.isSeen(to) {
		return false
	}
	q.aliases[to] = from
	q.tracker.RecordEdge(from, to, model.MethodRedirect)
	return true
}

// Complete moves a processing page to its terminal state and returns the
// finalized page.
func (q *Queue) Complete(url string, c Completion) (model.Page, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	page, ok := q.pages[url]
	if !ok {
		return model.Page{}, ErrUnknownPage
	}
	if !page.State.CanTransition(c.State) {
		return model.Page{}, ErrInvalidTransition
	}

	for _, child := range c.Children {
		if child.Parent == "" {
			child.Parent = url
		}
		_ = q.admit(child, false)
	}

	page.State = c.State
	page.FinishedAt = q.now()
	page.ProcessingTime = page.FinishedAt.Sub(page.StartedAt)
	page.StatusCode = c.StatusCode
	page.ContentType = c.ContentType
	page.ContentHash = c.ContentHash
	page.CanonicalURL = c.CanonicalURL
	if page.CanonicalURL == "" {
		page.CanonicalURL = url
	}
	page.Extraction = c.Extraction
	if c.Err != nil {
		page.Error = c.Err.Error()
	}
	if c.ExtractErr != nil {
		page.ExtractionError = c.ExtractErr.Error()
	}
	page.ChildrenCount = q.tracker.ChildrenCount(url)
	q.processing--

	ev := progress.Completed(url, page.State, page.ProcessingTime)
	ev.Err = page.Error
	q.emit(ev)
	q.broadcast()
	return *page, nil
}

// Close stops all claims. Pages still queued stay queued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
	q.broadcast()
}

// Wait blocks until nothing is processing or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.processing == 0 {
			q.mu.Unlock()
			return nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Snapshot returns consistent counts.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Snapshot{Total: len(q.pages), Processing: q.processing}
	for _, p := range q.pages {
		switch p.State {
		case model.StateQueued:
			s.Queued++
		case model.StateFailed:
			s.Failed++
		case model.StateSuccess, model.StateTimeout, model.StateRedirected:
			s.Completed++
		}
	}
	return s
}

// Page returns a copy of the page admitted under url.
func (q *Queue) Page(url string) (model.Page, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.pages[url]
	if !ok {
		return model.Page{}, false
	}
	out := *p
	out.ChildrenCount = q.tracker.ChildrenCount(url)
	return out, true
}

// Pages returns copies of all pages in admission order.
func (q *Queue) Pages() []model.Page {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.Page, 0, len(q.admits))
	for _, url := range q.admits {
		p := *q.pages[url]
		p.ChildrenCount = q.tracker.ChildrenCount(url)
		out = append(out, p)
	}
	return out
}

// emit forwards ev to the observer. Caller holds mu.
func (q *Queue) emit(ev progress.Event) {
	if q.observer != nil {
		q.observer.Update(ev)
	}
}

// broadcast wakes every goroutine waiting on a state change. Caller holds mu.
func (q *Queue) broadcast() {
	close(q.changed)
	q.changed = make(chan struct{})
}
