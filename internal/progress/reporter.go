package progress

import (
	"sync"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

const (
	// DefaultWindow is the number of recent processing times in the moving average.
	DefaultWindow = 20

	// DefaultPageEstimate is the assumed processing time before any page completes.
	DefaultPageEstimate = 2 * time.Second
)

// Snapshot is a consistent view of crawl progress.
type Snapshot struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`

	// Completed counts pages that finished without failing:
	// success, redirected and timeout. TimedOut and Redirected break it down.
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	TimedOut   int `json:"timed_out"`
	Redirected int `json:"redirected"`

	// Discovered is the running total of links found on processed pages.
	Discovered int `json:"discovered"`

	// Remaining is Queued plus Processing.
	Remaining int `json:"remaining"`

	// Total is every page admitted so far.
	Total int `json:"total"`

	EstimatedTimeRemaining time.Duration `json:"estimated_time_remaining"`
}

// Done returns the number of pages in a terminal state.
func (s Snapshot) Done() int {
	return s.Completed + s.Failed
}

// Listener is notified of discoveries and failures.
type Listener func(Event)

// Reporter aggregates events into counters.
type Reporter struct {
	mu sync.Mutex

	queued     int
	processing int
	completed  int
	failed     int
	timedOut   int
	redirected int
	discovered int
	total      int

	// durations is a ring buffer of the last window processing times.
	durations []time.Duration
	next      int
	filled    bool

	concurrency int
	fallback    time.Duration

	listeners []Listener
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithWindow sets the moving average window size.
func WithWindow(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.durations = make([]time.Duration, n)
		}
	}
}

// WithDefaultEstimate sets the per-page estimate used before the first completion.
func WithDefaultEstimate(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.fallback = d
		}
	}
}

// WithListener registers a listener for PagesDiscovered events and failed or
// timed out completions.
func WithListener(l Listener) Option {
	return func(r *Reporter) {
		if l != nil {
			r.listeners = append(r.listeners, l)
		}
	}
}

// NewReporter creates a reporter for a crawl running concurrency workers.
func NewReporter(concurrency int, opts ...Option) *Reporter {
	if concurrency < 1 {
		concurrency = 1
	}
	r := &Reporter{
		durations:   make([]time.Duration, DefaultWindow),
		concurrency: concurrency,
		fallback:    DefaultPageEstimate,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Update applies one event.
func (r *Reporter) Update(ev Event) {
	notify := false

	r.mu.Lock()
	switch ev.Kind {
	case PageQueued:
		r.queued++
		r.total++
	case PageStarted:
		if r.queued > 0 {
			r.queued--
		}
		r.processing++
	case PageCompleted:
		if r.processing > 0 {
			r.processing--
		}
		r.record(ev.Duration)
		switch ev.Outcome {
		case model.StateFailed:
			r.failed++
			notify = true
		case model.StateTimeout:
			r.completed++
			r.timedOut++
			notify = true
		case model.StateRedirected:
			r.completed++
			r.redirected++
		default:
			r.completed++
		}
	case PagesDiscovered:
		r.discovered += ev.Count
		notify = ev.Count > 0
	}
	listeners := r.listeners
	r.mu.Unlock()

	if notify {
		for _, l := range listeners {
			l(ev)
		}
	}
}

// record appends d to the ring buffer. Caller holds mu.
func (r *Reporter) record(d time.Duration) {
	r.durations[r.next] = d
	r.next++
	if r.next == len(r.durations) {
		r.next = 0
		r.filled = true
	}
}

// Snapshot returns the current progress.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	remaining := r.queued + r.processing
	return Snapshot{
		Queued:                 r.queued,
		Processing:             r.processing,
		Completed:              r.completed,
		Failed:                 r.failed,
		TimedOut:               r.timedOut,
		Redirected:             r.redirected,
		Discovered:             r.discovered,
		Remaining:              remaining,
		Total:                  r.total,
		EstimatedTimeRemaining: r.estimate(remaining),
	}
}

// estimate computes remaining / concurrency * average. Caller holds mu.
func (r *Reporter) estimate(remaining int) time.Duration {
	if remaining == 0 {
		return 0
	}
	return r.average() * time.Duration(remaining) / time.Duration(r.concurrency)
}

// average returns the mean of the recorded durations, or the fallback.
func (r *Reporter) average() time.Duration {
	n := r.next
	if r.filled {
		n = len(r.durations)
	}
	if n == 0 {
		return r.fallback
	}
	var sum time.Duration
	for i := 0; i < n; i++ {
		sum += r.durations[i]
	}
	return sum / time.Duration(n)
}
