package run

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/progress"
)

// Store persists finished runs.
type Store interface {
	SaveRun(ctx context.Context, result *model.CrawlResult) error
}

// Progress is the live view of one run.
type Progress struct {
	ID        string           `json:"id"`
	Seed      string           `json:"seed"`
	Status    model.SiteStatus `json:"status"`
	StartedAt time.Time        `json:"started_at"`
	progress.Snapshot
}

// Manager starts and tracks crawl runs.
type Manager struct {
	crawler *crawler.Crawler
	store   Store
	logger  *slog.Logger
	newID   func() string

	mu   sync.RWMutex
	runs map[string]*entry
}

type entry struct {
	id        string
	site      *crawler.Site
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	// Set before done is closed.
	result model.CrawlResult
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore saves every finished run to s.
func WithStore(s Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithIDGenerator replaces the uuid generator, for tests.
func WithIDGenerator(f func() string) Option {
	return func(m *Manager) {
		m.newID = f
	}
}

// NewManager creates a Manager that runs sites with c.
func NewManager(c *crawler.Crawler, opts ...Option) *Manager {
	m := &Manager{
		crawler: c,
		logger:  slog.Default(),
		newID:   uuid.NewString,
		runs:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartCrawl validates cfg and seed, then crawls in the background. The run
// lives until ctx is done or Cancel is called. Only validation errors are
// returned; everything else ends up in the run's result.
func (m *Manager) StartCrawl(ctx context.Context, seed string, cfg config.Crawl, opts ...crawler.SiteOption) (string, error) {
	id := m.newID()
	logger := m.logger.With("run", id)

	opts = append([]crawler.SiteOption{crawler.WithSiteLogger(logger)}, opts...)
	site, err := crawler.NewSite(seed, cfg, opts...)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(ctx)
	e := &entry{
		id:        id,
		site:      site,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.runs[id] = e
	m.mu.Unlock()

	go m.execute(runCtx, e, logger)
	return id, nil
}

func (m *Manager) execute(ctx context.Context, e *entry, logger *slog.Logger) {
	defer close(e.done)
	defer e.cancel()

	result, err := m.crawler.Run(ctx, e.site)
	if err != nil {
		logger.Error("run failed to start", "error", err)
		result = e.site.Result()
	}
	result.ID = e.id

	if m.store != nil {
		if err := m.store.SaveRun(context.WithoutCancel(ctx), &result); err != nil {
			logger.Error("save run", "error", err)
		}
	}
	e.result = result
}

func (m *Manager) get(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return e, nil
}

func (e *entry) finished() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *entry) progress() Progress {
	status := e.site.Status()
	if e.finished() {
		status = e.result.Status
	}
	return Progress{
		ID:        e.id,
		Seed:      e.site.Seed(),
		Status:    status,
		StartedAt: e.startedAt,
		Snapshot:  e.site.Progress(),
	}
}

// GetProgress returns the status and counters of a run.
func (m *Manager) GetProgress(id string) (Progress, error) {
	e, err := m.get(id)
	if err != nil {
		return Progress{}, err
	}
	return e.progress(), nil
}

// GetResult returns the final result of a finished run.
func (m *Manager) GetResult(id string) (model.CrawlResult, error) {
	e, err := m.get(id)
	if err != nil {
		return model.CrawlResult{}, err
	}
	if !e.finished() {
		return model.CrawlResult{}, ErrRunNotComplete
	}
	return e.result, nil
}

// Cancel stops a run from claiming new pages. In-flight pages still finish.
// Cancelling a finished run is a no-op.
func (m *Manager) Cancel(id string) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}
	e.cancel()
	return nil
}

// Wait blocks until the run finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release forgets a finished run.
func (m *Manager) Release(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	if !e.finished() {
		return ErrRunNotComplete
	}
	delete(m.runs, id)
	return nil
}
