package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/urlnorm"
)

// gatedFetcher serves a two page site. Fetches block until gate is closed
// when gate is set.
type gatedFetcher struct {
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (f *gatedFetcher) Fetch(ctx context.Context, url string) (*fetch.Response, error) {
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.gate != nil {
		<-f.gate
	}
	body := `<title>Cafe Rouge</title><a href="/menu">Menu</a>`
	if urlnorm.Path(url) == "/menu" {
		body = `<h1>Menu</h1>`
	}
	return &fetch.Response{
		StatusCode:  http.StatusOK,
		FinalURL:    url,
		Body:        []byte(body),
		ContentType: "text/html",
	}, nil
}

type memoryStore struct {
	mu    sync.Mutex
	saved []model.CrawlResult
	err   error
}

func (s *memoryStore) SaveRun(_ context.Context, r *model.CrawlResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, *r)
	return s.err
}

func fastCrawl() config.Crawl {
	c := config.NewCrawl()
	c.RateLimit = 0
	c.Concurrency = 1
	return c
}

func newTestManager(f fetch.Fetcher, opts ...Option) *Manager {
	c := crawler.New(crawler.WithFetcher(f), crawler.WithExtractor(&extract.DefaultExtractor{}))
	return NewManager(c, opts...)
}

func waitFor(t *testing.T, m *Manager, id string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx, id); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestManagerStartCrawl(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	m := newTestManager(&gatedFetcher{}, WithStore(store))

	id, err := m.StartCrawl(context.Background(), "https://cafe.example/", fastCrawl())
	if err != nil {
		t.Fatalf("StartCrawl() error = %v", err)
	}
	waitFor(t, m, id)

	result, err := m.GetResult(id)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if result.ID != id || result.Status != model.SiteCompleted {
		t.Errorf("unexpected result id=%q status=%q", result.ID, result.Status)
	}
	if len(result.Pages) != 2 || len(result.Edges) != 1 {
		t.Errorf("expected 2 pages and 1 edge, got %d and %d", len(result.Pages), len(result.Edges))
	}
	if result.Record.Value(extract.FieldTitle) != "Cafe Rouge" {
		t.Errorf("title = %q", result.Record.Value(extract.FieldTitle))
	}

	p, err := m.GetProgress(id)
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if p.Status != model.SiteCompleted || p.Completed != 2 || p.Remaining != 0 {
		t.Errorf("unexpected progress %+v", p)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saved) != 1 || store.saved[0].ID != id {
		t.Errorf("expected the run to be saved once, got %d", len(store.saved))
	}
}

func TestManagerValidation(t *testing.T) {
	t.Parallel()

	m := newTestManager(&gatedFetcher{})

	if _, err := m.StartCrawl(context.Background(), "ftp://cafe.example/", fastCrawl()); !errors.Is(err, urlnorm.ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
	cfg := fastCrawl()
	cfg.Concurrency = 0
	if _, err := m.StartCrawl(context.Background(), "https://cafe.example/", cfg); !errors.Is(err, config.ErrInvalidConcurrency) {
		t.Errorf("expected ErrInvalidConcurrency, got %v", err)
	}
	if len(m.runs) != 0 {
		t.Error("rejected runs should not be registered")
	}
}

func TestManagerUnknownRun(t *testing.T) {
	t.Parallel()

	m := newTestManager(&gatedFetcher{})

	if _, err := m.GetProgress("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetProgress() error = %v", err)
	}
	if _, err := m.GetResult("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetResult() error = %v", err)
	}
	if err := m.Cancel("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Cancel() error = %v", err)
	}
	if err := m.Wait(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Wait() error = %v", err)
	}
	if err := m.Release("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Release() error = %v", err)
	}
}

func TestManagerCancel(t *testing.T) {
	t.Parallel()

	f := &gatedFetcher{gate: make(chan struct{}), started: make(chan struct{})}
	m := newTestManager(f)

	id, err := m.StartCrawl(context.Background(), "https://cafe.example/", fastCrawl())
	if err != nil {
		t.Fatalf("StartCrawl() error = %v", err)
	}
	<-f.started

	if _, err := m.GetResult(id); !errors.Is(err, ErrRunNotComplete) {
		t.Errorf("expected ErrRunNotComplete, got %v", err)
	}
	if err := m.Release(id); !errors.Is(err, ErrRunNotComplete) {
		t.Errorf("expected ErrRunNotComplete from Release, got %v", err)
	}
	p, err := m.GetProgress(id)
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if p.Status != model.SiteRunning || p.Processing != 1 {
		t.Errorf("unexpected running progress %+v", p)
	}

	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	close(f.gate)
	waitFor(t, m, id)

	result, err := m.GetResult(id)
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if result.Status != model.SiteCancelled {
		t.Errorf("expected cancelled, got %q", result.Status)
	}
	if result.Pages[0].State != model.StateSuccess {
		t.Errorf("in-flight seed should complete, got %v", result.Pages[0].State)
	}

	if err := m.Release(id); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := m.GetResult(id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("released run should be gone, got %v", err)
	}
}

// fanoutFetcher serves a home page linking to four pages. Fetches of those
// pages report on entered and block until gate is closed.
type fanoutFetcher struct {
	gate    chan struct{}
	entered chan string
}

func (f *fanoutFetcher) Fetch(_ context.Context, url string) (*fetch.Response, error) {
	body := `<a href="/menu">Menu</a><a href="/about">About</a><a href="/contact">Contact</a><a href="/events">Events</a>`
	if urlnorm.Path(url) != "/" {
		f.entered <- url
		<-f.gate
		body = `<h1>Cafe Rouge</h1>`
	}
	return &fetch.Response{
		StatusCode:  http.StatusOK,
		FinalURL:    url,
		Body:        []byte(body),
		ContentType: "text/html",
	}, nil
}

func TestManagerCancelDrainsWorkers(t *testing.T) {
	t.Parallel()

	f := &fanoutFetcher{gate: make(chan struct{}), entered: make(chan string, 4)}
	m := newTestManager(f)

	cfg := fastCrawl()
	cfg.Concurrency = 3
	id, err := m.StartCrawl(context.Background(), "https://cafe.example/", cfg)
	if err != nil {
		t.Fatalf("StartCrawl() error = %v", err)
	}
	for range 3 {
		select {
		case <-f.entered:
		case <-time.After(5 * time.Second):
			t.Fatal("workers did not start fetching")
		}
	}

	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	p, err := m.GetProgress(id)
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if p.Status != model.SiteRunning || p.Processing != 3 {
		t.Errorf("progress after cancel = %s with %d processing, want running with 3", p.Status, p.Processing)
	}

	stop := make(chan struct{})
	polled := make(chan error, 1)
	go func() {
		for {
			p, err := m.GetProgress(id)
			if err != nil {
				polled <- err
				return
			}
			if p.Status == model.SiteCancelled && p.Processing != 0 {
				polled <- fmt.Errorf("cancelled reported with %d pages processing", p.Processing)
				return
			}
			select {
			case <-stop:
				polled <- nil
				return
			default:
			}
		}
	}()

	close(f.gate)
	waitFor(t, m, id)
	close(stop)
	if err := <-polled; err != nil {
		t.Error(err)
	}

	p, err = m.GetProgress(id)
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if p.Status != model.SiteCancelled || p.Processing != 0 || p.Completed != 4 || p.Queued != 1 {
		t.Errorf("final progress = %+v, want cancelled with 4 completed and 1 queued", p)
	}
	select {
	case url := <-f.entered:
		t.Errorf("%s was fetched after cancel", url)
	default:
	}
}

func TestManagerWaitContext(t *testing.T) {
	t.Parallel()

	f := &gatedFetcher{gate: make(chan struct{})}
	m := newTestManager(f)
	id, err := m.StartCrawl(context.Background(), "https://cafe.example/", fastCrawl())
	if err != nil {
		t.Fatalf("StartCrawl() error = %v", err)
	}
	t.Cleanup(func() { close(f.gate) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx, id); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestManagerStoreFailure(t *testing.T) {
	t.Parallel()

	m := newTestManager(&gatedFetcher{}, WithStore(&memoryStore{err: errors.New("disk full")}))
	id, err := m.StartCrawl(context.Background(), "https://cafe.example/", fastCrawl())
	if err != nil {
		t.Fatalf("StartCrawl() error = %v", err)
	}
	waitFor(t, m, id)

	result, err := m.GetResult(id)
	if err != nil || result.Status != model.SiteCompleted {
		t.Errorf("store failure should not affect the result, got %q %v", result.Status, err)
	}
}
