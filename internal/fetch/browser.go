package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders pages in headless Chrome. Close must be called to
// stop the browser.
type BrowserFetcher struct {
	settle   time.Duration
	execOpts []chromedp.ExecAllocatorOption

	once          sync.Once
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	startErr      error
}

// BrowserOption configures a BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithSettleTime waits d after the body is ready, for late scripts.
func WithSettleTime(d time.Duration) BrowserOption {
	return func(b *BrowserFetcher) {
		b.settle = d
	}
}

// WithBrowserUserAgent sets the browser User-Agent.
func WithBrowserUserAgent(ua string) BrowserOption {
	return func(b *BrowserFetcher) {
		if ua != "" {
			b.execOpts = append(b.execOpts, chromedp.UserAgent(ua))
		}
	}
}

// NewBrowserFetcher creates a browser fetcher. Chrome is started on first use.
func NewBrowserFetcher(opts ...BrowserOption) *BrowserFetcher {
	b := &BrowserFetcher{}
	b.execOpts = append(b.execOpts, chromedp.DefaultExecAllocatorOptions[:]...)
	b.execOpts = append(b.execOpts,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
	)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BrowserFetcher) start() error {
	b.once.Do(func() {
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), b.execOpts...)
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(browserCtx); err != nil {
			cancelBrowser()
			cancelAlloc()
			b.startErr = fmt.Errorf("%w: start browser: %w", ErrFetchFailed, err)
			return
		}
		b.browserCtx = browserCtx
		b.cancelBrowser = cancelBrowser
		b.cancelAlloc = cancelAlloc
	})
	return b.startErr
}

// Fetch opens pageURL in a new tab and returns the rendered HTML.
func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*Response, error) {
	if err := b.start(); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		tabCtx, cancelDeadline = context.WithDeadline(tabCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tasks := chromedp.Tasks{
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
	}
	if b.settle > 0 {
		tasks = append(tasks, chromedp.Sleep(b.settle))
	}

	var location, html string
	tasks = append(tasks, chromedp.Location(&location), chromedp.OuterHTML("html", &html))

	if err := chromedp.Run(tabCtx, tasks); err != nil {
		if isTimeout(err) || isTimeout(tabCtx.Err()) {
			resp := b.partial(pageURL, html)
			return resp, fmt.Errorf("%w: %w", ErrFetchTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	resp := &Response{
		StatusCode:  http.StatusOK,
		FinalURL:    location,
		Body:        []byte(html),
		ContentType: "text/html; charset=utf-8",
	}
	if location != "" && location != pageURL {
		resp.Redirects = []string{location}
	}
	return resp, nil
}

func (b *BrowserFetcher) partial(pageURL, html string) *Response {
	if html == "" {
		return nil
	}
	return &Response{
		StatusCode:  http.StatusOK,
		FinalURL:    pageURL,
		Body:        []byte(html),
		ContentType: "text/html; charset=utf-8",
		Partial:     true,
	}
}

// Close stops the browser.
func (b *BrowserFetcher) Close() error {
	if b.cancelBrowser != nil {
		b.cancelBrowser()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
	return nil
}
