package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/discovery"
	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/model"
)

const homeHTML = `<html><head><title>Cafe Rouge</title></head><body>
<a href="/menu">Menu</a>
<a href="https://other.example/x">Elsewhere</a>
<a href="/private/staff">Staff</a>
<a href="/about">About</a>
</body></html>`

func htmlResponse(finalURL, body string) *fetch.Response {
	return &fetch.Response{
		StatusCode:  200,
		FinalURL:    finalURL,
		Body:        []byte(body),
		ContentType: "text/html; charset=utf-8",
	}
}

type fakeFrontier struct {
	seen     map[string]bool
	parent   string
	links    []discovery.Link
	admitted int
}

func (f *fakeFrontier) Redirect(_, to string) bool {
	return !f.seen[to]
}

func (f *fakeFrontier) EnqueueLinks(parent string, links []discovery.Link, _ model.DiscoveryMethod) int {
	f.parent = parent
	f.links = links
	return f.admitted
}

func TestFetchStep(t *testing.T) {
	t.Parallel()

	t.Run("success keeps response and hash", func(t *testing.T) {
		t.Parallel()

		resp := htmlResponse("https://cafe.example/", homeHTML)
		step := NewFetchStep(fetch.Func(func(context.Context, string) (*fetch.Response, error) {
			return resp, nil
		}), time.Second)

		task := newTestTask()
		if err := step.Do(context.Background(), task); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if task.Response != resp || task.Halted() {
			t.Fatal("expected response to be kept")
		}
		if task.Outcome.StatusCode != 200 || task.Outcome.ContentHash != model.HashContent(resp.Body) {
			t.Errorf("unexpected outcome %+v", task.Outcome)
		}
	})

	t.Run("requests the discovered spelling", func(t *testing.T) {
		t.Parallel()

		var requested string
		step := NewFetchStep(fetch.Func(func(_ context.Context, url string) (*fetch.Response, error) {
			requested = url
			return htmlResponse(url, homeHTML), nil
		}), time.Second)

		task := NewTask(model.Page{
			URL:      "https://cafe.example/menu",
			FetchURL: "https://cafe.example/menu/",
			State:    model.StateProcessing,
		}, extract.SiteContext{})
		_ = step.Do(context.Background(), task)
		if requested != "https://cafe.example/menu/" {
			t.Errorf("fetched %q, want the trailing slash kept", requested)
		}
	})

	t.Run("http error fails the page", func(t *testing.T) {
		t.Parallel()

		step := NewFetchStep(fetch.Func(func(context.Context, string) (*fetch.Response, error) {
			return &fetch.Response{StatusCode: 404}, fetch.ErrFetchFailed
		}), time.Second)

		task := newTestTask()
		_ = step.Do(context.Background(), task)
		if task.Outcome.State != model.StateFailed || !task.Halted() {
			t.Errorf("expected failed and halted, got %+v", task.Outcome)
		}
		if task.Outcome.StatusCode != 404 {
			t.Errorf("expected status 404, got %d", task.Outcome.StatusCode)
		}
	})

	t.Run("plain error is wrapped as fetch failure", func(t *testing.T) {
		t.Parallel()

		step := NewFetchStep(fetch.Func(func(context.Context, string) (*fetch.Response, error) {
			return nil, errors.New("connection refused")
		}), time.Second)

		task := newTestTask()
		_ = step.Do(context.Background(), task)
		if !errors.Is(task.Outcome.Err, fetch.ErrFetchFailed) {
			t.Errorf("expected ErrFetchFailed, got %v", task.Outcome.Err)
		}
	})

	t.Run("deadline without content halts as timeout", func(t *testing.T) {
		t.Parallel()

		step := NewFetchStep(fetch.Func(func(ctx context.Context, _ string) (*fetch.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), 10*time.Millisecond)

		task := newTestTask()
		_ = step.Do(context.Background(), task)
		if task.Outcome.State != model.StateTimeout || !task.Halted() {
			t.Errorf("expected timeout and halted, got %+v", task.Outcome)
		}
		if !errors.Is(task.Outcome.Err, fetch.ErrFetchTimeout) {
			t.Errorf("expected ErrFetchTimeout, got %v", task.Outcome.Err)
		}
	})

	t.Run("partial content on timeout continues", func(t *testing.T) {
		t.Parallel()

		partial := htmlResponse("https://cafe.example/", `<a href="/menu">Menu</a>`)
		partial.Partial = true
		step := NewFetchStep(fetch.Func(func(context.Context, string) (*fetch.Response, error) {
			return partial, fetch.ErrFetchTimeout
		}), time.Second)

		task := newTestTask()
		_ = step.Do(context.Background(), task)
		if task.Outcome.State != model.StateTimeout || task.Halted() {
			t.Errorf("expected timeout without halt, got %+v", task.Outcome)
		}
		if task.Response != partial {
			t.Error("expected partial response to be kept")
		}
	})
}

func TestRedirectStep(t *testing.T) {
	t.Parallel()

	t.Run("same URL is not a redirect", func(t *testing.T) {
		t.Parallel()

		task := newTestTask()
		task.Response = htmlResponse("https://CAFE.example:443/", homeHTML)
		_ = NewRedirectStep(&fakeFrontier{}).Do(context.Background(), task)
		if task.Outcome.State != model.StateSuccess {
			t.Errorf("expected success, got %v", task.Outcome.State)
		}
	})

	t.Run("new target marks redirected", func(t *testing.T) {
		t.Parallel()

		task := newTestTask()
		task.Response = htmlResponse("https://cafe.example/home/", homeHTML)
		_ = NewRedirectStep(&fakeFrontier{}).Do(context.Background(), task)
		if task.Outcome.State != model.StateRedirected || task.Halted() {
			t.Errorf("expected redirected without halt, got %+v", task.Outcome)
		}
		if task.Outcome.CanonicalURL != "https://cafe.example/home" {
			t.Errorf("unexpected canonical URL %q", task.Outcome.CanonicalURL)
		}
	})

	t.Run("seen target halts", func(t *testing.T) {
		t.Parallel()

		task := newTestTask()
		task.Response = htmlResponse("https://cafe.example/home", homeHTML)
		fr := &fakeFrontier{seen: map[string]bool{"https://cafe.example/home": true}}
		_ = NewRedirectStep(fr).Do(context.Background(), task)
		if !task.Halted() || task.Outcome.State != model.StateRedirected {
			t.Errorf("expected halted redirected page, got %+v", task.Outcome)
		}
	})

	t.Run("timeout state is kept", func(t *testing.T) {
		t.Parallel()

		task := newTestTask()
		task.Outcome.State = model.StateTimeout
		task.Response = htmlResponse("https://cafe.example/home", homeHTML)
		_ = NewRedirectStep(&fakeFrontier{}).Do(context.Background(), task)
		if task.Outcome.State != model.StateTimeout {
			t.Errorf("expected timeout, got %v", task.Outcome.State)
		}
	})
}

func TestDiscoverStep(t *testing.T) {
	t.Parallel()

	robots, err := discovery.ParseRobots(200, []byte("User-agent: *\nDisallow: /about\n"), "sitecrawl")
	if err != nil {
		t.Fatalf("ParseRobots() error = %v", err)
	}
	step := NewDiscoverStep(
		discovery.NewFilter(nil, []string{"/private/*"}),
		WithSameHost("https://cafe.example/"),
		WithRobots(robots),
	)

	task := newTestTask()
	task.Response = htmlResponse("https://cafe.example/", homeHTML)
	if err := step.Do(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(task.Links) != 1 || task.Links[0].URL != "https://cafe.example/menu" {
		t.Errorf("expected only the menu link, got %+v", task.Links)
	}

	t.Run("without final url links resolve against the discovered spelling", func(t *testing.T) {
		t.Parallel()

		task := NewTask(model.Page{
			URL:      "https://cafe.example/menu",
			FetchURL: "https://cafe.example/menu/",
			State:    model.StateProcessing,
		}, extract.SiteContext{})
		task.Response = htmlResponse("", `<a href="lunch">Lunch</a>`)
		_ = step.Do(context.Background(), task)
		if len(task.Links) != 1 || task.Links[0].URL != "https://cafe.example/menu/lunch" {
			t.Errorf("got %+v, want menu/lunch", task.Links)
		}
	})

	t.Run("non HTML is skipped", func(t *testing.T) {
		t.Parallel()

		task := newTestTask()
		task.Response = &fetch.Response{FinalURL: "https://cafe.example/menu.pdf", ContentType: "application/pdf", Body: []byte("%PDF")}
		_ = step.Do(context.Background(), task)
		if task.Links != nil {
			t.Errorf("expected no links, got %v", task.Links)
		}
	})
}

func TestEnqueueStep(t *testing.T) {
	t.Parallel()

	fr := &fakeFrontier{admitted: 2}
	task := newTestTask()
	task.Links = []discovery.Link{{URL: "https://cafe.example/menu"}, {URL: "https://cafe.example/about"}}

	_ = NewEnqueueStep(fr).Do(context.Background(), task)
	if fr.parent != task.Page.URL || len(fr.links) != 2 {
		t.Errorf("unexpected enqueue parent=%q links=%v", fr.parent, fr.links)
	}
	if task.Admitted != 2 {
		t.Errorf("expected 2 admitted, got %d", task.Admitted)
	}
}

func TestExtractStep(t *testing.T) {
	t.Parallel()

	t.Run("stores extraction", func(t *testing.T) {
		t.Parallel()

		step := NewExtractStep(extract.Func(func(_ context.Context, _ []byte, pageURL string, _ extract.SiteContext) (model.Extraction, error) {
			return model.Extraction{Fields: map[string]model.Field{"title": model.Scalar(pageURL)}}, nil
		}), time.Second)

		task := newTestTask()
		task.Response = htmlResponse("https://cafe.example/", homeHTML)
		_ = step.Do(context.Background(), task)
		if task.Outcome.Extraction == nil || task.Outcome.Extraction.Fields["title"].Value != task.Page.URL {
			t.Errorf("unexpected extraction %+v", task.Outcome.Extraction)
		}
	})

	t.Run("error keeps fetch state", func(t *testing.T) {
		t.Parallel()

		step := NewExtractStep(extract.Func(func(context.Context, []byte, string, extract.SiteContext) (model.Extraction, error) {
			return model.Extraction{}, errors.New("model unavailable")
		}), time.Second)

		task := newTestTask()
		task.Response = htmlResponse("https://cafe.example/", homeHTML)
		_ = step.Do(context.Background(), task)
		if !errors.Is(task.Outcome.ExtractErr, extract.ErrExtractionFailed) {
			t.Errorf("expected ErrExtractionFailed, got %v", task.Outcome.ExtractErr)
		}
		if task.Outcome.State != model.StateSuccess || task.Outcome.Extraction != nil {
			t.Errorf("unexpected outcome %+v", task.Outcome)
		}
	})

	t.Run("extraction has its own deadline", func(t *testing.T) {
		t.Parallel()

		step := NewExtractStep(extract.Func(func(ctx context.Context, _ []byte, _ string, _ extract.SiteContext) (model.Extraction, error) {
			if _, ok := ctx.Deadline(); !ok {
				return model.Extraction{}, errors.New("no deadline")
			}
			return model.Extraction{}, nil
		}), time.Second)

		task := newTestTask()
		task.Response = htmlResponse("https://cafe.example/", homeHTML)
		_ = step.Do(context.Background(), task)
		if task.Outcome.ExtractErr != nil {
			t.Errorf("unexpected error %v", task.Outcome.ExtractErr)
		}
	})
}
