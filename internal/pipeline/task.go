package pipeline

import (
	"github.com/nao1215/sitecrawl/internal/discovery"
	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/fetch"
	"github.com/nao1215/sitecrawl/internal/frontier"
	"github.com/nao1215/sitecrawl/internal/model"
)

// Task is one claimed page moving through the pipeline.
type Task struct {
	// Page is the page as claimed from the queue.
	Page model.Page

	// Site is passed to the extractor.
	Site extract.SiteContext

	// Response is the fetched response. Nil when nothing usable was fetched.
	Response *fetch.Response

	// Links are the discovered links that passed the site's filters.
	Links []discovery.Link

	// Admitted is the number of links the queue accepted.
	Admitted int

	// Outcome is handed to frontier.Queue.Complete once the pipeline returns.
	Outcome frontier.Completion

	halted     bool
	haltReason string
}

// NewTask returns a task for a claimed page. The outcome starts as success
// with the page's own URL as canonical URL.
func NewTask(page model.Page, site extract.SiteContext) *Task {
	return &Task{
		Page: page,
		Site: site,
		Outcome: frontier.Completion{
			State:        model.StateSuccess,
			CanonicalURL: page.URL,
		},
	}
}

// Halt skips the remaining steps.
func (t *Task) Halt(reason string) {
	t.halted = true
	t.haltReason = reason
}

// Halted reports whether a step halted the task.
func (t *Task) Halted() bool {
	return t.halted
}

// HaltReason returns the reason given to Halt.
func (t *Task) HaltReason() string {
	return t.haltReason
}

// Fail marks the page failed with err and halts the task.
func (t *Task) Fail(err error) {
	t.Outcome.State = model.StateFailed
	t.Outcome.Err = err
	t.Halt("failed")
}

// RequestURL is the URL the page is fetched from: its discovered spelling
// when known, otherwise its normalized URL.
func (t *Task) RequestURL() string {
	if t.Page.FetchURL != "" {
		return t.Page.FetchURL
	}
	return t.Page.URL
}

// Body returns the fetched body, or nil.
func (t *Task) Body() []byte {
	if t.Response == nil {
		return nil
	}
	return t.Response.Body
}

// IsHTML reports whether the fetched content is HTML.
func (t *Task) IsHTML() bool {
	return t.Response != nil && model.IsHTMLContentType(t.Response.ContentType)
}
