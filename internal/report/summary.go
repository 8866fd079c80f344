package report

import (
	"strconv"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Summary is the condensed view of a CrawlResult that the text, Markdown and
// spreadsheet writers render.
type Summary struct {
	ID        string
	Seed      string
	Status    model.SiteStatus
	StartedAt time.Time
	Duration  time.Duration
	Error     string

	Pages      int
	Succeeded  int
	Redirected int
	Failed     int
	TimedOut   int

	// Pending counts pages left queued or processing by a cancelled run.
	Pending int

	// AveragePageTime is the mean processing time of terminal pages.
	AveragePageTime time.Duration

	Fields []FieldRow
	Lists  []ListRow

	// Problems are the failed and timed out pages.
	Problems []model.Page

	// ExtractionErrors are pages whose extractor failed.
	ExtractionErrors []model.Page
}

// FieldRow is one scalar field of the aggregated record.
type FieldRow struct {
	Name       string
	Value      string
	Source     string
	Confidence string
}

// ListRow is one list field of the aggregated record.
type ListRow struct {
	Name  string
	Items []model.ListItem
}

// Values returns the item values.
func (l ListRow) Values() []string {
	out := make([]string, len(l.Items))
	for i, item := range l.Items {
		out[i] = item.Value
	}
	return out
}

// NewSummary condenses r.
func NewSummary(r *model.CrawlResult) *Summary {
	stats := r.Record.Stats
	s := &Summary{
		ID:         r.ID,
		Seed:       r.Seed,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		Duration:   r.Duration(),
		Error:      r.Error,
		Pages:      len(r.Pages),
		Succeeded:  stats.PagesSucceeded - stats.PagesRedirected,
		Redirected: stats.PagesRedirected,
		Failed:     stats.PagesFailed,
		TimedOut:   stats.PagesTimedOut,
		Problems:   r.FailedPages(),
	}
	if stats.PagesProcessed > 0 {
		s.AveragePageTime = stats.TotalProcessingTime / time.Duration(stats.PagesProcessed)
	}
	for _, p := range r.Pages {
		if !p.State.IsTerminal() {
			s.Pending++
		}
		if p.ExtractionError != "" {
			s.ExtractionErrors = append(s.ExtractionErrors, p)
		}
	}

	for _, name := range r.Record.FieldNames() {
		f := r.Record.Fields[name]
		row := FieldRow{Name: name, Value: f.Value, Source: f.Source, Confidence: "-"}
		if f.Confidence != nil {
			row.Confidence = strconv.FormatFloat(*f.Confidence, 'f', 2, 64)
		}
		s.Fields = append(s.Fields, row)
	}
	for _, name := range r.Record.ListNames() {
		if items := r.Record.Lists[name]; len(items) > 0 {
			s.Lists = append(s.Lists, ListRow{Name: name, Items: items})
		}
	}
	return s
}

// HasProblems reports whether any page failed or timed out.
func (s *Summary) HasProblems() bool {
	return len(s.Problems) > 0
}

// statusText returns a one-line status suitable for any writer.
func (s *Summary) statusText() string {
	switch s.Status {
	case model.SiteCompleted:
		if s.HasProblems() {
			return "Completed with " + strconv.Itoa(len(s.Problems)) + " problem page(s)"
		}
		return "Completed"
	case model.SiteCancelled:
		return "Cancelled (" + strconv.Itoa(s.Pending) + " page(s) not processed)"
	case model.SiteFailed:
		if s.Error != "" {
			return "Failed - " + s.Error
		}
		return "Failed"
	default:
		return "Running"
	}
}
