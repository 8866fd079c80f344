package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/urlnorm"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// timestampFormats are tried in order when reading a timestamp back.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite CURRENT_TIMESTAMP
}

// parseTimestamp returns the zero time when s matches no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// runRow is a row of the runs table.
type runRow struct {
	ID              string `db:"id"`
	Seed            string `db:"seed"`
	Host            string `db:"host"`
	Status          string `db:"status"`
	StartedAt       string `db:"started_at"`
	FinishedAt      string `db:"finished_at"`
	PagesProcessed  int    `db:"pages_processed"`
	PagesSucceeded  int    `db:"pages_succeeded"`
	PagesFailed     int    `db:"pages_failed"`
	PagesTimedOut   int    `db:"pages_timed_out"`
	PagesRedirected int    `db:"pages_redirected"`
	ProcessingMS    int64  `db:"processing_ms"`
	Error           string `db:"error"`
	RecordJSON      string `db:"record_json"`
}

func newRunRow(r *model.CrawlResult) (runRow, error) {
	record, err := json.Marshal(r.Record)
	if err != nil {
		return runRow{}, fmt.Errorf("failed to serialize record: %w", err)
	}
	s := r.Record.Stats
	return runRow{
		ID:              r.ID,
		Seed:            r.Seed,
		Host:            urlnorm.Host(r.Seed),
		Status:          string(r.Status),
		StartedAt:       formatTime(r.StartedAt),
		FinishedAt:      formatTime(r.FinishedAt),
		PagesProcessed:  s.PagesProcessed,
		PagesSucceeded:  s.PagesSucceeded,
		PagesFailed:     s.PagesFailed,
		PagesTimedOut:   s.PagesTimedOut,
		PagesRedirected: s.PagesRedirected,
		ProcessingMS:    s.TotalProcessingTime.Milliseconds(),
		Error:           r.Error,
		RecordJSON:      string(record),
	}, nil
}

func (row runRow) summary() RunSummary {
	return RunSummary{
		ID:         row.ID,
		Seed:       row.Seed,
		Host:       row.Host,
		Status:     model.SiteStatus(row.Status),
		StartedAt:  parseTimestamp(row.StartedAt),
		FinishedAt: parseTimestamp(row.FinishedAt),
		Stats: model.RecordStats{
			PagesProcessed:      row.PagesProcessed,
			PagesSucceeded:      row.PagesSucceeded,
			PagesFailed:         row.PagesFailed,
			PagesTimedOut:       row.PagesTimedOut,
			PagesRedirected:     row.PagesRedirected,
			TotalProcessingTime: time.Duration(row.ProcessingMS) * time.Millisecond,
		},
		Error: row.Error,
	}
}

func (row runRow) result() (*model.CrawlResult, error) {
	record := model.NewAggregatedRecord()
	if row.RecordJSON != "" {
		if err := json.Unmarshal([]byte(row.RecordJSON), &record); err != nil {
			return nil, fmt.Errorf("failed to parse record of run %s: %w", row.ID, err)
		}
	}
	return &model.CrawlResult{
		ID:         row.ID,
		Seed:       row.Seed,
		Status:     model.SiteStatus(row.Status),
		Record:     record,
		StartedAt:  parseTimestamp(row.StartedAt),
		FinishedAt: parseTimestamp(row.FinishedAt),
		Error:      row.Error,
	}, nil
}

// pageRow is a row of the pages table.
type pageRow struct {
	RunID           string         `db:"run_id"`
	URL             string         `db:"url"`
	CanonicalURL    string         `db:"canonical_url"`
	Depth           int            `db:"depth"`
	Parent          string         `db:"parent_url"`
	Method          string         `db:"method"`
	Score           int            `db:"score"`
	Seq             int            `db:"seq"`
	State           string         `db:"state"`
	QueuedAt        string         `db:"queued_at"`
	StartedAt       string         `db:"started_at"`
	FinishedAt      string         `db:"finished_at"`
	ProcessingMS    int64          `db:"processing_ms"`
	StatusCode      int            `db:"status_code"`
	ContentType     string         `db:"content_type"`
	ContentHash     string         `db:"content_hash"`
	Error           string         `db:"error"`
	ExtractionError string         `db:"extraction_error"`
	ExtractionJSON  sql.NullString `db:"extraction_json"`
	ChildrenCount   int            `db:"children_count"`
}

func newPageRow(runID string, p model.Page) (pageRow, error) {
	row := pageRow{
		RunID:           runID,
		URL:             p.URL,
		CanonicalURL:    p.CanonicalURL,
		Depth:           p.Depth,
		Parent:          p.Parent,
		Method:          string(p.Method),
		Score:           p.Score,
		Seq:             p.Seq,
		State:           p.State.String(),
		QueuedAt:        formatTime(p.QueuedAt),
		StartedAt:       formatTime(p.StartedAt),
		FinishedAt:      formatTime(p.FinishedAt),
		ProcessingMS:    p.ProcessingTime.Milliseconds(),
		StatusCode:      p.StatusCode,
		ContentType:     p.ContentType,
		ContentHash:     p.ContentHash,
		Error:           p.Error,
		ExtractionError: p.ExtractionError,
		ChildrenCount:   p.ChildrenCount,
	}
	if p.Extraction != nil {
		data, err := json.Marshal(p.Extraction)
		if err != nil {
			return pageRow{}, fmt.Errorf("failed to serialize extraction of %s: %w", p.URL, err)
		}
		row.ExtractionJSON = sql.NullString{String: string(data), Valid: true}
	}
	return row, nil
}

func (row pageRow) page() (model.Page, error) {
	p := model.Page{
		URL:             row.URL,
		CanonicalURL:    row.CanonicalURL,
		Depth:           row.Depth,
		Parent:          row.Parent,
		Method:          model.DiscoveryMethod(row.Method),
		Score:           row.Score,
		Seq:             row.Seq,
		QueuedAt:        parseTimestamp(row.QueuedAt),
		StartedAt:       parseTimestamp(row.StartedAt),
		FinishedAt:      parseTimestamp(row.FinishedAt),
		ProcessingTime:  time.Duration(row.ProcessingMS) * time.Millisecond,
		StatusCode:      row.StatusCode,
		ContentType:     row.ContentType,
		ContentHash:     row.ContentHash,
		Error:           row.Error,
		ExtractionError: row.ExtractionError,
		ChildrenCount:   row.ChildrenCount,
	}
	if err := p.State.UnmarshalText([]byte(row.State)); err != nil {
		return model.Page{}, fmt.Errorf("page %s: %w", row.URL, err)
	}
	if row.ExtractionJSON.Valid {
		var ex model.Extraction
		if err := json.Unmarshal([]byte(row.ExtractionJSON.String), &ex); err != nil {
			return model.Page{}, fmt.Errorf("failed to parse extraction of %s: %w", row.URL, err)
		}
		p.Extraction = &ex
	}
	return p, nil
}

// edgeRow is a row of the edges table.
type edgeRow struct {
	RunID string `db:"run_id"`
	Seq   int    `db:"seq"`
	model.Edge
}
