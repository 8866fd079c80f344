package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitecrawl/internal/model"
)

// MarkdownWriter outputs results in Markdown for documentation and sharing.
type MarkdownWriter struct {
	baseWriter

	// maxPages caps the pages table. Zero means no cap.
	maxPages int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMaxPageRows caps the number of rows in the pages table.
func WithMaxPageRows(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.maxPages = n
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the result in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	s := NewSummary(result)
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, s)
	w.writeCounts(md, s)
	w.writeFields(md, s)
	w.writeLists(md, s)
	w.writePages(md, result.Pages)
	w.writeProblems(md, s)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Sitecrawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Site", "`" + s.Seed + "`"},
		{"Crawl Date", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
		{"Pages", strconv.Itoa(s.Pages)},
		{"Status", w.statusText(s)},
	}
	if s.ID != "" {
		rows = append(rows, []string{"Run", "`" + s.ID + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) statusText(s *Summary) string {
	switch s.Status {
	case model.SiteCompleted:
		if s.HasProblems() {
			return "⚠️ " + s.statusText()
		}
		return "✅ " + s.statusText()
	case model.SiteCancelled:
		return "⏹️ " + s.statusText()
	case model.SiteFailed:
		return "❌ " + s.statusText()
	default:
		return s.statusText()
	}
}

func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, s *Summary) {
	md.H2("Page Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"State", "Count"},
		Rows: [][]string{
			{"🟢 Success", strconv.Itoa(s.Succeeded)},
			{"🔵 Redirected", strconv.Itoa(s.Redirected)},
			{"🟡 Timeout", strconv.Itoa(s.TimedOut)},
			{"🔴 Failed", strconv.Itoa(s.Failed)},
			{"⚪ Pending", strconv.Itoa(s.Pending)},
			{"**Total**", "**" + strconv.Itoa(s.Pages) + "**"},
		},
	})
	md.PlainText("")

	if s.Pages > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart of page states.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page States"),
		piechart.WithShowData(true),
	)

	slices := []struct {
		label string
		n     int
	}{
		{"Success", s.Succeeded},
		{"Redirected", s.Redirected},
		{"Timeout", s.TimedOut},
		{"Failed", s.Failed},
		{"Pending", s.Pending},
	}
	for _, sl := range slices {
		if sl.n > 0 {
			chart.LabelAndIntValue(sl.label, uint64(sl.n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	switch {
	case s.Status == model.SiteFailed:
		md.Cautionf("The crawl failed: %s", s.Error)
	case s.Status == model.SiteCancelled:
		md.Warningf("The crawl was cancelled. %d page(s) were never processed.", s.Pending)
	case s.Failed > 0:
		md.Importantf("%d page(s) failed and %d timed out.", s.Failed, s.TimedOut)
	case s.TimedOut > 0:
		md.Notef("%d page(s) timed out. Their partial content was still used.", s.TimedOut)
	default:
		md.Tip("Every page was fetched successfully.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFields(md *markdown.Markdown, s *Summary) {
	md.H2("Fields")
	md.PlainText("")

	if len(s.Fields) == 0 {
		md.PlainText("No fields extracted.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Fields))
	for i, f := range s.Fields {
		rows[i] = []string{
			"**" + f.Name + "**",
			truncateString(escapeCell(f.Value), 80),
			truncateString(f.Source, 60),
			f.Confidence,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Field", "Value", "Source", "Confidence"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeLists(md *markdown.Markdown, s *Summary) {
	if len(s.Lists) == 0 {
		return
	}
	md.H2("Lists")
	md.PlainText("")

	for _, l := range s.Lists {
		md.H3(l.Name)
		md.PlainText("")
		md.BulletList(l.Values()...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, pages []model.Page) {
	md.H2("Pages")
	md.PlainText("")

	if len(pages) == 0 {
		md.PlainText("No pages admitted.")
		md.PlainText("")
		return
	}

	shown := pages
	if w.maxPages > 0 && len(shown) > w.maxPages {
		shown = shown[:w.maxPages]
	}
	rows := make([][]string, len(shown))
	for i, p := range shown {
		depth := strconv.Itoa(p.Depth)
		if p.IsOrphan() {
			depth = "-"
		}
		status := "-"
		if p.StatusCode > 0 {
			status = strconv.Itoa(p.StatusCode)
		}
		rows[i] = []string{
			truncateString(p.URL, 70),
			p.State.String(),
			depth,
			string(p.Method),
			status,
			strconv.Itoa(p.ChildrenCount),
			p.ProcessingTime.Round(time.Millisecond).String(),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "State", "Depth", "Method", "HTTP", "Children", "Time"},
		Rows:   rows,
	})
	if len(shown) < len(pages) {
		md.PlainTextf("*%d more page(s) not shown.*", len(pages)-len(shown))
	}
	md.PlainText("")
}

// writeProblems writes one collapsible detail per page error.
func (w *MarkdownWriter) writeProblems(md *markdown.Markdown, s *Summary) {
	if !s.HasProblems() && len(s.ExtractionErrors) == 0 {
		return
	}
	md.H2("Problems")
	md.PlainText("")

	for _, p := range s.Problems {
		md.Details(p.State.String()+": "+p.URL, p.Error)
	}
	for _, p := range s.ExtractionErrors {
		md.Details("extraction: "+p.URL, p.ExtractionError)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitecrawl](https://github.com/nao1215/sitecrawl)*")
}

// escapeCell keeps values from breaking the table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
