package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to show are printed.
	showEmpty bool

	// verbose adds the per-page table.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose adds every page to the output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the result in human-readable format.
func (w *SimpleWriter) Write(result *model.CrawlResult) (int, error) {
	s := NewSummary(result)

	var sb strings.Builder
	w.writeHeader(&sb, s)
	w.writeCounts(&sb, s)
	w.writeFields(&sb, s)
	w.writeLists(&sb, s)
	w.writeProblems(&sb, s)
	if w.verbose {
		w.writePages(&sb, result.Pages)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         SITECRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Site:           %s\n", s.Seed)
	if s.ID != "" {
		fmt.Fprintf(sb, "Run:            %s\n", s.ID)
	}
	fmt.Fprintf(sb, "Crawl Date:     %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:       %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:         %s\n", s.statusText())
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCounts(sb *strings.Builder, s *Summary) {
	section(sb, "PAGES")

	fmt.Fprintf(sb, "  SUCCESS:    %d\n", s.Succeeded)
	fmt.Fprintf(sb, "  REDIRECTED: %d\n", s.Redirected)
	fmt.Fprintf(sb, "  TIMEOUT:    %d\n", s.TimedOut)
	fmt.Fprintf(sb, "  FAILED:     %d\n", s.Failed)
	if s.Pending > 0 {
		fmt.Fprintf(sb, "  PENDING:    %d\n", s.Pending)
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:      %d pages, %s average\n", s.Pages, s.AveragePageTime.Round(time.Millisecond))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFields(sb *strings.Builder, s *Summary) {
	if len(s.Fields) == 0 && !w.showEmpty {
		return
	}
	section(sb, "FIELDS")

	if len(s.Fields) == 0 {
		sb.WriteString("  No fields extracted\n\n")
		return
	}
	for _, f := range s.Fields {
		fmt.Fprintf(sb, "  %-12s %s\n", f.Name+":", f.Value)
		fmt.Fprintf(sb, "  %-12s from %s (confidence %s)\n", "", f.Source, f.Confidence)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeLists(sb *strings.Builder, s *Summary) {
	if len(s.Lists) == 0 && !w.showEmpty {
		return
	}
	section(sb, "LISTS")

	if len(s.Lists) == 0 {
		sb.WriteString("  No lists extracted\n\n")
		return
	}
	for _, l := range s.Lists {
		fmt.Fprintf(sb, "[%s] %d item(s)\n", l.Name, len(l.Items))
		for _, item := range l.Items {
			fmt.Fprintf(sb, "  [+] %s\n", item.Value)
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeProblems(sb *strings.Builder, s *Summary) {
	if !s.HasProblems() && len(s.ExtractionErrors) == 0 && !w.showEmpty {
		return
	}
	section(sb, "PROBLEMS")

	if !s.HasProblems() && len(s.ExtractionErrors) == 0 {
		sb.WriteString("  No problems\n\n")
		return
	}
	for _, p := range s.Problems {
		fmt.Fprintf(sb, "  [%s] %s\n", stateIndicator(p.State), p.URL)
		if p.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", p.Error)
		}
	}
	for _, p := range s.ExtractionErrors {
		fmt.Fprintf(sb, "  [?] %s\n", p.URL)
		fmt.Fprintf(sb, "    Extraction: %s\n", p.ExtractionError)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, pages []model.Page) {
	section(sb, "ALL PAGES")

	for _, p := range pages {
		depth := fmt.Sprintf("%d", p.Depth)
		if p.IsOrphan() {
			depth = "-"
		}
		fmt.Fprintf(sb, "  [%s] %-60s depth=%s status=%d %s\n",
			stateIndicator(p.State), truncateString(p.URL, 60), depth, p.StatusCode, p.ProcessingTime.Round(time.Millisecond))
	}
	sb.WriteString("\n")
}

// stateIndicator returns a short marker for the page state.
func stateIndicator(s model.PageState) string {
	switch s {
	case model.StateSuccess:
		return "ok"
	case model.StateRedirected:
		return "->"
	case model.StateTimeout:
		return "!"
	case model.StateFailed:
		return "!!"
	default:
		return ".."
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitecrawl\n")
	sb.WriteString("https://github.com/nao1215/sitecrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
