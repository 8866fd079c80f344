package report

import (
	"io"
	"unicode/utf8"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Writer renders a crawl result to its destination.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(result *model.CrawlResult) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// truncateString truncates s to maxLen characters with an ellipsis.
// It never splits a multi-byte character.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:max(maxLen, 0)])
	}
	return string(r[:maxLen-3]) + "..."
}
