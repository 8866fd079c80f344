package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Sheet names of the XLSX report.
const (
	SheetSummary = "Summary"
	SheetFields  = "Fields"
	SheetPages   = "Pages"
)

// XLSXWriter outputs results as an Excel workbook.
type XLSXWriter struct {
	baseWriter
}

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer.
// The output is binary and should be a file.
func NewXLSXWriter(output io.Writer) *XLSXWriter {
	return &XLSXWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the result as a workbook with Summary, Fields and Pages sheets.
func (w *XLSXWriter) Write(result *model.CrawlResult) (int, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	s := NewSummary(result)
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return 0, fmt.Errorf("xlsx: %w", err)
	}
	for _, name := range []string{SheetFields, SheetPages} {
		if _, err := f.NewSheet(name); err != nil {
			return 0, fmt.Errorf("xlsx: %w", err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return 0, fmt.Errorf("xlsx: %w", err)
	}

	if err := writeSummarySheet(f, s, header); err != nil {
		return 0, err
	}
	if err := writeFieldsSheet(f, s, header); err != nil {
		return 0, err
	}
	if err := writePagesSheet(f, result.Pages, header); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return 0, fmt.Errorf("xlsx: %w", err)
	}
	return w.output.Write(buf.Bytes())
}

// writeRows writes rows starting at A1 and styles the first one.
func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("xlsx: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx: %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, s *Summary, header int) error {
	rows := [][]any{
		{"Property", "Value"},
		{"Site", s.Seed},
		{"Run", s.ID},
		{"Status", s.statusText()},
		{"Crawl Date", s.StartedAt.Format(time.RFC3339)},
		{"Duration (s)", s.Duration.Seconds()},
		{"Pages", s.Pages},
		{"Success", s.Succeeded},
		{"Redirected", s.Redirected},
		{"Timeout", s.TimedOut},
		{"Failed", s.Failed},
		{"Pending", s.Pending},
		{"Average Page Time (ms)", s.AveragePageTime.Milliseconds()},
	}
	if err := writeRows(f, SheetSummary, rows, header); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "B", 28)
}

func writeFieldsSheet(f *excelize.File, s *Summary, header int) error {
	rows := [][]any{{"Field", "Value", "Source", "Confidence"}}
	for _, fr := range s.Fields {
		rows = append(rows, []any{fr.Name, fr.Value, fr.Source, fr.Confidence})
	}
	for _, l := range s.Lists {
		for _, item := range l.Items {
			rows = append(rows, []any{l.Name, item.Value, item.Source, "-"})
		}
	}
	if err := writeRows(f, SheetFields, rows, header); err != nil {
		return err
	}
	return f.SetColWidth(SheetFields, "A", "C", 32)
}

func writePagesSheet(f *excelize.File, pages []model.Page, header int) error {
	rows := [][]any{{
		"URL", "Canonical URL", "State", "Depth", "Parent", "Method",
		"HTTP Status", "Content Type", "Children", "Time (ms)", "Error",
	}}
	for _, p := range pages {
		errText := p.Error
		if p.ExtractionError != "" {
			errText = strings.TrimSpace(errText + " " + p.ExtractionError)
		}
		rows = append(rows, []any{
			p.URL, p.CanonicalURL, p.State.String(), p.Depth, p.Parent, string(p.Method),
			p.StatusCode, p.ContentType, p.ChildrenCount, p.ProcessingTime.Milliseconds(), errText,
		})
	}
	if err := writeRows(f, SheetPages, rows, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), len(rows))
	if err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if err := f.AutoFilter(SheetPages, "A1:"+last, nil); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	return f.SetColWidth(SheetPages, "A", "B", 48)
}
