// Package report renders crawl results.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown with tables and a mermaid chart for sharing
//   - XLSXWriter: a spreadsheet with Summary, Fields and Pages sheets
//
// Writers implement the Writer interface, so they can be used
// interchangeably.
package report
