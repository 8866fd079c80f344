package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Field names produced by DefaultExtractor.
const (
	FieldName        = "name"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldSummary     = "summary"
	FieldAddress     = "address"
	FieldEmails      = "emails"
	FieldPhones      = "phones"
	FieldHeadings    = "headings"
)

// Confidence values by source. Structured metadata beats free text.
const (
	confidenceSiteName    = 0.9
	confidenceAppName     = 0.8
	confidenceAddress     = 0.7
	confidenceDescription = 0.6
	confidenceSummary     = 0.5
	confidenceTitle       = 0.4
)

// titleSeparators split "Page - Site" style titles.
var titleSeparators = []string{" | ", " - ", " – ", " — ", " :: "}

// DefaultExtractor extracts generic site facts from HTML.
type DefaultExtractor struct {
	// Readability enables the readability summary. It is the most expensive step.
	Readability bool
}

// NewDefaultExtractor returns an extractor with readability enabled.
func NewDefaultExtractor() *DefaultExtractor {
	return &DefaultExtractor{Readability: true}
}

// Extract implements Extractor.
func (e *DefaultExtractor) Extract(ctx context.Context, body []byte, pageURL string, _ SiteContext) (model.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return model.Extraction{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return model.Extraction{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	fields := make(map[string]model.Field)
	set := func(name, value string, confidence float64) {
		if value = clean(value); value != "" {
			if _, ok := fields[name]; !ok {
				fields[name] = model.ScalarWithConfidence(value, confidence)
			}
		}
	}

	title := clean(doc.Find("title").First().Text())
	set(FieldTitle, title, confidenceTitle)

	set(FieldName, metaContent(doc, `meta[property="og:site_name"]`), confidenceSiteName)
	set(FieldName, metaContent(doc, `meta[name="application-name"]`), confidenceAppName)
	set(FieldName, siteNameFromTitle(title), confidenceTitle)

	set(FieldDescription, metaContent(doc, `meta[name="description"]`), confidenceDescription)
	set(FieldDescription, metaContent(doc, `meta[property="og:description"]`), confidenceDescription)

	set(FieldAddress, doc.Find(`[itemprop="streetAddress"]`).First().Text(), confidenceAddress)
	set(FieldAddress, doc.Find("address").First().Text(), confidenceAddress)

	fields[FieldEmails] = model.List(linkTargets(doc, "mailto:", strings.ToLower)...)
	fields[FieldPhones] = model.List(linkTargets(doc, "tel:", nil)...)
	fields[FieldHeadings] = model.List(texts(doc.Find("h1, h2"))...)
	fields[FieldSocials] = model.List(socialProfiles(doc)...)

	if e.Readability && ctx.Err() == nil {
		if summary := excerpt(body, pageURL); summary != "" {
			set(FieldSummary, summary, confidenceSummary)
		}
	}

	if err := ctx.Err(); err != nil {
		return model.Extraction{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return model.Extraction{Fields: fields}, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return content
}

// siteNameFromTitle returns the last segment of a separated title,
// "Menu | Cafe Rouge" gives "Cafe Rouge".
func siteNameFromTitle(title string) string {
	for _, sep := range titleSeparators {
		if i := strings.LastIndex(title, sep); i >= 0 {
			return title[i+len(sep):]
		}
	}
	return title
}

// linkTargets returns the values of href attributes with the given scheme,
// without the scheme and any query, in document order and deduplicated.
func linkTargets(doc *goquery.Document, scheme string, transform func(string) string) []string {
	seen := make(map[string]bool)
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if len(href) < len(scheme) || !strings.EqualFold(href[:len(scheme)], scheme) {
			return
		}
		target := href[len(scheme):]
		if i := strings.IndexByte(target, '?'); i >= 0 {
			target = target[:i]
		}
		if unescaped, err := url.PathUnescape(target); err == nil {
			target = unescaped
		}
		target = clean(target)
		if transform != nil {
			target = transform(target)
		}
		if target != "" && !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
	})
	return out
}

func texts(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := clean(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// excerpt returns the readability excerpt, or "" when the page has no article.
func excerpt(body []byte, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return ""
	}
	return article.Excerpt
}

// clean NFC-normalizes s and collapses whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
