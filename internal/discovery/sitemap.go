package discovery

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type urlSet struct {
	XMLName xml.Name       `xml:"urlset"`
	URLs    []sitemapEntry `xml:"url"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// Sitemap is the content of one sitemap document.
type Sitemap struct {
	// Pages are page locations from a urlset.
	Pages []string

	// Children are nested sitemap locations from a sitemapindex.
	Children []string
}

// ParseSitemap parses a urlset or sitemapindex document.
func ParseSitemap(data []byte) (Sitemap, error) {
	var sm Sitemap
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return sm, fmt.Errorf("%w: empty document", ErrInvalidSitemap)
	}

	var index sitemapIndex
	if err := xml.Unmarshal(trimmed, &index); err == nil {
		sm.Children = locations(index.Sitemaps)
		return sm, nil
	}

	var set urlSet
	if err := xml.Unmarshal(trimmed, &set); err != nil {
		return sm, fmt.Errorf("%w: %w", ErrInvalidSitemap, err)
	}
	sm.Pages = locations(set.URLs)
	return sm, nil
}

func locations(entries []sitemapEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if loc := strings.TrimSpace(e.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}
