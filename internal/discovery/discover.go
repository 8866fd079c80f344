package discovery

import (
	"net/url"
	"strings"

	"github.com/nao1215/sitecrawl/internal/urlnorm"
)

// Link is a crawl candidate found in a page.
type Link struct {
	// URL is the normalized absolute target.
	URL string

	// Href is the absolute target as written, before normalization. It keeps
	// the trailing slash that relative links on the target resolve against.
	Href string

	// Text is the anchor text, whitespace collapsed.
	Text string

	// Score orders candidates for priority queues. Higher is better.
	Score int
}

// Discover returns the normalized links of an HTML page that pass the
// include and exclude patterns, in document order. Links that fail
// normalization are dropped. Duplicates are kept.
func Discover(content []byte, pageURL string, include, exclude []string) []Link {
	return NewFilter(include, exclude).Discover(content, pageURL)
}

// Discover is Discover with a prebuilt filter.
func (f Filter) Discover(content []byte, pageURL string) []Link {
	links := make([]Link, 0)
	if len(content) == 0 {
		return links
	}

	page := parseLinks(content)
	base := resolveBase(pageURL, page.base)

	for _, raw := range page.links {
		target, err := urlnorm.Normalize(raw.href, base)
		if err != nil {
			continue
		}
		score, ok := f.Score(urlnorm.Path(target))
		if !ok {
			continue
		}
		links = append(links, Link{URL: target, Href: absolute(base, raw.href), Text: raw.text, Score: score})
	}
	return links
}

// absolute resolves href against base without normalizing it. It returns ""
// when either does not parse.
func absolute(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	u := b.ResolveReference(ref)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// resolveBase applies a <base href> to the page URL. The result is not
// normalized because normalization would drop the trailing slash that
// relative resolution depends on.
func resolveBase(pageURL, href string) string {
	if href == "" {
		return pageURL
	}
	pu, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	ref, err := url.Parse(href)
	if err != nil {
		return pageURL
	}
	resolved := pu.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return pageURL
	}
	return resolved.String()
}
