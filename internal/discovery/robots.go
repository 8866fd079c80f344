package discovery

import (
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

// Robots is the robots.txt policy of one host for one user agent.
// The zero value and a nil *Robots allow everything.
type Robots struct {
	data      *robotstxt.RobotsData
	group     *robotstxt.Group
	userAgent string
}

// ParseRobots builds a policy from a robots.txt response.
// Following robotstxt semantics, 4xx statuses allow everything and 5xx
// statuses disallow everything.
func ParseRobots(statusCode int, body []byte, userAgent string) (*Robots, error) {
	data, err := robotstxt.FromStatusAndBytes(statusCode, body)
	if err != nil {
		return nil, err
	}
	return &Robots{
		data:      data,
		group:     data.FindGroup(userAgent),
		userAgent: userAgent,
	}, nil
}

// Allowed reports whether the user agent may fetch rawURL.
func (r *Robots) Allowed(rawURL string) bool {
	if r == nil || r.data == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return r.data.TestAgent(p, r.userAgent)
}

// CrawlDelay returns the Crawl-delay directive, or 0.
func (r *Robots) CrawlDelay() time.Duration {
	if r == nil || r.group == nil {
		return 0
	}
	return r.group.CrawlDelay
}

// Sitemaps returns the Sitemap directives.
func (r *Robots) Sitemaps() []string {
	if r == nil || r.data == nil {
		return nil
	}
	return append([]string(nil), r.data.Sitemaps...)
}

// RobotsURL returns the robots.txt location for the site of pageURL.
func RobotsURL(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String(), nil
}

// SitemapURL returns the conventional /sitemap.xml location for the site of pageURL.
func SitemapURL(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/sitemap.xml"}).String(), nil
}
