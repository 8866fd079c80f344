package discovery

import (
	"testing"
	"time"
)

func TestRobots(t *testing.T) {
	t.Parallel()

	body := []byte("User-agent: *\nDisallow: /private\nCrawl-delay: 2\n\nUser-agent: sitecrawl\nDisallow: /admin\n\nSitemap: https://cafe.example/sitemap.xml\n")

	t.Run("specific group", func(t *testing.T) {
		t.Parallel()

		r, err := ParseRobots(200, body, "sitecrawl")
		if err != nil {
			t.Fatalf("ParseRobots() error = %v", err)
		}
		if r.Allowed("https://cafe.example/admin/users") {
			t.Error("admin should be disallowed for sitecrawl")
		}
		if !r.Allowed("https://cafe.example/menu") {
			t.Error("menu should be allowed")
		}
		if got := r.Sitemaps(); len(got) != 1 || got[0] != "https://cafe.example/sitemap.xml" {
			t.Errorf("Sitemaps() = %v", got)
		}
	})

	t.Run("wildcard group", func(t *testing.T) {
		t.Parallel()

		r, err := ParseRobots(200, body, "otherbot")
		if err != nil {
			t.Fatalf("ParseRobots() error = %v", err)
		}
		if r.Allowed("https://cafe.example/private/x") {
			t.Error("private should be disallowed")
		}
		if r.CrawlDelay() != 2*time.Second {
			t.Errorf("CrawlDelay() = %v, want 2s", r.CrawlDelay())
		}
	})

	t.Run("missing robots allows all", func(t *testing.T) {
		t.Parallel()

		r, err := ParseRobots(404, nil, "sitecrawl")
		if err != nil {
			t.Fatalf("ParseRobots() error = %v", err)
		}
		if !r.Allowed("https://cafe.example/admin") {
			t.Error("404 robots should allow everything")
		}
	})

	t.Run("nil policy allows all", func(t *testing.T) {
		t.Parallel()

		var r *Robots
		if !r.Allowed("https://cafe.example/x") {
			t.Error("nil robots should allow")
		}
		if r.Sitemaps() != nil {
			t.Error("nil robots should have no sitemaps")
		}
	})
}

func TestRobotsURL(t *testing.T) {
	t.Parallel()

	got, err := RobotsURL("https://cafe.example/menu?x=1")
	if err != nil || got != "https://cafe.example/robots.txt" {
		t.Errorf("RobotsURL() = %q, %v", got, err)
	}
	got, err = SitemapURL("http://cafe.example:8080/a")
	if err != nil || got != "http://cafe.example:8080/sitemap.xml" {
		t.Errorf("SitemapURL() = %q, %v", got, err)
	}
}

func TestRobotsServerError(t *testing.T) {
	t.Parallel()

	r, err := ParseRobots(503, nil, "sitecrawl")
	if err != nil {
		t.Fatalf("ParseRobots() error = %v", err)
	}
	if r.Allowed("https://cafe.example/") {
		t.Error("5xx robots should disallow everything")
	}
}
