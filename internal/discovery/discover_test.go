package discovery

import (
	"testing"
)

const restaurantHome = `<!DOCTYPE html>
<html>
<head><title>Cafe</title><link rel="stylesheet" href="/style.css"><link rel="alternate" href="/en"></head>
<body>
  <nav>
    <a href="/menu/">Our <b>Menu</b></a>
    <a href="about">About</a>
    <a href="/contact#form">Contact</a>
    <a href="/menu">Menu again</a>
    <a href="mailto:info@cafe.example">Mail</a>
    <a href="tel:+15550100">Call</a>
    <a href="javascript:void(0)">JS</a>
    <a href="#top">Top</a>
    <a href="/files/menu.pdf">PDF</a>
    <a href="https://other.example/partner">Partner</a>
    <a href="http://[::1">Broken</a>
  </nav>
  <map><area href="/map" alt="map"></map>
</body>
</html>`

func TestDiscover(t *testing.T) {
	t.Parallel()

	t.Run("links in document order without dedup", func(t *testing.T) {
		t.Parallel()

		links := Discover([]byte(restaurantHome), "https://cafe.example/", nil, nil)
		want := []string{
			"https://cafe.example/en",
			"https://cafe.example/menu",
			"https://cafe.example/about",
			"https://cafe.example/contact",
			"https://cafe.example/menu",
			"https://cafe.example/files/menu.pdf",
			"https://other.example/partner",
			"https://cafe.example/map",
		}
		if len(links) != len(want) {
			t.Fatalf("got %d links %v, want %d", len(links), links, len(want))
		}
		for i, l := range links {
			if l.URL != want[i] {
				t.Errorf("links[%d] = %q, want %q", i, l.URL, want[i])
			}
		}
		if links[1].Text != "Our Menu" {
			t.Errorf("anchor text = %q, want %q", links[1].Text, "Our Menu")
		}
		if links[1].Href != "https://cafe.example/menu/" {
			t.Errorf("href = %q, want the written spelling", links[1].Href)
		}
		if links[3].Href != "https://cafe.example/contact" {
			t.Errorf("href = %q, want fragment dropped", links[3].Href)
		}
	})

	t.Run("exclude takes precedence over include", func(t *testing.T) {
		t.Parallel()

		links := Discover([]byte(restaurantHome), "https://cafe.example/", []string{"/menu/*", "/files/*"}, []string{"*.pdf"})
		for _, l := range links {
			if l.URL == "https://cafe.example/files/menu.pdf" {
				t.Error("excluded pdf was returned")
			}
		}
		if len(links) != 2 {
			t.Errorf("got %d links, want 2 menu links: %v", len(links), links)
		}
	})

	t.Run("include scores earlier patterns higher", func(t *testing.T) {
		t.Parallel()

		links := Discover([]byte(restaurantHome), "https://cafe.example/", []string{"/menu*", "/about", "/contact"}, nil)
		scores := map[string]int{}
		for _, l := range links {
			scores[l.URL] = l.Score
		}
		if scores["https://cafe.example/menu"] != 3 {
			t.Errorf("menu score = %d, want 3", scores["https://cafe.example/menu"])
		}
		if scores["https://cafe.example/contact"] != 1 {
			t.Errorf("contact score = %d, want 1", scores["https://cafe.example/contact"])
		}
	})

	t.Run("base href is honoured", func(t *testing.T) {
		t.Parallel()

		doc := `<html><head><base href="https://cafe.example/sub/"></head><body><a href="page">x</a></body></html>`
		links := Discover([]byte(doc), "https://cafe.example/", nil, nil)
		if len(links) != 1 || links[0].URL != "https://cafe.example/sub/page" {
			t.Errorf("got %v, want sub/page", links)
		}
	})

	t.Run("malformed or empty input yields empty list", func(t *testing.T) {
		t.Parallel()

		for _, in := range [][]byte{nil, {}, []byte("<<<>>>"), {0xff, 0xfe, 0x00}} {
			links := Discover(in, "https://cafe.example/", nil, nil)
			if links == nil {
				t.Error("expected non-nil empty slice")
			}
			if len(links) != 0 {
				t.Errorf("expected no links, got %v", links)
			}
		}
	})
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/menu/*", "/menu", true},
		{"/menu/*", "/menu/lunch", true},
		{"/menu/*", "/menus", false},
		{"*.pdf", "/files/a.pdf", true},
		{"*.pdf", "/files/a.pdfx", false},
		{"/a?out", "/about", true},
		{"/about", "/about", true},
		{"/about", "/about/team", false},
		{"menu*", "/x/menu-2024", true},
		{"[", "/x", false},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.path); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}

func TestFilterValidate(t *testing.T) {
	t.Parallel()

	if err := NewFilter([]string{"/menu/*"}, []string{"*.pdf"}).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := NewFilter([]string{"/menu/["}, nil).Validate(); err == nil {
		t.Error("expected ErrBadPattern")
	}
	if !NewFilter([]string{"  "}, nil).Allows("/anything") {
		t.Error("blank include patterns should be ignored")
	}
}
