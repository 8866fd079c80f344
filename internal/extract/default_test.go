package extract

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

const aboutPage = `<!DOCTYPE html>
<html>
<head>
  <title>About us | Cafe Rouge</title>
  <meta property="og:site_name" content="Café  Rouge">
  <meta name="description" content="A small cafe by the river.">
</head>
<body>
  <h1>About Cafe Rouge</h1>
  <h2>Our story</h2>
  <p>We have served coffee since 1999.</p>
  <address>12 River Street,
    Springfield</address>
  <a href="mailto:Info@Cafe.example?subject=hi">Mail us</a>
  <a href="mailto:info@cafe.example">Mail again</a>
  <a href="tel:+1-555-0100">Call</a>
</body>
</html>`

func TestDefaultExtractor(t *testing.T) {
	t.Parallel()

	e := &DefaultExtractor{}
	ex, err := e.Extract(context.Background(), []byte(aboutPage), "https://cafe.example/about", SiteContext{Host: "cafe.example"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	scalars := map[string]string{
		FieldName:        "Café Rouge",
		FieldTitle:       "About us | Cafe Rouge",
		FieldDescription: "A small cafe by the river.",
		FieldAddress:     "12 River Street, Springfield",
	}
	for name, want := range scalars {
		if got := ex.Fields[name].Value; got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if c := ex.Fields[FieldName].Confidence; c == nil || *c != confidenceSiteName {
		t.Errorf("name confidence = %v, want %v", c, confidenceSiteName)
	}

	lists := map[string][]string{
		FieldEmails:   {"info@cafe.example"},
		FieldPhones:   {"+1-555-0100"},
		FieldHeadings: {"About Cafe Rouge", "Our story"},
	}
	for name, want := range lists {
		if got := ex.Fields[name].Values; !reflect.DeepEqual(got, want) {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestDefaultExtractorNameFallback(t *testing.T) {
	t.Parallel()

	e := &DefaultExtractor{}
	ex, err := e.Extract(context.Background(), []byte(`<html><head><title>Menu - Cafe Rouge</title></head></html>`), "https://cafe.example/menu", SiteContext{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := ex.Fields[FieldName].Value; got != "Cafe Rouge" {
		t.Errorf("name = %q, want title suffix", got)
	}
	if c := ex.Fields[FieldName].Confidence; c == nil || *c != confidenceTitle {
		t.Errorf("name confidence = %v, want %v", c, confidenceTitle)
	}
}

func TestDefaultExtractorCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDefaultExtractor().Extract(ctx, []byte(aboutPage), "https://cafe.example/", SiteContext{})
	if !errors.Is(err, ErrExtractionFailed) || !errors.Is(err, context.Canceled) {
		t.Errorf("Extract() error = %v, want ErrExtractionFailed wrapping context.Canceled", err)
	}
}

func TestClean(t *testing.T) {
	t.Parallel()

	// "e" followed by a combining acute accent composes to U+00E9.
	if got := clean("  Cafe\u0301 \n\t Rouge "); got != "Caf\u00e9 Rouge" {
		t.Errorf("clean() = %q", got)
	}
}
