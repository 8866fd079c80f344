package urlnorm

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		base string
		want string
	}{
		{name: "lowercase scheme and host", raw: "HTTP://Example.COM/About", want: "http://example.com/About"},
		{name: "empty path becomes root", raw: "https://example.com", want: "https://example.com/"},
		{name: "root slash kept", raw: "https://example.com/", want: "https://example.com/"},
		{name: "trailing slash stripped", raw: "https://example.com/menu/", want: "https://example.com/menu"},
		{name: "fragment removed", raw: "https://example.com/about#team", want: "https://example.com/about"},
		{name: "default http port removed", raw: "http://example.com:80/a", want: "http://example.com/a"},
		{name: "default https port removed", raw: "https://example.com:443/a", want: "https://example.com/a"},
		{name: "non default port kept", raw: "http://example.com:8080/a", want: "http://example.com:8080/a"},
		{name: "query sorted", raw: "https://example.com/s?b=2&a=1", want: "https://example.com/s?a=1&b=2"},
		{name: "repeated keys keep order", raw: "https://example.com/s?k=2&a=0&k=1", want: "https://example.com/s?a=0&k=2&k=1"},
		{name: "empty query dropped", raw: "https://example.com/s?", want: "https://example.com/s"},
		{name: "tracking params dropped", raw: "https://example.com/menu?utm_source=ig&UTM_Medium=social&day=mon&fbclid=x&gclid=y", want: "https://example.com/menu?day=mon"},
		{name: "only tracking params", raw: "https://example.com/?utm_campaign=spring&msclkid=1", want: "https://example.com/"},
		{name: "relative resolved", raw: "../contact/", base: "https://example.com/menu/lunch", want: "https://example.com/contact"},
		{name: "protocol relative", raw: "//cdn.example.com/x", base: "https://example.com/", want: "https://cdn.example.com/x"},
		{name: "whitespace trimmed", raw: "  https://example.com/a  ", want: "https://example.com/a"},
		{name: "idna host", raw: "https://bücher.example/", want: "https://xn--bcher-kva.example/"},
		{name: "ipv6 host", raw: "http://[::1]/x", want: "http://[::1]/x"},
		{name: "escaped path kept", raw: "https://example.com/a%2Fb/", want: "https://example.com/a%2Fb"},
		{name: "userinfo removed", raw: "https://user:pw@example.com/x", want: "https://example.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Normalize(tt.raw, tt.base)
			if err != nil {
				t.Fatalf("Normalize(%q, %q) error = %v", tt.raw, tt.base, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.raw, tt.base, got, tt.want)
			}
		})
	}
}

func TestNormalizeInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		base string
	}{
		{name: "empty", raw: ""},
		{name: "relative without base", raw: "/about"},
		{name: "unsupported scheme", raw: "ftp://example.com/file"},
		{name: "mailto", raw: "mailto:info@example.com"},
		{name: "javascript", raw: "javascript:void(0)", base: "https://example.com/"},
		{name: "missing host", raw: "http:///path"},
		{name: "bad escape", raw: "http://example.com/%zz"},
		{name: "relative base", raw: "about", base: "/root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Normalize(tt.raw, tt.base)
			if !errors.Is(err, ErrInvalidURL) {
				t.Errorf("Normalize(%q, %q) error = %v, want ErrInvalidURL", tt.raw, tt.base, err)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"HTTP://Example.COM:80/Menu/?z=1&a=2#x",
		"https://example.com",
		"https://example.com/a%20b/",
		"https://example.com/a%2Fb",
		"https://example.com/s?q=hello+world&q=again",
		"https://bücher.example/über/",
		"http://example.com:8080/?",
		"https://example.com/s?flag",
	}

	for _, in := range inputs {
		first, err := Normalize(in, "")
		if err != nil {
			t.Fatalf("Normalize(%q) error = %v", in, err)
		}
		second, err := Normalize(first, "")
		if err != nil {
			t.Fatalf("Normalize(%q) error = %v", first, err)
		}
		if first != second {
			t.Errorf("not idempotent: %q -> %q -> %q", in, first, second)
		}
	}
}

func TestSameHost(t *testing.T) {
	t.Parallel()

	if !SameHost("https://example.com/a", "https://EXAMPLE.com/b") {
		t.Error("expected same host")
	}
	if SameHost("https://example.com/a", "https://other.com/a") {
		t.Error("expected different hosts")
	}
	if SameHost("https://example.com/a", "https://example.com:8443/a") {
		t.Error("port should distinguish hosts")
	}
}

func TestPath(t *testing.T) {
	t.Parallel()

	if got := Path("https://example.com/menu/lunch"); got != "/menu/lunch" {
		t.Errorf("Path() = %q", got)
	}
	if got := Path("https://example.com"); got != "/" {
		t.Errorf("Path() = %q, want /", got)
	}
}
