package urlnorm

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Normalize returns the canonical form of raw. Relative references are
// resolved against base; base may be empty when raw is already absolute.
func Normalize(raw, base string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	if !u.IsAbs() || u.Host == "" {
		base = strings.TrimSpace(base)
		if base == "" {
			return "", fmt.Errorf("%w: relative url %q without base", ErrInvalidURL, raw)
		}
		b, err := url.Parse(base)
		if err != nil || !b.IsAbs() {
			return "", fmt.Errorf("%w: unusable base %q", ErrInvalidURL, base)
		}
		u = b.ResolveReference(u)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	host, err := normalizeHost(u.Scheme, u.Host)
	if err != nil {
		return "", err
	}
	u.Host = host
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	normalizePath(u)
	normalizeQuery(u)

	return u.String(), nil
}

// MustNormalize is like Normalize but panics on error.
// Use only with constant inputs.
func MustNormalize(raw string) string {
	n, err := Normalize(raw, "")
	if err != nil {
		panic(err)
	}
	return n
}

func normalizeHost(scheme, hostport string) (string, error) {
	host := hostport
	port := ""
	if h, p, err := net.SplitHostPort(hostport); err == nil {
		host, port = h, p
	} else {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if !isASCII(host) {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
		}
		host = ascii
	}

	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]", nil
		}
		return host, nil
	}
	return net.JoinHostPort(host, port), nil
}

func normalizePath(u *url.URL) {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}

	decoded, err := url.PathUnescape(p)
	if err != nil {
		decoded = p
	}
	u.Path = decoded
	u.RawPath = ""
	if u.EscapedPath() != p {
		u.RawPath = p
	}
}

// trackingParams are campaign parameters that never select content.
var trackingParams = map[string]bool{
	"gclid":   true,
	"fbclid":  true,
	"msclkid": true,
	"mc_cid":  true,
	"mc_eid":  true,
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	return trackingParams[key] || strings.HasPrefix(key, "utm_")
}

func normalizeQuery(u *url.URL) {
	u.ForceQuery = false
	if u.RawQuery == "" {
		return
	}
	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return
	}
	for key := range values {
		if isTrackingParam(key) {
			delete(values, key)
		}
	}
	// Encode sorts by key and keeps per-key value order.
	u.RawQuery = values.Encode()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// SameHost reports whether a and b share the same host (including port).
// Unparseable inputs are never the same host.
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Host != "" && strings.EqualFold(ua.Host, ub.Host)
}

// Host returns the host component of a normalized URL, or "" on failure.
func Host(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// Path returns the path component of a normalized URL, or "/" on failure.
func Path(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Path == "" {
		return "/"
	}
	return parsed.Path
}
