package log

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameter names whose values are masked in
// logged URLs.
var sensitiveParams = []string{
	"token", "key", "sig", "signature", "secret", "password", "auth", "session", "code",
}

// sanitizeURL masks user info and sensitive query parameters of an absolute
// http(s) URL. It reports false when s is not such a URL or nothing was masked.
func sanitizeURL(s string) (string, bool) {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}

	hadUser := u.User != nil
	u.User = nil
	changed := hadUser

	if u.RawQuery != "" {
		parts := strings.Split(u.RawQuery, "&")
		for i, p := range parts {
			name, _, found := strings.Cut(p, "=")
			if found && isSensitiveParam(name) {
				parts[i] = name + "=" + MaskValue
				changed = true
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}

	if !changed {
		return "", false
	}
	out := u.String()
	if hadUser {
		out = strings.Replace(out, "://", "://"+MaskValue+"@", 1)
	}
	return out, true
}

func isSensitiveParam(name string) bool {
	name = strings.ToLower(name)
	if unescaped, err := url.QueryUnescape(name); err == nil {
		name = unescaped
	}
	for _, p := range sensitiveParams {
		if name == p || strings.HasSuffix(name, "_"+p) || strings.HasPrefix(name, p+"_") {
			return true
		}
	}
	return false
}
