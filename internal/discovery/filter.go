package discovery

import (
	"fmt"
	"path"
	"strings"
)

// Filter holds include and exclude glob patterns.
type Filter struct {
	include []string
	exclude []string
}

// NewFilter returns a filter over the given patterns.
// Blank patterns are dropped.
func NewFilter(include, exclude []string) Filter {
	return Filter{include: compact(include), exclude: compact(exclude)}
}

// Validate reports the first pattern with invalid glob syntax.
func (f Filter) Validate() error {
	for _, p := range append(append([]string(nil), f.include...), f.exclude...) {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("%w: %q", ErrBadPattern, p)
		}
	}
	return nil
}

// Allows reports whether urlPath passes the filter.
func (f Filter) Allows(urlPath string) bool {
	_, ok := f.Score(urlPath)
	return ok
}

// Score reports whether urlPath passes the filter and, if so, its priority.
// The score is len(include) minus the index of the first matching include
// pattern, so earlier patterns score higher. Without include patterns every
// admitted path scores 0.
func (f Filter) Score(urlPath string) (int, bool) {
	if urlPath == "" {
		urlPath = "/"
	}
	for _, p := range f.exclude {
		if matchPattern(p, urlPath) {
			return 0, false
		}
	}
	if len(f.include) == 0 {
		return 0, true
	}
	for i, p := range f.include {
		if matchPattern(p, urlPath) {
			return len(f.include) - i, true
		}
	}
	return 0, false
}

// matchPattern checks if a URL path matches a glob pattern.
func matchPattern(pattern, urlPath string) bool {
	// "/admin/*" matches "/admin" and everything below it.
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(urlPath, prefix+"/") || urlPath == prefix {
			return true
		}
	}

	// "*.pdf" matches by suffix at any depth.
	if strings.HasPrefix(pattern, "*.") && !strings.ContainsAny(pattern[2:], "*?[") {
		if strings.HasSuffix(urlPath, pattern[1:]) {
			return true
		}
	}

	if matched, err := path.Match(pattern, urlPath); err == nil && matched {
		return true
	}

	// Slash-free patterns also apply to the last segment.
	if strings.ContainsAny(pattern, "*?") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(urlPath)); err == nil && matched {
			return true
		}
	}

	return false
}

func compact(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
