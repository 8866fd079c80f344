package config

import "time"

// SiteConfig holds configuration overrides for one host.
// Pointer fields distinguish "unset" from an explicit zero.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	MaxPages    *int `yaml:"maxPages,omitempty"`
	MaxDepth    *int `yaml:"maxDepth,omitempty"`
	Concurrency *int `yaml:"concurrency,omitempty"`

	// RateLimitMS is the minimum interval between dispatches in milliseconds.
	RateLimitMS *int `yaml:"rateLimitMs,omitempty"`

	// TimeoutMS is the per-page timeout in milliseconds.
	TimeoutMS *int `yaml:"timeoutMs,omitempty"`

	// Include are URL path patterns to follow. Glob syntax.
	Include []string `yaml:"include,omitempty"`

	// Exclude are URL path patterns to skip. Glob syntax.
	Exclude []string `yaml:"exclude,omitempty"`

	RespectRobots *bool `yaml:"respectRobots,omitempty"`
	UseSitemap    *bool `yaml:"useSitemap,omitempty"`

	// QueueOrder is "fifo" or "priority".
	QueueOrder string `yaml:"queueOrder,omitempty"`
}

// File represents the structure of the .sitecrawl configuration file.
type File struct {
	// Sites maps host names (e.g., "cafe.example") to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to all sites unless overridden by a site entry.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	if len(site.Include) > 0 {
		result.Include = site.Include
	}
	if len(site.Exclude) > 0 {
		result.Exclude = site.Exclude
	}
	if site.QueueOrder != "" {
		result.QueueOrder = site.QueueOrder
	}
	overrideInt(&result.MaxPages, site.MaxPages)
	overrideInt(&result.MaxDepth, site.MaxDepth)
	overrideInt(&result.Concurrency, site.Concurrency)
	overrideInt(&result.RateLimitMS, site.RateLimitMS)
	overrideInt(&result.TimeoutMS, site.TimeoutMS)
	if site.RespectRobots != nil {
		result.RespectRobots = site.RespectRobots
	}
	if site.UseSitemap != nil {
		result.UseSitemap = site.UseSitemap
	}

	return result
}

func overrideInt(dst **int, src *int) {
	if src != nil {
		*dst = src
	}
}

// Apply writes the set fields of s over c.
func (s SiteConfig) Apply(c *Crawl) {
	if s.Cookie != "" {
		c.Cookie = s.Cookie
	}
	if s.UserAgent != "" {
		c.UserAgent = s.UserAgent
	}
	if len(s.Headers) > 0 {
		merged := make(map[string]string, len(c.Headers)+len(s.Headers))
		for k, v := range c.Headers {
			merged[k] = v
		}
		for k, v := range s.Headers {
			merged[k] = v
		}
		c.Headers = merged
	}
	if s.MaxPages != nil {
		c.MaxPages = *s.MaxPages
	}
	if s.MaxDepth != nil {
		c.MaxDepth = *s.MaxDepth
	}
	if s.Concurrency != nil {
		c.Concurrency = *s.Concurrency
	}
	if s.RateLimitMS != nil {
		c.RateLimit = time.Duration(*s.RateLimitMS) * time.Millisecond
	}
	if s.TimeoutMS != nil {
		c.PerPageTimeout = time.Duration(*s.TimeoutMS) * time.Millisecond
	}
	if len(s.Include) > 0 {
		c.Include = s.Include
	}
	if len(s.Exclude) > 0 {
		c.Exclude = s.Exclude
	}
	if s.RespectRobots != nil {
		c.RespectRobots = *s.RespectRobots
	}
	if s.UseSitemap != nil {
		c.UseSitemap = *s.UseSitemap
	}
	if s.QueueOrder != "" {
		c.QueueOrder = s.QueueOrder
	}
}
