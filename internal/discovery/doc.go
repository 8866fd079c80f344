// Package discovery finds candidate pages to crawl.
//
// # Components
//
//   - Discover: extracts, normalizes, filters and scores the links of one HTML page
//   - Filter: compiled include and exclude glob patterns over URL paths
//   - Robots: robots.txt policy for a single user agent
//   - ParseSitemap: reads sitemap urlset and sitemapindex documents
//
// Discover never deduplicates and never fails: a page that cannot be parsed
// simply yields no links. Deduplication belongs to the frontier.
//
// # Patterns
//
// Include and exclude patterns use glob syntax and are matched against the
// URL path:
//
//	/menu/*   matches /menu and anything below it
//	*.pdf     matches any path ending in .pdf
//	/a?out    matches /about
//
// Exclude takes precedence over include. An empty include set admits every path.
package discovery
