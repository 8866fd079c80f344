// Package fetch retrieves page content for the crawler.
//
// The Fetcher interface is the only way the crawl engine talks to the
// network. Two implementations are provided:
//
//   - HTTPFetcher: plain net/http GET with redirect chain recording,
//     charset decoding to UTF-8 and a body size limit
//   - BrowserFetcher: headless Chrome through chromedp, for sites that
//     render their content with JavaScript
//
// Deadlines are carried by the context. When a deadline expires after some
// of the body was read, Fetch returns both a Response with Partial set and
// an error wrapping ErrFetchTimeout so the caller can still process the
// partial content.
package fetch
