// Package crawler orchestrates the crawl of one site.
//
// A Site owns the per-run state: the frontier queue and its relationship
// tracker, the progress reporter, and the record folded so far. Crawler.Run
// seeds the frontier (optionally from the site's sitemap), then runs a fixed
// number of workers. Each worker claims a page, passes it through the page
// pipeline (fetch, redirect, discover, enqueue, extract) and completes it.
//
// # Cancellation
//
// Cancelling the context given to Run stops further claims. Pages already
// claimed finish under their own per-page deadlines, and Run returns only
// after every claimed page reached a terminal state. The site is then
// reported as cancelled.
//
// # Usage
//
//	site, err := crawler.NewSite("https://cafe.example/", config.NewCrawl())
//	if err != nil {
//	    return err
//	}
//	result, err := crawler.New().Run(ctx, site)
package crawler
