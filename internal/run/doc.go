// Package run manages asynchronous crawl runs.
//
// A Manager starts each crawl in its own goroutine and hands back a run ID.
// Callers poll progress, wait for completion, cancel, and collect the final
// result by ID. Every run owns its Site; the Manager only indexes them.
//
// Example:
//
//	m := run.NewManager(crawler.New())
//	id, err := m.StartCrawl(ctx, "https://cafe.example/", config.NewCrawl())
//	if err != nil {
//		return err
//	}
//	if err := m.Wait(ctx, id); err != nil {
//		return err
//	}
//	result, err := m.GetResult(id)
package run
