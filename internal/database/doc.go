// Package database provides SQLite-based storage for crawl runs.
//
// CrawlDB stores:
//   - runs: one row per crawl with its status, counters and aggregated record
//   - pages: every admitted page of a run with its terminal state
//   - edges: the parent to child links observed during a run
//
// The database is a single file (sitecrawl.db) in the XDG data directory,
// opened through the CGO-free modernc.org/sqlite driver and queried with sqlx.
package database
