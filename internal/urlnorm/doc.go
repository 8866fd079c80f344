// Package urlnorm canonicalizes URLs so that equivalent spellings of the
// same page collapse to one identity.
//
// Every URL that enters the crawl frontier passes through Normalize. Two
// normalized URLs that compare equal are the same page for deduplication,
// relationship tracking and aggregation.
//
// # Rules
//
//   - scheme and host are lowercased, non-ASCII hosts are converted to punycode
//   - default ports (80 for http, 443 for https) are removed
//   - the fragment is removed
//   - an empty path becomes "/" and a trailing slash is stripped from any other path
//   - query parameters are sorted by key, repeated values keep their order
//
// Normalize is idempotent: Normalize(Normalize(u)) == Normalize(u).
package urlnorm
