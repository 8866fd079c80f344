// Package model defines the core data structures shared by the crawl engine.
//
// This package contains the following main types:
//   - Page: one URL's lifecycle record in a crawl
//   - PageState: the page state machine (queued, processing, terminal states)
//   - Edge: a parent to child discovery relationship
//   - Extraction: what an extractor returned for one page
//   - AggregatedRecord: the site-level merge of all page extractions
//
// Models live in their own package so the frontier, aggregator, pipeline and
// report packages can share them without import cycles.
package model
