// Package extract turns fetched page content into structured fields.
//
// The crawl engine never interprets page content itself. It hands each
// fetched page to an Extractor and folds whatever fields come back.
//
//   - DefaultExtractor reads generic site facts with goquery and
//     go-readability: name, title, description, summary, address, and the
//     emails, phones and headings lists
//   - RemoteExtractor posts the page to an HTTP endpoint (for example an
//     LLM-backed service) and decodes its JSON field map
//   - Func adapts a plain function
//
// An extractor error never changes a page's fetch outcome; the crawler
// records it as the page's extraction error.
package extract
