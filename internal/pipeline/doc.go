// Package pipeline runs one claimed page through a fixed sequence of steps.
//
// A page is fetched, its redirect is resolved against the frontier, its links
// are discovered and offered to the queue, and its content is extracted. Each
// step receives the same Task and records its outcome there. A step that
// decides the page is finished (a failed fetch, a redirect onto a page already
// seen) halts the task and the remaining steps are skipped.
//
// BatchProcessor crawls several sites concurrently with errgroup.
package pipeline
