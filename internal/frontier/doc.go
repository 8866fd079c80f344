// Package frontier owns the set of pages a crawl knows about.
//
// # Components
//
//   - Tracker: records parent to child discovery edges and derives depth,
//     canonical parent and children counts
//   - Queue: the page state machine, deduplication, page and depth bounds,
//     ordering, and the per-site dispatch rate limit
//
// # State machine
//
// Every page moves queued -> processing -> one terminal state (success,
// failed, timeout, redirected). Only Claim moves a page to processing and
// only Complete moves it to a terminal state.
//
// # Bounds
//
// A page is admitted only while fewer than max_pages pages have been seen and
// only when its depth does not exceed max_depth. Rejected discoveries still
// leave an edge in the Tracker. Rejections are reported as sentinel errors
// by Admit and as false by Enqueue; they never reach the caller of a crawl.
//
// Seeds have depth 0. A URL enqueued manually without a parent is an orphan:
// its depth is unknown (model.NoDepth) and it roots its own subtree for the
// depth bound.
package frontier
