// Package aggregate merges per-page extraction results into one site record.
//
// Fold is a pure function: it never mutates its inputs and depends on nothing
// but its arguments.
//
// # Merge policy
//
// Scalar fields:
//   - an unset field takes the new value
//   - when both values are set and differ and both declare a confidence,
//     the higher confidence wins
//   - otherwise the value from the earlier discovered page (lower Page.Seq) wins
//
// List fields are concatenated with deduplication by exact value and kept in
// discovery order.
//
// Because a pairwise rule that mixes confidence and discovery order is not
// transitive, FoldAll folds pages in discovery order and is the way to build
// a final record that does not depend on completion order.
package aggregate
