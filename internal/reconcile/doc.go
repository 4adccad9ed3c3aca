// Package reconcile merges push-derived reducer state with pulled REST
// snapshots into one authoritative per-market view.
//
// The merge rules are fixed: push state wins whenever present, pulled
// data only fills the gap before the first push frame arrives, and no
// two trades with the same id survive a merge. Merges are pure functions
// of their two inputs, recomputed on every read rather than mutated
// incrementally.
//
// The pull side runs on a per-market generation counter: a snapshot that
// finishes after a newer refresh started is discarded, so the stored
// pulled state is always from the latest completed request.
package reconcile
