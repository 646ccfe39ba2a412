// Package journal persists the outcome history of reconciliation passes
// in an embedded bbolt database. Records are append-only, pruned to a
// configurable retention, and served read-only through the history
// command and the HTTP API. Nothing in the decision path depends on the
// journal: deleting the file loses history, not correctness.
package journal
