// Package reconciler drives the replacement loop. One call to Reconcile
// is one pass: snapshot the groups, drop the unmanaged ones, then for each
// managed group derive the single next step and apply it. Passes carry no
// state between them; convergence comes from repetition, with each pass
// moving every group at most one instance closer to its target
// configuration.
//
// Groups reconcile concurrently under a parallelism bound, and a pass-wide
// time budget turns slow providers into deferred groups instead of
// overlapping passes.
package reconciler
