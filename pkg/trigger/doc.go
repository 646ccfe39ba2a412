// Package trigger feeds the reconciler its passes. Two sources exist: a
// periodic ticker that scans every group, and a dispatcher that narrows
// inbound provider notifications down to the one group they concern.
//
// Both sources call the same reconcile function, and neither carries any
// state into it. The ticker alone is sufficient for correctness; the
// dispatcher only shortens the time between a change and the pass that
// reacts to it.
package trigger
