/*
Package types defines the shared data model for Roller.

Everything here is a snapshot: a Group and its Instances describe provider
state as observed at the start of one reconciliation pass, never live
objects. The controller re-fetches snapshots on every pass and derives all
decisions from them, so no type in this package carries mutable runtime
state or synchronization.

Core types:

  - Group: a managed compute group with capacity bounds, a target
    configuration fingerprint, and its member instances
  - Instance: one group member with lifecycle state, health, launch time,
    and load balancer health observations
  - ReplacementConfig: the per-group opt-in settings parsed from tags
  - Decision: the single next action chosen by the planner
  - Outcome / PassRecord: per-group and per-pass observability records

Instance readiness is derived by Instance.Status in severity order:
lifecycle state, group health status, target group health, classic load
balancer health. An instance is Ready only when all four pass.
*/
package types
