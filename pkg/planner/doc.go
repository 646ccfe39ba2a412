/*
Package planner contains the replacement decision state machine.

The planner is the algorithmic core of Roller. Given one group snapshot it
produces exactly one Plan: do nothing, wait, raise capacity by one, or mark
one stale instance unhealthy. It holds no state between calls and performs
no I/O, so a decision can be recomputed at any time from fresh provider
reads. That statelessness is what makes overlapping invocations and
controller restarts safe: there is nothing to resume, only something to
re-derive.

# States

Evaluated in strict priority order on every pass:

	┌─────────────┐   no stale instances          ┌─────────────────────┐
	│  Converged  │──────────────────────────────▶│ restore saved max,  │
	└─────────────┘                               │ clear marker, rest  │
	       │ stale remain                         └─────────────────────┘
	       ▼
	┌───────────────┐  any member pending, hook-waiting, unhealthy, or
	│ AwaitingHealth│  failing a load balancer check → do nothing, wait
	└───────────────┘  for the next trigger
	       │ all settled
	       ▼
	┌───────────────┐  no replacement surplus → desired+1; when
	│ NeedsCapacity │  desired == max and the group is filled, also
	└───────────────┘  max+1, recording the original max in the marker
	                   (a group still filling toward desired waits here)
	       │ surplus up and healthy
	       ▼
	┌────────────────┐  mark the oldest stale instance unhealthy; the
	│ ReadyToReplace │  provider terminates it and launches a replacement
	└────────────────┘

Ordering is the safety argument: capacity is always raised before anything
is taken out of service, so a group is never left under capacity, and the
settling state guarantees at most one instance is in flight per group at
any time.

# Eligibility

A group is managed only when it carries the opt-in tag. The closed,
case-insensitive token set {0, disabled, false, no, off} disables it; every
other value, including empty, enables it. Malformed values therefore fail
open, which is deliberate: the only way to switch replacement off is to
write one of the recognized tokens.

The saved-max-size marker is the planner's one durable artifact. It lives
as a tag on the group so it survives controller restarts, is written only
when the ceiling is first raised, is never overwritten, and is removed by
the converged cleanup that restores the original max.
*/
package planner
