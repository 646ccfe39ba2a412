/*
Package provider defines the gateway interface between Roller and the cloud
provider.

The controller never owns instances or groups; it observes snapshots and
issues a small set of mutations through this interface. Keeping the surface
narrow makes the reconciliation pipeline testable against the in-memory
implementation in provider/fake while provider/aws talks to the real
services.

Reads tolerate partial data: an instance that disappears between a group
listing and a detail query is treated as already replaced, not an error.
Transient failures (throttling, network) are retried with bounded backoff
inside implementations; exhaustion surfaces as an error for the one group
being reconciled and never aborts a whole pass.
*/
package provider
