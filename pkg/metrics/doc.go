/*
Package metrics provides Prometheus metrics for Roller.

All collectors are package-level variables registered in init() and exposed
through Handler() on the controller's HTTP server at /metrics.

# Metrics

Pass metrics:

  - roller_passes_total{trigger}: passes by trigger (tick, notification, manual)
  - roller_pass_duration_seconds: full pass latency histogram

Group metrics:

  - roller_groups_reconciled_total{result}: per-group outcomes
  - roller_group_duration_seconds{result}: per-group latency
  - roller_groups_awaiting_health: groups currently mid-replacement
  - roller_stale_instances{group}: stale instance count per group

Planner and provider metrics:

  - roller_decisions_total{decision}: decisions produced by the planner
  - roller_provider_calls_total{operation,status}: cloud API call results
  - roller_notifications_total{disposition}: webhook payload handling

# Usage

Timing an operation:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PassDuration)

Counting an outcome:

	metrics.GroupsReconciled.WithLabelValues(string(outcome.Result)).Inc()

# Alerting

Useful alert starting points:

  - rate(roller_groups_reconciled_total{result=~"error"}[10m]) > 0
  - roller_groups_awaiting_health stuck above 0 for longer than the
    longest expected instance startup
  - absent(roller_passes_total) — the tick loop has stopped
*/
package metrics
