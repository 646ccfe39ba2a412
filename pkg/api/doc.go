// Package api is the controller's HTTP surface: liveness and readiness
// probes, Prometheus metrics, the notification webhook, and read-only
// access to the pass history. Nothing here mutates group state directly;
// the webhook only publishes a hint the trigger layer may act on.
package api
