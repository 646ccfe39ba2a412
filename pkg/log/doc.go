/*
Package log provides structured logging for Roller using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers and configurable log levels. All logs
include timestamps and support filtering by severity level.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Structured logging:

	log.Logger.Info().
		Str("group", "web").
		Str("decision", "scale-out").
		Msg("capacity raised")

Context loggers:

	reconcileLog := log.WithComponent("reconciler")
	reconcileLog.Info().Msg("pass started")

	groupLog := log.WithPass(passID).
		With().Str("group", "web").Logger()
	groupLog.Warn().Msg("awaiting health")

# Integration Points

This package integrates with:

  - pkg/reconciler: logs per-pass and per-group outcomes
  - pkg/planner: logs decision derivation at debug level
  - pkg/executor: logs provider mutations
  - pkg/trigger: logs tick and notification handling
  - pkg/api: logs HTTP request errors

Every pass carries a pass_id field so that all log lines for one invocation
can be correlated across groups.
*/
package log
