/*
Package log provides structured logging for Switchboard using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Thread-safe concurrent writes

Context Loggers:
  - WithComponent: root a component logger off the global logger
  - WithTenant: derive a child carrying the tenant key
  - WithThreadID: derive a child carrying the thread identifier
  - WithCommandID: derive a child carrying the command identifier

# Usage

Initializing the Logger:

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Structured Logging:

	log.Logger.Info().
		Str("tenant", "amelia#scott").
		Str("commandId", cmdID).
		Msg("work message routed")

Component Loggers:

	routerLog := log.WithComponent("router")
	log.WithThreadID(routerLog, threadID).Debug().Msg("thread extracted")

# Integration Points

This package integrates with:

  - pkg/router: logs routing decisions and validation rejects
  - pkg/correlator: logs poll loop activity and resolution outcomes
  - pkg/reaper: logs sweep results
  - pkg/registry: logs queue creation and rollback
  - cmd/switchboard: initializes the logger from configuration

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Log errors with .Err() for error objects
  - Include context (tenant, threadId, commandId)

Don't:
  - Log message instructions verbatim (user content)
  - Use Debug level in production
  - Concatenate strings (use .Str, .Int)
*/
package log
