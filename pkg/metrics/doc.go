/*
Package metrics provides Prometheus metrics collection and exposition for Switchboard.

The metrics package defines and registers all Switchboard metrics using the
Prometheus client library, providing observability into routing throughput,
command correlation latency, registry activity, and reaper sweeps. Metrics
are exposed via HTTP endpoint for scraping by Prometheus servers, alongside
the health and readiness endpoints.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐           │
	│  │          Prometheus Registry               │           │
	│  │  - Global DefaultRegistry                  │           │
	│  │  - MustRegister at package init            │           │
	│  │  - Automatic Go runtime metrics            │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │           Metric Categories                │           │
	│  │                                            │           │
	│  │  Router: routes, claims, sends, retries    │           │
	│  │  Registry: triplets created, rollbacks     │           │
	│  │  Correlator: pending gauge, durations,     │           │
	│  │    outcomes, unknown responses             │           │
	│  │  Reaper: queues deleted, owners flipped,   │           │
	│  │    sweep duration                          │           │
	│  │  Store: mappings, owners, tenants (gauges  │           │
	│  │    sampled by the Collector every 15s)     │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │          HTTP Endpoints (Server)           │           │
	│  │  - /metrics  Prometheus text exposition    │           │
	│  │  - /healthz  component health JSON         │           │
	│  │  - /readyz   critical-component readiness  │           │
	│  │  - /livez    process liveness              │           │
	│  └────────────────────────────────────────────┘           │
	│                                                           │
	└───────────────────────────────────────────────────────────┘

# Usage

Counters and gauges are package variables incremented at the point of the
event:

	metrics.RoutesTotal.WithLabelValues("direct").Inc()
	metrics.PendingCommands.Inc()

Durations use Timer:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReaperSweepDuration)

Components report health through RegisterComponent/UpdateComponent; the
readiness endpoint turns ready once storage, queues, router and correlator
have all reported healthy.
*/
package metrics
