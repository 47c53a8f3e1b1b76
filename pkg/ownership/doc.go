/*
Package ownership reads worker ownership records and sweeps stale ones.

Workers claim tenants by writing ownership records (workerId, status,
lastHeartbeatAt) keyed by tenant, and keep them alive with periodic
heartbeats. The core never claims tenants itself; it only needs to know,
at routing time, whether delivering to a tenant's input queue will reach a
live worker.

# Freshness rule

A tenant counts as owned iff its record is status=active AND the heartbeat
is no older than the configured freshness window (T_owner, default 5m).
Everything else is unowned:

	record state                        IsOwning
	──────────────────────────────────  ────────
	active, heartbeat ≤ T_owner ago     true
	active, heartbeat > T_owner ago     false
	inactive                            false
	missing                             false
	store read error                    false (fail open to claim)

Failing open means a flaky store produces redundant claim requests, which
workers dedupe, rather than silently stranding work on a queue nobody
polls.

# Stale sweep

SweepStale is the one ownership write the core performs: the reaper calls
it each sweep to flip active records whose heartbeat exceeds the hard TTL
(T_owner_hard, default 30m) to inactive. The flip makes abandonment
visible in the store; it never deletes records, and it never touches
records workers are still heartbeating.
*/
package ownership
