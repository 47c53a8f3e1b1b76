/*
Package reaper is the scheduled janitor for abandoned routing state.

Tenants come and go: a worker crashes without deregistering, a project is
retired, a burst of unresolvable messages mints queues for the default
tenant. Nothing in the hot path cleans that up, so the reaper sweeps on a
fixed interval (default 6h) and on demand via the CLI.

# What a sweep does

 1. Stale ownership: active records whose heartbeat is older than
    T_owner_hard are flipped to inactive (see ownership.SweepStale).
    Records are never deleted, only made visibly dead.

 2. Orphaned queues: a tenant's queues are deleted when the tenant has
    no live owner AND even its newest queue is older than T_orphan
    (default 24h). Both conditions guard against racing a tenant that
    was just provisioned or briefly lost its worker. Queues still
    holding messages are deleted anyway, with the undelivered count
    logged first. The tenant's registry records go with the queues. The
    shared unclaimed queue is never deleted.

 3. Thread mappings: the live mapping count is reported for visibility;
    expiry itself is TTL-driven inside the stores.

The tenant behind each queue is recovered from registry records first,
falling back to parsing the queue name; queues matching neither are
logged and left alone.

Sweeps are safe to run concurrently with routing: deletion criteria only
match tenants the router would re-provision from scratch anyway, and
every deletion is individually logged and counted.
*/
package reaper
