/*
Package registry maintains the map from tenants to their queue triplets.

Every tenant that has ever routed work owns exactly three queues in the
queue service: an input queue (work messages for the tenant's worker), an
output queue (responses for the correlator), and a dead-letter queue wired
to the input queue with a redrive budget of three receives. The registry
creates triplets lazily on first use, persists them through storage.Store,
and guarantees that a partial triplet never survives a failed creation.

# Naming

Queue names are deterministic, so every core instance derives the same
names without coordination:

	<prefix>-input-<projectId>-<userId>
	<prefix>-output-<projectId>-<userId>
	<prefix>-dlq-<projectId>-<userId>
	<prefix>-unclaimed                    (shared singleton)

Identifiers are sanitized (lowercased, [a-z0-9-] only) before entering a
queue name.

# Ensure flow

	Ensure(tenant)
	   │
	   ├─ registry record exists ──────────────▶ return triplet
	   │
	   ├─ all three queues found by name ──────▶ persist record, return
	   │
	   └─ create input/output/dlq concurrently
	        ├─ any failure ──▶ delete queues created so far, return error
	        ├─ set redrive input→dlq (maxReceiveCount=3)
	        └─ persist record ──▶ return triplet

Records are keyed (tenantKey, createdAt); reads take the newest, and older
records stay behind for audit until Drop removes the tenant wholesale.

Concurrent Ensure calls for the same tenant are serialized within a
process; across processes, idempotent CreateQueue semantics make the race
harmless.
*/
package registry
