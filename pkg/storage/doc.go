/*
Package storage provides persistent state storage for Switchboard.

The storage layer is the source of truth for four record families: thread
mappings, queue registry records, ownership records, and the session index.
Two backends implement the same Store interface:

	┌──────────────────── STORAGE LAYER ──────────────────────┐
	│                                                          │
	│  ┌──────────────────────────────────────────┐            │
	│  │            Store interface               │            │
	│  │  thread mappings / queue records /       │            │
	│  │  ownership / sessions                    │            │
	│  └───────────┬───────────────┬──────────────┘            │
	│              │               │                           │
	│  ┌───────────▼─────┐   ┌─────▼──────────────┐            │
	│  │   BoltStore     │   │   DynamoStore      │            │
	│  │  (local mode)   │   │  (hosted mode)     │            │
	│  │  JSON buckets   │   │  one table per     │            │
	│  │  in one file    │   │  record family     │            │
	│  └─────────────────┘   └────────────────────┘            │
	└──────────────────────────────────────────────────────────┘

# Record Families

Thread mappings (keyed by threadId):
  - The thread→tenant binding is immutable once written;
    PutThreadMapping is a conditional insert and silently keeps an
    existing binding
  - TouchThreadMapping bumps lastActivityAt/messageCount and refreshes
    the 30-day TTL
  - DynamoDB expires rows natively via the expiresAt attribute; BoltDB
    enforces expiry lazily on read

Queue records (keyed by tenantKey + createdAt):
  - LatestQueueRecord returns the newest record for a tenant
  - Older records remain for audit until DeleteQueueRecords

Ownership (keyed by tenantKey):
  - Written by workers; the core reads, the reaper flips stale records

Sessions (keyed by sessionId):
  - Read-only to the core; PutSession exists for seeding and tests

# Concurrency

All writes are either conditional on an immutable-once-written key
(thread→tenant) or keyed solely by tenantKey, so concurrent writers to
different tenants never collide. There is no distributed lock; multiple
core instances may share one store.

# Integration Points

  - pkg/tenant: thread mappings and sessions during resolution
  - pkg/registry: queue records
  - pkg/ownership: ownership reads and the stale sweep
  - pkg/reaper: registry enumeration and mapping counts
*/
package storage
