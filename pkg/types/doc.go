/*
Package types defines the core data structures used throughout Switchboard.

This package contains all fundamental types of the routing domain: tenant
keys, ingress messages, queue payloads, thread mappings, queue triplets,
ownership records, and routing decisions. These types are used by all other
packages for persistence, queue wire formats, and routing logic.

# Architecture

The types package is the foundation of Switchboard's data model. It defines:

  - Tenant identity (TenantKey, canonical and sanitized forms)
  - Ingress messages (transport-neutral IngressMsg with per-transport tokens)
  - Queue wire payloads (WorkMessage, ClaimRequest, ResponseMessage)
  - Persistence records (ThreadMapping, QueueRecord, OwnershipRecord,
    SessionRecord)
  - Routing results (RoutingDecision)
  - Message validation (ValidateWork, ValidateResponse)

All types are designed to be:
  - Serializable (JSON on the queue wire and in every store backend)
  - Immutable where the domain demands it (thread→tenant binding)
  - Validated (typed string enums, validation helpers wrapping ErrValidation)

# Wire Formats

Queue payloads are JSON objects discriminated by the "type" field:

	work           WorkMessage on a tenant input queue
	interrupt      WorkMessage (no instruction) telling a worker to stop
	claim_request  ClaimRequest on the shared unclaimed queue
	response       ResponseMessage on a tenant output queue

Message attributes preserved alongside the JSON body: projectId, userId,
source, and Priority (normal | high; high only for interrupts).

# Validation

Validation failures wrap ErrValidation and are terminal: a message that
fails validation is never placed on any queue and never retried. Rejected
conditions include missing sessionId/tenant/timestamp, sentinel "test-*"
tenants, the "unknown" marker outside the reserved default tenant, and
work messages with an empty instruction.

# Integration Points

This package integrates with:

  - pkg/storage: persists mappings, registry records, ownership, sessions
  - pkg/thread: reads the per-transport continuity tokens of IngressMsg
  - pkg/tenant: produces TenantKey values and thread mappings
  - pkg/registry: manages QueueTriplet records
  - pkg/router: builds and validates WorkMessage/ClaimRequest
  - pkg/correlator: parses ResponseMessage from output queues

# Thread Safety

All types are plain data. They are read-safe for concurrent use; mutations
must be synchronized by callers. Persistent stores are the source of truth;
in-memory copies are derived state.
*/
package types
