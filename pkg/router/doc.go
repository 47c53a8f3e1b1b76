/*
Package router drives the ingress pipeline from decoded message to queue.

The router is the write path of the system. Every ingress message, no
matter the transport, flows through the same pipeline:

	IngressMsg
	   │
	   ▼
	thread.Extract ──────── stable threadId from transport tokens
	   │
	   ▼
	tenant.Resolve ──────── session → mapping → identity → default
	   │
	   ▼
	validate ────────────── terminal on failure, nothing is sent
	   │
	   ▼
	registry.Ensure ─────── tenant queue triplet, created lazily
	   │
	   ▼
	ownership.IsOwning
	   │
	   ├─ owned ──────────▶ send work to input queue
	   │
	   └─ unowned ────────▶ send work to input queue
	                        AND announce ClaimRequest on unclaimed queue

# Ordering

Routing is serialized per tenant with an in-process lock, so two messages
for the same tenant cannot interleave between resolution and delivery.
Distinct tenants route concurrently.

# Delivery semantics

Work is always delivered to the tenant's input queue, owned or not; an
unowned tenant's work waits there until a worker answers the claim. Sends
are retried once after a short backoff. A failure that survives the retry
wraps ErrTransient so callers know the message is worth resubmitting;
validation failures wrap types.ErrValidation and must not be retried.

Delivery goes through the WorkSender interface: the daemon wires the
correlator in (registering the command as pending and interrupting the
tenant's older work first), while one-shot CLI routing uses
DirectSender.
*/
package router
