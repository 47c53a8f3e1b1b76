/*
Package correlator matches worker responses back to waiting commands.

Work messages carry a commandId; workers echo it in the response they
write to the tenant's output queue. The correlator owns both halves:
registering a command as pending when the router sends it, and polling
output queues to resolve the matching pending entry when the response
arrives.

# Lifecycle of a command

	SendWork (as router.WorkSender)
	   │  interrupt the tenant's older pending work
	   │  register pending entry (deadline = now + T_timeout)
	   │  ensure a poll loop runs for the tenant's output queue
	   │  send the work message
	   ▼
	pending ──▶ resolved by exactly one of:
	   │
	   ├─ response arrives on output queue   → completed / failed
	   ├─ newer work for the same tenant     → synthetic interrupted response
	   ├─ Interrupt(tenant, reason)          → synthetic interrupted response
	   ├─ deadline passes (2s sweep)         → ErrTimeout
	   ├─ Cancel()                           → ErrCancelled
	   └─ Stop()                             → ErrCancelled

Each pending entry owns a one-shot buffered channel. Resolution removes
the entry from the map under the lock before writing the channel, so
racing resolvers (response vs timeout vs interrupt) deliver at most one
Result. Recently resolved results stay observable through Watch for a
minute, covering callers that look up a command just after a fast worker
already answered it.

# Poll loops

One goroutine per tenant output queue long-polls (5s wait, batches of
10). Messages are deleted before the command resolves; a response whose
commandId matches nothing — stale after a restart, or later than its
timeout — is deleted and counted, never requeued.

# Interrupts

The newest instruction wins. Before sending new work the correlator
resolves every older pending command for the same tenant with a
synthetic response (Interrupted=true, InterruptedBy naming the
successor) and sends the worker a high-priority interrupt message for
each abandoned command. The interrupt always precedes the new work
message on the input queue. Interrupt(tenant, reason) resolves a
tenant's pending commands the same way, with the reason in the summary,
without sending anything.

Pending state is process-local by design. After a restart the map is
empty; stranded responses fall into the unknown-commandId path and the
original callers have long since timed out.
*/
package correlator
