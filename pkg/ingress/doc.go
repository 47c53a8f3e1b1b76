/*
Package ingress brings transport payloads into the routing pipeline.

Upstream receivers (email pipeline, SMS gateway, chat integration) do the
transport-specific heavy lifting — MIME parsing, webhook verification —
and drop a small JSON envelope on the shared ingress queue:

	{"source": "email", "payload": { ...transport payload... }}

This package owns both halves of the handoff:

  - Decoders (DecodeEmail, DecodeSMS, DecodeChat) convert a payload into
    the transport-neutral types.IngressMsg. Strictly thin: no validation
    beyond JSON shape, no business logic. Thread identity and tenant
    attribution are the router's job. The only normalization is sender
    identity for email, where the bare address is extracted from
    "Name <addr>" forms and lowercased so identity lookups are
    case-stable.

  - Consumer long-polls the ingress queue and feeds decoded messages to
    the router. Failure handling follows the message's nature: malformed
    envelopes and validation failures are terminal and deleted; transient
    routing failures leave the message for the visibility timeout to
    redeliver, with the queue's redrive policy bounding attempts.
*/
package ingress
