/*
Package thread extracts canonical thread identifiers from ingress messages.

A thread identifier is an 8-character opaque handle stable across all
messages of one logical conversation, regardless of transport. Extraction
is pure: no I/O, no failure path.

# Rules Per Transport

Email:
  - Prefer the first References header entry
  - Else In-Reply-To, else the current Message-ID
  - Angle brackets are stripped before hashing

SMS:
  - Prefer the transport conversation identifier
  - Else the canonicalized endpoint pair min(from,to)+":"+max(from,to),
    so either direction yields the same thread

Chat:
  - Prefer the transport thread identifier, else the provider message ID

Fallback:
  - base36 unix millis plus 4 random base36 characters (new conversation)

All continuity tokens are hashed (SHA-256, base64url, 8 chars) so the raw
transport identifier never leaks into downstream systems.

# Integration Points

  - pkg/router: step 1 of the routing pipeline
  - pkg/tenant: thread identifiers key the thread→tenant mapping
*/
package thread
