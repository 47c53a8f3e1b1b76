/*
Package hashid produces short stable identifiers from opaque strings.

Thread identifiers must be deterministic (replays and cross-references
resolve to the same thread) without leaking the raw transport token into
downstream systems. Short() gives an 8-character base64url handle of the
SHA-256 digest; Synth() gives a fresh time-ordered identifier when no
continuity token exists.

# Usage

	id := hashid.Short("abc@x")        // stable per token
	id := hashid.Synth(time.Now())     // fresh, time-ordered

# Integration Points

  - pkg/thread: hashes per-transport continuity tokens
*/
package hashid
