package hashid

import (
	"crypto/sha256"
	"encoding/base64"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// ShortLen is the length of every identifier produced by this package.
const ShortLen = 8

// Short derives a stable, URL-safe identifier from an opaque token.
// The token is hashed with SHA-256, base64url-encoded, and truncated to
// ShortLen characters. The same token always yields the same identifier,
// and the raw token never leaks downstream.
func Short(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:ShortLen]
}

// Synth produces a fresh identifier for conversations that arrived without
// any continuity token: base36 unix milliseconds plus 4 random base36
// characters. Identifiers are monotonically derived, so later messages sort
// after earlier ones.
func Synth(now time.Time) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 36))
	const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"
	for i := 0; i < 4; i++ {
		b.WriteByte(base36[rand.Intn(len(base36))])
	}
	return b.String()
}
