package hashid

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShortIsStable(t *testing.T) {
	a := Short("abc@x")
	b := Short("abc@x")
	assert.Equal(t, a, b)
	assert.Len(t, a, ShortLen)
}

func TestShortMatchesDigest(t *testing.T) {
	sum := sha256.Sum256([]byte("abc@x"))
	want := base64.RawURLEncoding.EncodeToString(sum[:])[:ShortLen]
	assert.Equal(t, want, Short("abc@x"))
}

func TestShortIsURLSafe(t *testing.T) {
	tokens := []string{"<CAOmXyz@mail.gmail.com>", "+15551234567:+15557654321", "thread/42?x=1"}
	for _, tok := range tokens {
		id := Short(tok)
		assert.Len(t, id, ShortLen)
		assert.NotContains(t, id, "+")
		assert.NotContains(t, id, "/")
		assert.NotContains(t, id, "=")
	}
}

func TestShortDistinctTokens(t *testing.T) {
	assert.NotEqual(t, Short("a"), Short("b"))
}

func TestSynthFormat(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	id := Synth(now)
	// base36 millis prefix plus 4 random base36 chars
	want := strconv.FormatInt(now.UnixMilli(), 36)
	assert.Len(t, id, len(want)+4)
	assert.Equal(t, want, id[:len(want)])
}

func TestSynthOrdering(t *testing.T) {
	early := Synth(time.UnixMilli(1700000000000))
	late := Synth(time.UnixMilli(1800000000000))
	assert.Less(t, early[:len(early)-4], late[:len(late)-4])
}
