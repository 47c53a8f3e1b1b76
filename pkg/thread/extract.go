package thread

import (
	"strings"
	"time"

	"github.com/webordinary/switchboard/pkg/hashid"
	"github.com/webordinary/switchboard/pkg/types"
)

// Extract derives the canonical thread identifier for an ingress message.
// It is a pure function of the payload: no I/O, never fails. Messages with
// the same transport continuity token always yield the same identifier;
// messages without any token get a fresh synthesized one.
func Extract(msg types.IngressMsg) string {
	// An adapter that already carries a hashed thread identifier wins.
	if msg.ThreadID != "" {
		return msg.ThreadID
	}

	switch msg.Source {
	case types.SourceEmail:
		if tok := emailToken(msg); tok != "" {
			return hashid.Short(tok)
		}
	case types.SourceSMS:
		if tok := smsToken(msg); tok != "" {
			return hashid.Short(tok)
		}
	case types.SourceChat:
		if tok := chatToken(msg); tok != "" {
			return hashid.Short(tok)
		}
	}

	return hashid.Synth(time.Now())
}

// emailToken picks the continuity token for email: the first References
// entry, else In-Reply-To, else the current Message-ID, with angle
// brackets stripped.
func emailToken(msg types.IngressMsg) string {
	if len(msg.References) > 0 {
		if tok := stripAngles(msg.References[0]); tok != "" {
			return tok
		}
	}
	if tok := stripAngles(msg.InReplyTo); tok != "" {
		return tok
	}
	return stripAngles(msg.MessageID)
}

// smsToken prefers a transport conversation identifier; otherwise it
// canonicalizes the endpoint pair so either direction of the conversation
// yields the same thread.
func smsToken(msg types.IngressMsg) string {
	if msg.ConversationID != "" {
		return msg.ConversationID
	}
	if msg.From == "" || msg.To == "" {
		return ""
	}
	lo, hi := msg.From, msg.To
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo + ":" + hi
}

func chatToken(msg types.IngressMsg) string {
	if msg.ChatThreadID != "" {
		return msg.ChatThreadID
	}
	return msg.ChatMessageID
}

func stripAngles(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "<"), ">")
}
