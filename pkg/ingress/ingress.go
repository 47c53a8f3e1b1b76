package ingress

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/webordinary/switchboard/pkg/types"
)

// EmailPayload is the JSON an upstream email receiver hands to the core
// after MIME extraction. Header tokens arrive verbatim, angle brackets
// and all.
type EmailPayload struct {
	From       string         `json:"from"`
	Subject    string         `json:"subject,omitempty"`
	Body       string         `json:"body"`
	MessageID  string         `json:"messageId,omitempty"`
	InReplyTo  string         `json:"inReplyTo,omitempty"`
	References []string       `json:"references,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// SMSPayload is the JSON an SMS gateway hands to the core.
type SMSPayload struct {
	From           string         `json:"from"`
	To             string         `json:"to"`
	Body           string         `json:"body"`
	ConversationID string         `json:"conversationId,omitempty"`
	SessionID      string         `json:"sessionId,omitempty"`
	Raw            map[string]any `json:"raw,omitempty"`
}

// ChatPayload is the JSON a chat integration hands to the core.
type ChatPayload struct {
	Sender    string         `json:"sender"`
	Text      string         `json:"text"`
	ThreadID  string         `json:"threadId,omitempty"`
	MessageID string         `json:"messageId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Raw       map[string]any `json:"raw,omitempty"`
}

// DecodeEmail converts an email payload into the transport-neutral form.
func DecodeEmail(data []byte) (types.IngressMsg, error) {
	var p EmailPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return types.IngressMsg{}, fmt.Errorf("failed to decode email payload: %w", err)
	}
	return types.IngressMsg{
		Source:         types.SourceEmail,
		SessionID:      p.SessionID,
		SenderIdentity: emailAddress(p.From),
		Instruction:    p.Body,
		References:     p.References,
		InReplyTo:      p.InReplyTo,
		MessageID:      p.MessageID,
		Raw:            p.Raw,
	}, nil
}

// DecodeSMS converts an SMS payload into the transport-neutral form.
func DecodeSMS(data []byte) (types.IngressMsg, error) {
	var p SMSPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return types.IngressMsg{}, fmt.Errorf("failed to decode sms payload: %w", err)
	}
	return types.IngressMsg{
		Source:         types.SourceSMS,
		SessionID:      p.SessionID,
		SenderIdentity: strings.TrimSpace(p.From),
		Instruction:    p.Body,
		ConversationID: p.ConversationID,
		From:           p.From,
		To:             p.To,
		Raw:            p.Raw,
	}, nil
}

// DecodeChat converts a chat payload into the transport-neutral form.
func DecodeChat(data []byte) (types.IngressMsg, error) {
	var p ChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return types.IngressMsg{}, fmt.Errorf("failed to decode chat payload: %w", err)
	}
	return types.IngressMsg{
		Source:         types.SourceChat,
		SessionID:      p.SessionID,
		SenderIdentity: strings.TrimSpace(p.Sender),
		Instruction:    p.Text,
		ChatThreadID:   p.ThreadID,
		ChatMessageID:  p.MessageID,
		Raw:            p.Raw,
	}, nil
}

// emailAddress extracts the bare address from a From header value,
// which may be either "addr" or "Display Name <addr>", and lowercases
// it so identity lookups are case-stable.
func emailAddress(from string) string {
	from = strings.TrimSpace(from)
	if open := strings.LastIndex(from, "<"); open >= 0 {
		if end := strings.Index(from[open:], ">"); end > 0 {
			from = from[open+1 : open+end]
		}
	}
	return strings.ToLower(strings.TrimSpace(from))
}

// Decode dispatches on the source name. Used by the CLI, where the
// transport arrives as a flag.
func Decode(source string, data []byte) (types.IngressMsg, error) {
	switch types.Source(source) {
	case types.SourceEmail:
		return DecodeEmail(data)
	case types.SourceSMS:
		return DecodeSMS(data)
	case types.SourceChat:
		return DecodeChat(data)
	default:
		return types.IngressMsg{}, fmt.Errorf("unknown ingress source %q", source)
	}
}
