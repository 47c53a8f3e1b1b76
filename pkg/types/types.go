package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TenantKey identifies the (projectId, userId) pair that is the unit of
// queue allocation and worker ownership.
type TenantKey struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
}

// DefaultTenant is the reserved key assigned to messages the resolver
// could not attribute to any configured tenant.
var DefaultTenant = TenantKey{ProjectID: "default", UserID: "unknown"}

// String returns the canonical "projectId#userId" form.
func (k TenantKey) String() string {
	return k.ProjectID + "#" + k.UserID
}

// Sanitized returns the queue-name-safe form: lowercased, with "#"
// replaced by "-" and any character outside [a-z0-9-] replaced by "-".
func (k TenantKey) Sanitized() string {
	return SanitizeName(k.ProjectID) + "-" + SanitizeName(k.UserID)
}

// Valid reports whether both halves are non-empty and restricted to
// [A-Za-z0-9-].
func (k TenantKey) Valid() bool {
	return validIdentifier(k.ProjectID) && validIdentifier(k.UserID)
}

// IsDefault reports whether this is the reserved unresolved-tenant key.
func (k TenantKey) IsDefault() bool {
	return k == DefaultTenant
}

// ParseTenantKey parses the canonical "projectId#userId" form.
func ParseTenantKey(s string) (TenantKey, error) {
	project, user, ok := strings.Cut(s, "#")
	if !ok || project == "" || user == "" {
		return TenantKey{}, fmt.Errorf("invalid tenant key: %q", s)
	}
	return TenantKey{ProjectID: project, UserID: user}, nil
}

// SanitizeName lowercases and replaces any character outside [a-z0-9-]
// with "-".
func SanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}

// Source identifies the ingress transport a message arrived on.
type Source string

const (
	SourceEmail Source = "email"
	SourceSMS   Source = "sms"
	SourceChat  Source = "chat"
)

// IngressMsg is the transport-neutral message handed to the core by an
// ingress adapter. Per-transport continuity fields are populated only for
// the matching Source.
type IngressMsg struct {
	Source         Source `json:"source"`
	SessionID      string `json:"sessionId,omitempty"`
	ThreadID       string `json:"threadId,omitempty"` // already-hashed, if known
	SenderIdentity string `json:"senderIdentity"`
	Instruction    string `json:"instruction"`

	// Email continuity tokens.
	References []string `json:"references,omitempty"`
	InReplyTo  string   `json:"inReplyTo,omitempty"`
	MessageID  string   `json:"messageId,omitempty"`

	// SMS continuity tokens.
	ConversationID string `json:"conversationId,omitempty"`
	From           string `json:"from,omitempty"`
	To             string `json:"to,omitempty"`

	// Chat continuity tokens.
	ChatThreadID  string `json:"chatThreadId,omitempty"`
	ChatMessageID string `json:"chatMessageId,omitempty"`

	// Raw is the forward-only opaque envelope carried into WorkMessage.Context.
	Raw map[string]any `json:"raw,omitempty"`
}

// Message type discriminants used on the queue wire.
const (
	MessageTypeWork      = "work"
	MessageTypeClaim     = "claim_request"
	MessageTypeResponse  = "response"
	MessageTypeInterrupt = "interrupt"
)

// Priority values carried as message attributes.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// WorkMessage is the payload delivered to a tenant's input queue.
type WorkMessage struct {
	Type        string         `json:"type"`
	CommandID   string         `json:"commandId"`
	SessionID   string         `json:"sessionId"`
	ProjectID   string         `json:"projectId"`
	UserID      string         `json:"userId"`
	ThreadID    string         `json:"threadId"`
	Instruction string         `json:"instruction"`
	RepoURL     string         `json:"repoUrl,omitempty"`
	UserEmail   string         `json:"userEmail,omitempty"`
	Source      Source         `json:"source"`
	Timestamp   time.Time      `json:"timestamp"`
	Context     map[string]any `json:"context,omitempty"`
}

// TenantKey returns the tenant key embedded in the message.
func (m *WorkMessage) TenantKey() TenantKey {
	return TenantKey{ProjectID: m.ProjectID, UserID: m.UserID}
}

// ClaimRequest is the payload published on the shared unclaimed queue. It
// carries no instruction; it is purely an ownership invitation, with a
// cross-reference to the command that triggered it.
type ClaimRequest struct {
	Type      string    `json:"type"`
	ProjectID string    `json:"projectId"`
	UserID    string    `json:"userId"`
	CommandID string    `json:"commandId"`
	Timestamp time.Time `json:"timestamp"`
}

// TenantKey returns the tenant key embedded in the claim.
func (c *ClaimRequest) TenantKey() TenantKey {
	return TenantKey{ProjectID: c.ProjectID, UserID: c.UserID}
}

// InterruptMessage is the high-priority payload telling a worker to stop
// an in-flight command because newer work arrived on the same thread.
type InterruptMessage struct {
	Type       string    `json:"type"`
	CommandID  string    `json:"commandId"`  // command to abandon
	ReplacedBy string    `json:"replacedBy"` // command superseding it
	ProjectID  string    `json:"projectId"`
	UserID     string    `json:"userId"`
	ThreadID   string    `json:"threadId"`
	Timestamp  time.Time `json:"timestamp"`
}

// ResponseMessage is the payload a worker writes to a tenant's output
// queue. Correlation is by CommandID alone.
type ResponseMessage struct {
	Type          string    `json:"type,omitempty"`
	CommandID     string    `json:"commandId"`
	SessionID     string    `json:"sessionId,omitempty"`
	Success       bool      `json:"success"`
	Summary       string    `json:"summary,omitempty"`
	FilesChanged  []string  `json:"filesChanged,omitempty"`
	Error         string    `json:"error,omitempty"`
	Interrupted   bool      `json:"interrupted,omitempty"`
	InterruptedBy string    `json:"interruptedBy,omitempty"`
	CompletedAt   time.Time `json:"completedAt,omitempty"`
}

// ThreadMapping ties a thread identifier to the tenant it belongs to.
// The tenant binding is immutable once written; activity fields are not.
type ThreadMapping struct {
	ThreadID       string    `json:"threadId"`
	TenantKey      TenantKey `json:"tenantKey"`
	FirstSeenAt    time.Time `json:"firstSeenAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	MessageCount   int       `json:"messageCount"`
	LastTransport  Source    `json:"lastTransport"`
	ExpiresAt      time.Time `json:"expiresAt,omitempty"`
}

// ThreadMappingTTL is the retention window measured from last activity.
const ThreadMappingTTL = 30 * 24 * time.Hour

// QueueTriplet holds the three queue URLs allocated to a tenant. All three
// exist in the queue service iff the record exists.
type QueueTriplet struct {
	InputURL  string    `json:"inputUrl"`
	OutputURL string    `json:"outputUrl"`
	DLQURL    string    `json:"dlqUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// Complete reports whether all three URLs are present.
func (t *QueueTriplet) Complete() bool {
	return t != nil && t.InputURL != "" && t.OutputURL != "" && t.DLQURL != ""
}

// QueueRecord is the persisted registry entry for a tenant's triplet.
// Records are keyed (tenantKey, createdAt); the newest wins, older records
// remain for audit.
type QueueRecord struct {
	TenantKey TenantKey    `json:"tenantKey"`
	Triplet   QueueTriplet `json:"triplet"`
	CreatedAt time.Time    `json:"createdAt"`
}

// OwnershipStatus is the lifecycle state of an ownership record.
type OwnershipStatus string

const (
	OwnershipActive   OwnershipStatus = "active"
	OwnershipInactive OwnershipStatus = "inactive"
)

// OwnershipRecord declares which worker currently handles a tenant.
// Workers are the sole writers of WorkerID/Status/LastHeartbeatAt; the
// core only reads it, except for the reaper flipping stale records to
// inactive.
type OwnershipRecord struct {
	TenantKey       TenantKey       `json:"tenantKey"`
	WorkerID        string          `json:"workerId"`
	Status          OwnershipStatus `json:"status"`
	LastHeartbeatAt time.Time       `json:"lastHeartbeatAt"`
}

// SessionRecord is the session index entry; read-only to the core.
type SessionRecord struct {
	SessionID string    `json:"sessionId"`
	TenantKey TenantKey `json:"tenantKey"`
	ThreadID  string    `json:"threadId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoutingDecision is the router's result for one ingress message.
type RoutingDecision struct {
	TenantKey      TenantKey `json:"tenantKey"`
	ThreadID       string    `json:"threadId"`
	CommandID      string    `json:"commandId"`
	InputURL       string    `json:"inputUrl"`
	OutputURL      string    `json:"outputUrl"`
	NeedsUnclaimed bool      `json:"needsUnclaimed"`
	Unresolved     bool      `json:"unresolved,omitempty"`
	MissingConfig  bool      `json:"missingConfig,omitempty"`
}

// ErrValidation marks permanent message validation failures. Messages
// failing validation are never placed on any queue and never retried.
var ErrValidation = errors.New("validation failed")

// ValidateWork checks a work message against the routing rules. A non-nil
// error wraps ErrValidation and is terminal.
func ValidateWork(m *WorkMessage) error {
	if m.Type != MessageTypeWork && m.Type != MessageTypeInterrupt {
		return fmt.Errorf("%w: unexpected type %q", ErrValidation, m.Type)
	}
	if m.SessionID == "" {
		return fmt.Errorf("%w: missing sessionId", ErrValidation)
	}
	if err := validateTenant(m.TenantKey()); err != nil {
		return err
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrValidation)
	}
	if m.Type == MessageTypeWork && strings.TrimSpace(m.Instruction) == "" {
		return fmt.Errorf("%w: empty instruction", ErrValidation)
	}
	return nil
}

// ValidateResponse checks a response message from the output queue.
func ValidateResponse(m *ResponseMessage) error {
	if m.CommandID == "" {
		return fmt.Errorf("%w: response missing commandId", ErrValidation)
	}
	return nil
}

func validateTenant(key TenantKey) error {
	if key.ProjectID == "" || key.UserID == "" {
		return fmt.Errorf("%w: missing tenant key", ErrValidation)
	}
	// Test fixtures must never leak into production queues.
	if strings.HasPrefix(key.ProjectID, "test-") || strings.HasPrefix(key.UserID, "test-") {
		return fmt.Errorf("%w: sentinel tenant %s", ErrValidation, key)
	}
	if key.UserID == "unknown" && !key.IsDefault() {
		return fmt.Errorf("%w: marker field unknown in tenant %s", ErrValidation, key)
	}
	return nil
}
