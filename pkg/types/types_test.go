package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validWork() *WorkMessage {
	return &WorkMessage{
		Type:        MessageTypeWork,
		CommandID:   "cmd-1",
		SessionID:   "sess-1",
		ProjectID:   "amelia",
		UserID:      "scott",
		ThreadID:    "abc12345",
		Instruction: "change the title",
		RepoURL:     "https://github.com/webordinary/amelia-site.git",
		Source:      SourceEmail,
		Timestamp:   time.Now(),
	}
}

func TestValidateWork(t *testing.T) {
	assert.NoError(t, ValidateWork(validWork()))

	tests := []struct {
		name   string
		mutate func(*WorkMessage)
	}{
		{"wrong type", func(m *WorkMessage) { m.Type = "response" }},
		{"missing sessionId", func(m *WorkMessage) { m.SessionID = "" }},
		{"missing tenant", func(m *WorkMessage) { m.ProjectID = "" }},
		{"zero timestamp", func(m *WorkMessage) { m.Timestamp = time.Time{} }},
		{"empty instruction", func(m *WorkMessage) { m.Instruction = "" }},
		{"test tenant prefix", func(m *WorkMessage) { m.ProjectID = "test-alpha" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := validWork()
			tc.mutate(m)
			err := ValidateWork(m)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestValidateWorkAllowsMissingRepoURL(t *testing.T) {
	// An unconfigured tenant still routes; the decision carries the
	// missing-config flag instead of rejecting the message.
	m := validWork()
	m.RepoURL = ""
	assert.NoError(t, ValidateWork(m))
}

func TestValidateWorkDefaultTenant(t *testing.T) {
	// The reserved default tenant carries the "unknown" marker but is
	// still routable.
	m := validWork()
	m.ProjectID = DefaultTenant.ProjectID
	m.UserID = DefaultTenant.UserID
	assert.NoError(t, ValidateWork(m))
}

func TestValidateResponse(t *testing.T) {
	assert.NoError(t, ValidateResponse(&ResponseMessage{CommandID: "cmd-1", Success: true}))
	assert.ErrorIs(t, ValidateResponse(&ResponseMessage{}), ErrValidation)
}

func TestTenantKeyString(t *testing.T) {
	key := TenantKey{ProjectID: "amelia", UserID: "scott"}
	assert.Equal(t, "amelia#scott", key.String())

	parsed, err := ParseTenantKey("amelia#scott")
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = ParseTenantKey("no-separator")
	assert.Error(t, err)
}

func TestTenantKeySanitized(t *testing.T) {
	key := TenantKey{ProjectID: "Amelia", UserID: "scott_dev"}
	assert.Equal(t, "amelia-scott-dev", key.Sanitized())
}

func TestQueueTripletComplete(t *testing.T) {
	triplet := &QueueTriplet{InputURL: "a", OutputURL: "b", DLQURL: "c"}
	assert.True(t, triplet.Complete())
	triplet.DLQURL = ""
	assert.False(t, triplet.Complete())
	assert.False(t, (*QueueTriplet)(nil).Complete())
}
