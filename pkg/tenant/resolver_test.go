package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webordinary/switchboard/pkg/config"
	"github.com/webordinary/switchboard/pkg/storage"
	"github.com/webordinary/switchboard/pkg/types"
)

var (
	ameliaScott = types.TenantKey{ProjectID: "amelia", UserID: "scott"}
	otherTenant = types.TenantKey{ProjectID: "other", UserID: "user"}
)

func newFixture(t *testing.T) (*Resolver, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	table, err := config.NewTenantTable([]config.TenantEntry{
		{
			Identity:  "escottster@gmail.com",
			ProjectID: "amelia",
			UserID:    "scott",
			RepoURL:   "https://github.com/webordinary/amelia-site",
		},
		{
			Identity:  "norepo@example.com",
			ProjectID: "norepo",
			UserID:    "user",
		},
	})
	require.NoError(t, err)

	return NewResolver(store, table), store
}

func TestResolveByIdentity(t *testing.T) {
	resolver, _ := newFixture(t)

	res, err := resolver.Resolve(context.Background(), types.IngressMsg{
		Source:         types.SourceEmail,
		SenderIdentity: "escottster@gmail.com",
	}, "thread01")
	require.NoError(t, err)

	assert.Equal(t, ameliaScott, res.Key)
	assert.Equal(t, "https://github.com/webordinary/amelia-site", res.RepoURL)
	assert.False(t, res.Unresolved)
	assert.False(t, res.MissingConfig)
	assert.True(t, res.NewThread)
}

func TestResolveSessionPrecedesIdentity(t *testing.T) {
	resolver, store := newFixture(t)
	ctx := context.Background()

	require.NoError(t, store.PutSession(ctx, &types.SessionRecord{
		SessionID: "sess-1",
		TenantKey: otherTenant,
		CreatedAt: time.Now(),
	}))

	res, err := resolver.Resolve(ctx, types.IngressMsg{
		Source:         types.SourceEmail,
		SessionID:      "sess-1",
		SenderIdentity: "escottster@gmail.com",
	}, "thread02")
	require.NoError(t, err)
	assert.Equal(t, otherTenant, res.Key)
}

func TestResolveMappingPrecedesIdentity(t *testing.T) {
	resolver, store := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.PutThreadMapping(ctx, &types.ThreadMapping{
		ThreadID:       "thread03",
		TenantKey:      otherTenant,
		FirstSeenAt:    now,
		LastActivityAt: now,
		MessageCount:   1,
		LastTransport:  types.SourceEmail,
	}))

	res, err := resolver.Resolve(ctx, types.IngressMsg{
		Source:         types.SourceEmail,
		SenderIdentity: "escottster@gmail.com",
	}, "thread03")
	require.NoError(t, err)
	assert.Equal(t, otherTenant, res.Key)
	assert.False(t, res.NewThread)
}

func TestResolveUnknownSenderGetsDefault(t *testing.T) {
	resolver, _ := newFixture(t)

	res, err := resolver.Resolve(context.Background(), types.IngressMsg{
		Source:         types.SourceEmail,
		SenderIdentity: "stranger@example.com",
	}, "thread04")
	require.NoError(t, err)
	assert.Equal(t, types.DefaultTenant, res.Key)
	assert.True(t, res.Unresolved)
	assert.True(t, res.MissingConfig)
}

func TestResolveMissingRepoFlagged(t *testing.T) {
	resolver, _ := newFixture(t)

	res, err := resolver.Resolve(context.Background(), types.IngressMsg{
		Source:         types.SourceEmail,
		SenderIdentity: "norepo@example.com",
	}, "thread05")
	require.NoError(t, err)
	assert.Equal(t, types.TenantKey{ProjectID: "norepo", UserID: "user"}, res.Key)
	assert.True(t, res.MissingConfig)
	assert.False(t, res.Unresolved)
}

func TestTenantPermanence(t *testing.T) {
	resolver, store := newFixture(t)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, types.IngressMsg{
		Source:         types.SourceEmail,
		SenderIdentity: "escottster@gmail.com",
	}, "thread06")
	require.NoError(t, err)
	require.Equal(t, ameliaScott, first.Key)

	// A session pointing elsewhere takes precedence for routing, but the
	// thread's recorded tenant binding must not change.
	require.NoError(t, store.PutSession(ctx, &types.SessionRecord{
		SessionID: "sess-2",
		TenantKey: otherTenant,
		CreatedAt: time.Now(),
	}))
	_, err = resolver.Resolve(ctx, types.IngressMsg{
		Source:    types.SourceEmail,
		SessionID: "sess-2",
	}, "thread06")
	require.NoError(t, err)

	mapping, err := store.GetThreadMapping(ctx, "thread06")
	require.NoError(t, err)
	assert.Equal(t, ameliaScott, mapping.TenantKey)
}

func TestFollowUpBumpsActivity(t *testing.T) {
	resolver, store := newFixture(t)
	ctx := context.Background()
	msg := types.IngressMsg{Source: types.SourceEmail, SenderIdentity: "escottster@gmail.com"}

	_, err := resolver.Resolve(ctx, msg, "thread07")
	require.NoError(t, err)
	res, err := resolver.Resolve(ctx, msg, "thread07")
	require.NoError(t, err)
	assert.False(t, res.NewThread)

	mapping, err := store.GetThreadMapping(ctx, "thread07")
	require.NoError(t, err)
	assert.Equal(t, 2, mapping.MessageCount)
}
