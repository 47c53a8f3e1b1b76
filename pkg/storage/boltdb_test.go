package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webordinary/switchboard/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var testTenant = types.TenantKey{ProjectID: "amelia", UserID: "scott"}

func TestThreadMappingFirstWriteWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	first := &types.ThreadMapping{
		ThreadID:       "abcd1234",
		TenantKey:      testTenant,
		FirstSeenAt:    now,
		LastActivityAt: now,
		MessageCount:   1,
		LastTransport:  types.SourceEmail,
		ExpiresAt:      now.Add(types.ThreadMappingTTL),
	}
	require.NoError(t, store.PutThreadMapping(ctx, first))

	// A second insert for the same thread must not rebind the tenant.
	second := &types.ThreadMapping{
		ThreadID:  "abcd1234",
		TenantKey: types.TenantKey{ProjectID: "other", UserID: "user"},
	}
	require.NoError(t, store.PutThreadMapping(ctx, second))

	got, err := store.GetThreadMapping(ctx, "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, testTenant, got.TenantKey)
	assert.Equal(t, 1, got.MessageCount)
}

func TestThreadMappingTouch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.PutThreadMapping(ctx, &types.ThreadMapping{
		ThreadID:       "abcd1234",
		TenantKey:      testTenant,
		FirstSeenAt:    now,
		LastActivityAt: now,
		MessageCount:   1,
		LastTransport:  types.SourceEmail,
	}))

	later := now.Add(time.Hour)
	require.NoError(t, store.TouchThreadMapping(ctx, "abcd1234", later, types.SourceSMS))

	got, err := store.GetThreadMapping(ctx, "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	assert.Equal(t, later, got.LastActivityAt)
	assert.Equal(t, types.SourceSMS, got.LastTransport)
	assert.Equal(t, later.Add(types.ThreadMappingTTL), got.ExpiresAt)
}

func TestThreadMappingNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetThreadMapping(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.TouchThreadMapping(ctx, "missing", time.Now(), types.SourceEmail)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThreadMappingLazyExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	past := time.Now().Add(-31 * 24 * time.Hour)

	require.NoError(t, store.PutThreadMapping(ctx, &types.ThreadMapping{
		ThreadID:       "expired1",
		TenantKey:      testTenant,
		FirstSeenAt:    past,
		LastActivityAt: past,
		ExpiresAt:      past.Add(types.ThreadMappingTTL),
	}))

	_, err := store.GetThreadMapping(ctx, "expired1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueueRecordsLatestWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	old := &types.QueueRecord{
		TenantKey: testTenant,
		CreatedAt: base.Add(-time.Hour),
		Triplet:   types.QueueTriplet{InputURL: "in-old", OutputURL: "out-old", DLQURL: "dlq-old"},
	}
	current := &types.QueueRecord{
		TenantKey: testTenant,
		CreatedAt: base,
		Triplet:   types.QueueTriplet{InputURL: "in-new", OutputURL: "out-new", DLQURL: "dlq-new"},
	}
	require.NoError(t, store.PutQueueRecord(ctx, old))
	require.NoError(t, store.PutQueueRecord(ctx, current))

	got, err := store.LatestQueueRecord(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, "in-new", got.Triplet.InputURL)

	all, err := store.ListLatestQueueRecords(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "in-new", all[0].Triplet.InputURL)
}

func TestQueueRecordsDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.PutQueueRecord(ctx, &types.QueueRecord{
		TenantKey: testTenant,
		CreatedAt: now,
		Triplet:   types.QueueTriplet{InputURL: "in", OutputURL: "out", DLQURL: "dlq"},
	}))
	other := types.TenantKey{ProjectID: "other", UserID: "user"}
	require.NoError(t, store.PutQueueRecord(ctx, &types.QueueRecord{
		TenantKey: other,
		CreatedAt: now,
		Triplet:   types.QueueTriplet{InputURL: "in2", OutputURL: "out2", DLQURL: "dlq2"},
	}))

	require.NoError(t, store.DeleteQueueRecords(ctx, testTenant))

	_, err := store.LatestQueueRecord(ctx, testTenant)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.LatestQueueRecord(ctx, other)
	assert.NoError(t, err)
}

func TestOwnershipRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	rec := &types.OwnershipRecord{
		TenantKey:       testTenant,
		WorkerID:        "worker-1",
		Status:          types.OwnershipActive,
		LastHeartbeatAt: now,
	}
	require.NoError(t, store.PutOwnership(ctx, rec))

	got, err := store.GetOwnership(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", got.WorkerID)
	assert.Equal(t, types.OwnershipActive, got.Status)

	all, err := store.ListOwnership(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = store.GetOwnership(ctx, types.TenantKey{ProjectID: "nobody", UserID: "here"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSession(ctx, &types.SessionRecord{
		SessionID: "sess-1",
		TenantKey: testTenant,
		ThreadID:  "abcd1234",
		CreatedAt: time.Now().UTC(),
	}))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, testTenant, got.TenantKey)

	_, err = store.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountThreadMappings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, store.PutThreadMapping(ctx, &types.ThreadMapping{
			ThreadID:       id,
			TenantKey:      testTenant,
			FirstSeenAt:    now,
			LastActivityAt: now,
		}))
	}

	count, err := store.CountThreadMappings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
