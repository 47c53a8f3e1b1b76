package ownership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webordinary/switchboard/pkg/storage"
	"github.com/webordinary/switchboard/pkg/types"
)

var tenantA = types.TenantKey{ProjectID: "amelia", UserID: "scott"}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func putOwner(t *testing.T, store storage.Store, status types.OwnershipStatus, heartbeat time.Time) {
	t.Helper()
	require.NoError(t, store.PutOwnership(context.Background(), &types.OwnershipRecord{
		TenantKey:       tenantA,
		WorkerID:        "worker-1",
		Status:          status,
		LastHeartbeatAt: heartbeat,
	}))
}

func TestIsOwning(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    types.OwnershipStatus
		heartbeat time.Time
		want      bool
	}{
		{"active and fresh", types.OwnershipActive, now.Add(-time.Minute), true},
		{"active at freshness boundary", types.OwnershipActive, now.Add(-5 * time.Minute), true},
		{"active but stale", types.OwnershipActive, now.Add(-6 * time.Minute), false},
		{"inactive and fresh", types.OwnershipInactive, now.Add(-time.Minute), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t)
			putOwner(t, store, tc.status, tc.heartbeat)

			reader := NewReader(store, 5*time.Minute)
			reader.now = func() time.Time { return now }

			assert.Equal(t, tc.want, reader.IsOwning(context.Background(), tenantA))
		})
	}
}

func TestIsOwningMissingRecord(t *testing.T) {
	store := newTestStore(t)
	reader := NewReader(store, 5*time.Minute)
	assert.False(t, reader.IsOwning(context.Background(), tenantA))
}

// erroringStore fails ownership reads.
type erroringStore struct {
	storage.Store
}

func (s *erroringStore) GetOwnership(ctx context.Context, key types.TenantKey) (*types.OwnershipRecord, error) {
	return nil, errors.New("injected store failure")
}

func TestIsOwningFailsOpenOnStoreError(t *testing.T) {
	store := newTestStore(t)
	reader := NewReader(&erroringStore{Store: store}, 5*time.Minute)
	assert.False(t, reader.IsOwning(context.Background(), tenantA))
}

func TestOwner(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t)
	putOwner(t, store, types.OwnershipActive, now.Add(-time.Minute))

	reader := NewReader(store, 5*time.Minute)
	reader.now = func() time.Time { return now }

	assert.Equal(t, "worker-1", reader.Owner(context.Background(), tenantA))
}

func TestSweepStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t)
	ctx := context.Background()

	fresh := types.TenantKey{ProjectID: "fresh", UserID: "one"}
	stale := types.TenantKey{ProjectID: "stale", UserID: "two"}
	gone := types.TenantKey{ProjectID: "gone", UserID: "three"}

	require.NoError(t, store.PutOwnership(ctx, &types.OwnershipRecord{
		TenantKey: fresh, WorkerID: "w1", Status: types.OwnershipActive,
		LastHeartbeatAt: now.Add(-time.Minute),
	}))
	require.NoError(t, store.PutOwnership(ctx, &types.OwnershipRecord{
		TenantKey: stale, WorkerID: "w2", Status: types.OwnershipActive,
		LastHeartbeatAt: now.Add(-45 * time.Minute),
	}))
	require.NoError(t, store.PutOwnership(ctx, &types.OwnershipRecord{
		TenantKey: gone, WorkerID: "w3", Status: types.OwnershipInactive,
		LastHeartbeatAt: now.Add(-2 * time.Hour),
	}))

	flipped, err := SweepStale(ctx, store, 30*time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)

	rec, err := store.GetOwnership(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, types.OwnershipInactive, rec.Status)

	rec, err = store.GetOwnership(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, types.OwnershipActive, rec.Status)
}
