package registry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webordinary/switchboard/pkg/events"
	"github.com/webordinary/switchboard/pkg/queue"
	"github.com/webordinary/switchboard/pkg/storage"
	"github.com/webordinary/switchboard/pkg/types"
)

func newTestRegistry(t *testing.T) (*Registry, *queue.Memory, storage.Store) {
	t.Helper()
	queues := queue.NewMemory()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(queues, store, "webordinary", nil), queues, store
}

func TestEnsurePublishesTripletCreated(t *testing.T) {
	queues := queue.NewMemory()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	sub := broker.Subscribe()

	reg := New(queues, store, "webordinary", broker)
	key := types.TenantKey{ProjectID: "amelia", UserID: "scott"}
	_, err = reg.Ensure(context.Background(), key)
	require.NoError(t, err)

	select {
	case ev := <-sub:
		assert.Equal(t, events.EventTripletCreated, ev.Type)
		assert.Equal(t, "amelia#scott", ev.Metadata["tenant"])
	case <-time.After(5 * time.Second):
		t.Fatal("no triplet created event")
	}

	// Idempotent ensure creates nothing and publishes nothing.
	_, err = reg.Ensure(context.Background(), key)
	require.NoError(t, err)
	select {
	case ev := <-sub:
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEnsureCreatesTriplet(t *testing.T) {
	reg, queues, _ := newTestRegistry(t)
	ctx := context.Background()
	key := types.TenantKey{ProjectID: "amelia", UserID: "scott"}

	triplet, err := reg.Ensure(ctx, key)
	require.NoError(t, err)
	assert.True(t, triplet.Complete())

	for _, name := range []string{
		"webordinary-input-amelia-scott",
		"webordinary-output-amelia-scott",
		"webordinary-dlq-amelia-scott",
	} {
		_, err := queues.QueueURL(ctx, name)
		assert.NoError(t, err, name)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	ctx := context.Background()
	key := types.TenantKey{ProjectID: "amelia", UserID: "scott"}

	first, err := reg.Ensure(ctx, key)
	require.NoError(t, err)
	second, err := reg.Ensure(ctx, key)
	require.NoError(t, err)

	assert.Equal(t, first.InputURL, second.InputURL)
	assert.Equal(t, first.OutputURL, second.OutputURL)
	assert.Equal(t, first.DLQURL, second.DLQURL)
}

func TestEnsureAdoptsExistingQueues(t *testing.T) {
	reg, queues, store := newTestRegistry(t)
	ctx := context.Background()
	key := types.TenantKey{ProjectID: "amelia", UserID: "scott"}

	// Queues exist in the service but the registry has no record,
	// as after a store wipe.
	for _, kind := range []string{KindInput, KindOutput, KindDLQ} {
		_, err := queues.CreateQueue(ctx, QueueName("webordinary", kind, key), nil)
		require.NoError(t, err)
	}

	triplet, err := reg.Ensure(ctx, key)
	require.NoError(t, err)
	assert.True(t, triplet.Complete())

	rec, err := store.LatestQueueRecord(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, triplet.InputURL, rec.Triplet.InputURL)
}

func TestGetWithoutEnsure(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	_, err := reg.Get(context.Background(), types.TenantKey{ProjectID: "a", UserID: "b"})
	assert.ErrorIs(t, err, ErrNoTriplet)
}

func TestDropRemovesQueuesAndRecords(t *testing.T) {
	reg, queues, _ := newTestRegistry(t)
	ctx := context.Background()
	key := types.TenantKey{ProjectID: "amelia", UserID: "scott"}

	_, err := reg.Ensure(ctx, key)
	require.NoError(t, err)
	require.NoError(t, reg.Drop(ctx, key))

	_, err = reg.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNoTriplet)
	_, err = queues.QueueURL(ctx, "webordinary-input-amelia-scott")
	assert.ErrorIs(t, err, queue.ErrQueueNotFound)
}

func TestDropUnknownTenantIsNoop(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	assert.NoError(t, reg.Drop(context.Background(), types.TenantKey{ProjectID: "a", UserID: "b"}))
}

func TestEnsureUnclaimed(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	ctx := context.Background()

	url, err := reg.EnsureUnclaimed(ctx)
	require.NoError(t, err)
	assert.Contains(t, url, "webordinary-unclaimed")

	again, err := reg.EnsureUnclaimed(ctx)
	require.NoError(t, err)
	assert.Equal(t, url, again)
}

// failingQueues wraps Memory and fails creation of one queue kind.
type failingQueues struct {
	*queue.Memory
	failSubstr  string
	failRedrive bool
}

func (f *failingQueues) CreateQueue(ctx context.Context, name string, tags map[string]string) (string, error) {
	if f.failSubstr != "" && strings.Contains(name, f.failSubstr) {
		return "", errors.New("injected create failure")
	}
	return f.Memory.CreateQueue(ctx, name, tags)
}

func (f *failingQueues) SetRedrive(ctx context.Context, sourceURL, dlqURL string, maxReceive int) error {
	if f.failRedrive {
		return errors.New("injected redrive failure")
	}
	return f.Memory.SetRedrive(ctx, sourceURL, dlqURL, maxReceive)
}

func TestEnsureRollsBackPartialCreation(t *testing.T) {
	mem := queue.NewMemory()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	queues := &failingQueues{Memory: mem, failSubstr: "-dlq-"}
	reg := New(queues, store, "webordinary", nil)
	ctx := context.Background()
	key := types.TenantKey{ProjectID: "amelia", UserID: "scott"}

	_, err = reg.Ensure(ctx, key)
	require.Error(t, err)

	// Nothing survives: no queues, no record.
	for _, kind := range []string{KindInput, KindOutput} {
		_, err := mem.QueueURL(ctx, QueueName("webordinary", kind, key))
		assert.ErrorIs(t, err, queue.ErrQueueNotFound, kind)
	}
	_, err = store.LatestQueueRecord(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEnsureRollsBackOnRedriveFailure(t *testing.T) {
	mem := queue.NewMemory()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	queues := &failingQueues{Memory: mem, failRedrive: true}
	reg := New(queues, store, "webordinary", nil)
	ctx := context.Background()
	key := types.TenantKey{ProjectID: "amelia", UserID: "scott"}

	_, err = reg.Ensure(ctx, key)
	require.Error(t, err)

	for _, kind := range []string{KindInput, KindOutput, KindDLQ} {
		_, err := mem.QueueURL(ctx, QueueName("webordinary", kind, key))
		assert.ErrorIs(t, err, queue.ErrQueueNotFound, kind)
	}
}

func TestQueueNaming(t *testing.T) {
	key := types.TenantKey{ProjectID: "Amelia", UserID: "scott_dev"}
	assert.Equal(t, "webordinary-input-amelia-scott-dev", QueueName("webordinary", KindInput, key))
	assert.Equal(t, "webordinary-unclaimed", UnclaimedQueueName("webordinary"))
}

func TestParseQueueName(t *testing.T) {
	tests := []struct {
		name     string
		wantKind string
		wantKey  types.TenantKey
		wantOK   bool
	}{
		{"webordinary-input-amelia-scott", KindInput, types.TenantKey{ProjectID: "amelia", UserID: "scott"}, true},
		{"webordinary-dlq-amelia-scott", KindDLQ, types.TenantKey{ProjectID: "amelia", UserID: "scott"}, true},
		{"webordinary-unclaimed", "", types.TenantKey{}, false},
		{"other-input-amelia-scott", "", types.TenantKey{}, false},
		{"webordinary-input-solo", "", types.TenantKey{}, false},
	}
	for _, tc := range tests {
		kind, key, ok := ParseQueueName("webordinary", tc.name)
		assert.Equal(t, tc.wantOK, ok, tc.name)
		if tc.wantOK {
			assert.Equal(t, tc.wantKind, kind, tc.name)
			assert.Equal(t, tc.wantKey, key, tc.name)
		}
	}
}
