package storage

import (
	"context"
	"errors"
	"time"

	"github.com/webordinary/switchboard/pkg/types"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for Switchboard's durable state.
// Implemented by BoltStore (local single-binary mode) and DynamoStore
// (hosted mode). Persistent stores are the source of truth; in-memory
// structures elsewhere are derived state.
type Store interface {
	// Thread mappings. PutThreadMapping is a conditional insert: the
	// thread→tenant binding is immutable, so a mapping that already
	// exists is left untouched and the call succeeds.
	GetThreadMapping(ctx context.Context, threadID string) (*types.ThreadMapping, error)
	PutThreadMapping(ctx context.Context, m *types.ThreadMapping) error
	TouchThreadMapping(ctx context.Context, threadID string, at time.Time, transport types.Source) error
	CountThreadMappings(ctx context.Context) (int, error)

	// Queue registry records, keyed (tenantKey, createdAt). Reads always
	// return the newest record; older records remain for audit until the
	// tenant's records are deleted wholesale.
	PutQueueRecord(ctx context.Context, rec *types.QueueRecord) error
	LatestQueueRecord(ctx context.Context, key types.TenantKey) (*types.QueueRecord, error)
	ListLatestQueueRecords(ctx context.Context) ([]*types.QueueRecord, error)
	DeleteQueueRecords(ctx context.Context, key types.TenantKey) error

	// Ownership records, keyed by tenantKey. Workers are the writers;
	// the core reads, and the reaper flips stale records to inactive.
	GetOwnership(ctx context.Context, key types.TenantKey) (*types.OwnershipRecord, error)
	PutOwnership(ctx context.Context, rec *types.OwnershipRecord) error
	ListOwnership(ctx context.Context) ([]*types.OwnershipRecord, error)

	// Session index, keyed by sessionId. Read-only to the core; Put
	// exists for seeding and tests.
	GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error)
	PutSession(ctx context.Context, rec *types.SessionRecord) error

	Close() error
}
