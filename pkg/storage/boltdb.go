package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/webordinary/switchboard/pkg/types"
)

var (
	// Bucket names
	bucketThreadMappings = []byte("thread_mappings")
	bucketQueueRecords   = []byte("queue_records")
	bucketOwnership      = []byte("ownership")
	bucketSessions       = []byte("sessions")
)

// BoltStore implements Store using BoltDB. Used in local single-binary
// mode and in tests.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "switchboard.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketThreadMappings,
			bucketQueueRecords,
			bucketOwnership,
			bucketSessions,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Thread mapping operations

func (s *BoltStore) GetThreadMapping(ctx context.Context, threadID string) (*types.ThreadMapping, error) {
	var m types.ThreadMapping
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketThreadMappings).Get([]byte(threadID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &m)
	})
	if err != nil {
		return nil, err
	}
	// BoltDB has no native TTL; expiry is enforced lazily on read.
	if !m.ExpiresAt.IsZero() && m.ExpiresAt.Before(s.now()) {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *BoltStore) PutThreadMapping(ctx context.Context, m *types.ThreadMapping) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketThreadMappings)
		if b.Get([]byte(m.ThreadID)) != nil {
			// Binding already exists; the tenant is immutable once written.
			return nil
		}
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return b.Put([]byte(m.ThreadID), data)
	})
}

func (s *BoltStore) TouchThreadMapping(ctx context.Context, threadID string, at time.Time, transport types.Source) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketThreadMappings)
		data := b.Get([]byte(threadID))
		if data == nil {
			return ErrNotFound
		}
		var m types.ThreadMapping
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		m.LastActivityAt = at
		m.MessageCount++
		m.LastTransport = transport
		m.ExpiresAt = at.Add(types.ThreadMappingTTL)
		updated, err := json.Marshal(&m)
		if err != nil {
			return err
		}
		return b.Put([]byte(threadID), updated)
	})
}

func (s *BoltStore) CountThreadMappings(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketThreadMappings).Stats().KeyN
		return nil
	})
	return count, err
}

// Queue record operations. Keys are tenantKey|<zero-padded unix nanos> so
// a prefix scan in key order ends at the newest record.

func queueRecordKey(key types.TenantKey, createdAt time.Time) []byte {
	return []byte(fmt.Sprintf("%s|%020d", key.String(), createdAt.UnixNano()))
}

func queueRecordPrefix(key types.TenantKey) []byte {
	return []byte(key.String() + "|")
}

func (s *BoltStore) PutQueueRecord(ctx context.Context, rec *types.QueueRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketQueueRecords).Put(queueRecordKey(rec.TenantKey, rec.CreatedAt), data)
	})
}

func (s *BoltStore) LatestQueueRecord(ctx context.Context, key types.TenantKey) (*types.QueueRecord, error) {
	var rec *types.QueueRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketQueueRecords).Cursor()
		prefix := queueRecordPrefix(key)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var r types.QueueRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			rec = &r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *BoltStore) ListLatestQueueRecords(ctx context.Context) ([]*types.QueueRecord, error) {
	latest := make(map[types.TenantKey]*types.QueueRecord)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueueRecords).ForEach(func(k, v []byte) error {
			var r types.QueueRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if cur, ok := latest[r.TenantKey]; !ok || r.CreatedAt.After(cur.CreatedAt) {
				rec := r
				latest[r.TenantKey] = &rec
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	records := make([]*types.QueueRecord, 0, len(latest))
	for _, rec := range latest {
		records = append(records, rec)
	}
	return records, nil
}

func (s *BoltStore) DeleteQueueRecords(ctx context.Context, key types.TenantKey) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueueRecords)
		c := b.Cursor()
		prefix := queueRecordPrefix(key)
		var keys [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Ownership operations

func (s *BoltStore) GetOwnership(ctx context.Context, key types.TenantKey) (*types.OwnershipRecord, error) {
	var rec types.OwnershipRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketOwnership).Get([]byte(key.String()))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) PutOwnership(ctx context.Context, rec *types.OwnershipRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketOwnership).Put([]byte(rec.TenantKey.String()), data)
	})
}

func (s *BoltStore) ListOwnership(ctx context.Context) ([]*types.OwnershipRecord, error) {
	var records []*types.OwnershipRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOwnership).ForEach(func(k, v []byte) error {
			var rec types.OwnershipRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, &rec)
			return nil
		})
	})
	return records, err
}

// Session operations

func (s *BoltStore) GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	var rec types.SessionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(sessionID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BoltStore) PutSession(ctx context.Context, rec *types.SessionRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSessions).Put([]byte(rec.SessionID), data)
	})
}
