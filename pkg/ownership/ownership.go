package ownership

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/webordinary/switchboard/pkg/log"
	"github.com/webordinary/switchboard/pkg/storage"
	"github.com/webordinary/switchboard/pkg/types"
)

// Reader answers the single question the router asks: does some worker
// currently own this tenant? Workers write ownership records out of band;
// the core only reads them, so a record is trusted only while its
// heartbeat is fresh.
type Reader struct {
	store     storage.Store
	freshness time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewReader creates an ownership reader. freshness is the maximum
// heartbeat age an active record may have and still count as owning.
func NewReader(store storage.Store, freshness time.Duration) *Reader {
	return &Reader{
		store:     store,
		freshness: freshness,
		now:       time.Now,
		logger:    log.WithComponent("ownership"),
	}
}

// IsOwning reports whether the tenant has an active owner with a fresh
// heartbeat. A missing record, an inactive record, a stale heartbeat, and
// a store error all answer false: when in doubt, the router announces a
// claim rather than letting work sit on an unwatched input queue.
func (r *Reader) IsOwning(ctx context.Context, key types.TenantKey) bool {
	rec, err := r.store.GetOwnership(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		r.logger.Warn().Err(err).
			Str("tenant", key.String()).
			Msg("ownership read failed, treating tenant as unowned")
		return false
	}
	return r.owning(rec)
}

// Owner returns the worker ID currently owning the tenant, or "" if none.
func (r *Reader) Owner(ctx context.Context, key types.TenantKey) string {
	rec, err := r.store.GetOwnership(ctx, key)
	if err != nil {
		return ""
	}
	if !r.owning(rec) {
		return ""
	}
	return rec.WorkerID
}

func (r *Reader) owning(rec *types.OwnershipRecord) bool {
	if rec == nil || rec.Status != types.OwnershipActive {
		return false
	}
	return r.now().Sub(rec.LastHeartbeatAt) <= r.freshness
}

// SweepStale flips active records whose heartbeat is older than hardTTL
// to inactive, and returns how many were flipped. Called by the reaper;
// this is the only ownership write the core performs.
func SweepStale(ctx context.Context, store storage.Store, hardTTL time.Duration, now time.Time) (int, error) {
	records, err := store.ListOwnership(ctx)
	if err != nil {
		return 0, err
	}

	logger := log.WithComponent("ownership")
	flipped := 0
	for _, rec := range records {
		if rec.Status != types.OwnershipActive {
			continue
		}
		if now.Sub(rec.LastHeartbeatAt) <= hardTTL {
			continue
		}
		rec.Status = types.OwnershipInactive
		if err := store.PutOwnership(ctx, rec); err != nil {
			logger.Error().Err(err).
				Str("tenant", rec.TenantKey.String()).
				Msg("failed to flip stale ownership record")
			continue
		}
		flipped++
		logger.Info().
			Str("tenant", rec.TenantKey.String()).
			Str("worker", rec.WorkerID).
			Time("lastHeartbeat", rec.LastHeartbeatAt).
			Msg("flipped stale ownership record to inactive")
	}
	return flipped, nil
}
