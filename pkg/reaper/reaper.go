package reaper

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/webordinary/switchboard/pkg/events"
	"github.com/webordinary/switchboard/pkg/ingress"
	"github.com/webordinary/switchboard/pkg/log"
	"github.com/webordinary/switchboard/pkg/metrics"
	"github.com/webordinary/switchboard/pkg/ownership"
	"github.com/webordinary/switchboard/pkg/queue"
	"github.com/webordinary/switchboard/pkg/registry"
	"github.com/webordinary/switchboard/pkg/storage"
	"github.com/webordinary/switchboard/pkg/types"
)

// Options tunes the reaper's sweep behavior.
type Options struct {
	// Interval between scheduled sweeps.
	Interval time.Duration
	// OrphanAge is the minimum queue age before an unowned tenant's
	// queues become deletable (T_orphan).
	OrphanAge time.Duration
	// OwnerHardTTL is the heartbeat age past which an active ownership
	// record is flipped to inactive (T_owner_hard).
	OwnerHardTTL time.Duration
	// OwnerFreshness is the owning-freshness window (T_owner), used to
	// decide whether a tenant still has a live owner.
	OwnerFreshness time.Duration
	// Prefix is the managed queue naming prefix.
	Prefix string
}

// SweepStats summarizes one sweep.
type SweepStats struct {
	QueuesDeleted  int
	OwnersFlipped  int
	ThreadMappings int
}

// Reaper periodically cleans up what the rest of the system abandons:
// queues of tenants nobody owns anymore, and ownership records whose
// workers stopped heartbeating without deregistering.
type Reaper struct {
	queues  queue.Service
	store   storage.Store
	owners  *ownership.Reader
	broker  *events.Broker
	opts    Options
	now     func() time.Time
	logger  zerolog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a reaper. broker may be nil.
func New(queues queue.Service, store storage.Store, broker *events.Broker, opts Options) *Reaper {
	return &Reaper{
		queues: queues,
		store:  store,
		owners: ownership.NewReader(store, opts.OwnerFreshness),
		broker: broker,
		opts:   opts,
		now:    time.Now,
		logger: log.WithComponent("reaper"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (r *Reaper) Start() {
	go r.run()
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reaper) run() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error().Err(err).Msg("sweep failed")
			}
			cancel()
		case <-r.stopCh:
			return
		}
	}
}

// Sweep performs one cleanup cycle: flip stale ownership records, delete
// orphaned tenant queues, and report thread mapping volume.
func (r *Reaper) Sweep(ctx context.Context) (SweepStats, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReaperSweepDuration)

	var stats SweepStats
	now := r.now()

	flipped, err := ownership.SweepStale(ctx, r.store, r.opts.OwnerHardTTL, now)
	if err != nil {
		return stats, fmt.Errorf("ownership sweep failed: %w", err)
	}
	stats.OwnersFlipped = flipped
	if flipped > 0 {
		metrics.ReaperOwnersFlipped.Add(float64(flipped))
		r.publish(events.EventReaperOwnerFlipped, "stale owners flipped", map[string]string{
			"count": fmt.Sprintf("%d", flipped),
		})
	}

	deleted, err := r.sweepOrphanQueues(ctx, now)
	if err != nil {
		return stats, err
	}
	stats.QueuesDeleted = deleted

	if count, err := r.store.CountThreadMappings(ctx); err == nil {
		stats.ThreadMappings = count
		metrics.ThreadMappings.Set(float64(count))
	} else {
		r.logger.Warn().Err(err).Msg("failed to count thread mappings")
	}

	r.logger.Info().
		Int("queuesDeleted", stats.QueuesDeleted).
		Int("ownersFlipped", stats.OwnersFlipped).
		Int("threadMappings", stats.ThreadMappings).
		Dur("elapsed", timer.Duration()).
		Msg("sweep complete")
	return stats, nil
}

// sweepOrphanQueues deletes the queues of tenants that have no live
// owner and whose queues are older than OrphanAge. The shared unclaimed
// queue is never touched.
func (r *Reaper) sweepOrphanQueues(ctx context.Context, now time.Time) (int, error) {
	infos, err := r.queues.ListQueues(ctx, r.opts.Prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list queues: %w", err)
	}

	// Prefer registry records to recover the tenant behind a queue;
	// name parsing is the fallback for queues the registry forgot.
	urlToTenant := make(map[string]types.TenantKey)
	if records, err := r.store.ListLatestQueueRecords(ctx); err == nil {
		for _, rec := range records {
			urlToTenant[rec.Triplet.InputURL] = rec.TenantKey
			urlToTenant[rec.Triplet.OutputURL] = rec.TenantKey
			urlToTenant[rec.Triplet.DLQURL] = rec.TenantKey
		}
	} else {
		r.logger.Warn().Err(err).Msg("failed to list queue records, falling back to name parsing")
	}

	// Shared singletons are never reaped.
	shared := map[string]bool{
		registry.UnclaimedQueueName(r.opts.Prefix): true,
		ingress.QueueName(r.opts.Prefix):           true,
	}
	byTenant := make(map[types.TenantKey][]queue.QueueInfo)
	for _, info := range infos {
		if shared[info.Name] {
			continue
		}
		tenant, ok := urlToTenant[info.URL]
		if !ok {
			_, parsed, parseOK := registry.ParseQueueName(r.opts.Prefix, info.Name)
			if !parseOK {
				r.logger.Warn().Str("queue", info.Name).Msg("skipping unrecognized queue")
				continue
			}
			tenant = parsed
		}
		byTenant[tenant] = append(byTenant[tenant], info)
	}

	deleted := 0
	for tenant, queues := range byTenant {
		if r.owners.IsOwning(ctx, tenant) {
			continue
		}
		if age := r.youngestAge(queues, now); age <= r.opts.OrphanAge {
			continue
		}

		for _, info := range queues {
			if info.ApproxMessages > 0 {
				r.logger.Warn().
					Str("tenant", tenant.String()).
					Str("queue", info.Name).
					Int("undelivered", info.ApproxMessages).
					Msg("deleting orphaned queue with undelivered messages")
			}
			if err := r.queues.DeleteQueue(ctx, info.URL); err != nil {
				r.logger.Error().Err(err).Str("queue", info.Name).Msg("failed to delete orphaned queue")
				continue
			}
			deleted++
			metrics.ReaperQueuesDeleted.Inc()
			r.publish(events.EventReaperQueueDeleted, "orphaned queue deleted", map[string]string{
				"tenant": tenant.String(),
				"queue":  info.Name,
			})
		}
		if err := r.store.DeleteQueueRecords(ctx, tenant); err != nil {
			r.logger.Error().Err(err).Str("tenant", tenant.String()).Msg("failed to delete queue records")
		}
		r.logger.Info().Str("tenant", tenant.String()).Msg("reaped orphaned tenant queues")
	}
	return deleted, nil
}

// youngestAge returns the age of the newest queue in the group. A tenant
// is orphaned only when even its newest queue is past the threshold.
func (r *Reaper) youngestAge(queues []queue.QueueInfo, now time.Time) time.Duration {
	var youngest time.Duration
	for i, info := range queues {
		age := now.Sub(info.CreatedAt)
		if i == 0 || age < youngest {
			youngest = age
		}
	}
	return youngest
}

func (r *Reaper) publish(t events.EventType, message string, metadata map[string]string) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(events.New(t, message, metadata))
}
