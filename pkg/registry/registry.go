package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/webordinary/switchboard/pkg/events"
	"github.com/webordinary/switchboard/pkg/log"
	"github.com/webordinary/switchboard/pkg/metrics"
	"github.com/webordinary/switchboard/pkg/queue"
	"github.com/webordinary/switchboard/pkg/storage"
	"github.com/webordinary/switchboard/pkg/types"
)

// MaxReceiveCount is the redrive budget before a message moves to the DLQ.
const MaxReceiveCount = 3

// ErrNoTriplet is returned by Get when a tenant has no registered triplet.
var ErrNoTriplet = errors.New("no queue triplet registered")

// Registry maintains the authoritative map from tenant keys to their
// queue triplets. Triplets are created lazily on first use and persisted
// keyed (tenantKey, createdAt); either all three queues of a tenant exist
// or none do.
type Registry struct {
	queues queue.Service
	store  storage.Store
	broker *events.Broker
	prefix string
	mu     sync.Mutex
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a queue registry using the given naming prefix. broker
// may be nil.
func New(queues queue.Service, store storage.Store, prefix string, broker *events.Broker) *Registry {
	return &Registry{
		queues: queues,
		store:  store,
		broker: broker,
		prefix: prefix,
		now:    time.Now,
		logger: log.WithComponent("registry"),
	}
}

// Ensure returns the tenant's triplet, creating it if necessary. It is
// idempotent: a triplet known to the registry, or discoverable by name in
// the queue service, is returned without creating anything.
func (r *Registry) Ensure(ctx context.Context, key types.TenantKey) (*types.QueueTriplet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, err := r.store.LatestQueueRecord(ctx, key); err == nil {
		return &rec.Triplet, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to read queue record: %w", err)
	}

	if triplet, err := r.discover(ctx, key); err != nil {
		return nil, err
	} else if triplet != nil {
		if err := r.persist(ctx, key, triplet); err != nil {
			return nil, err
		}
		return triplet, nil
	}

	return r.create(ctx, key)
}

// Get returns the tenant's registered triplet, or ErrNoTriplet.
func (r *Registry) Get(ctx context.Context, key types.TenantKey) (*types.QueueTriplet, error) {
	rec, err := r.store.LatestQueueRecord(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoTriplet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue record: %w", err)
	}
	return &rec.Triplet, nil
}

// Drop deletes the tenant's queues and registry records.
func (r *Registry) Drop(ctx context.Context, key types.TenantKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.store.LatestQueueRecord(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read queue record: %w", err)
	}
	for _, url := range []string{rec.Triplet.InputURL, rec.Triplet.OutputURL, rec.Triplet.DLQURL} {
		if err := r.queues.DeleteQueue(ctx, url); err != nil && !errors.Is(err, queue.ErrQueueNotFound) {
			return fmt.Errorf("failed to delete queue %s: %w", url, err)
		}
	}
	if err := r.store.DeleteQueueRecords(ctx, key); err != nil {
		return fmt.Errorf("failed to delete queue records: %w", err)
	}
	r.logger.Info().Str("tenant", key.String()).Msg("queue triplet dropped")
	return nil
}

// EnsureUnclaimed returns the URL of the shared unclaimed queue,
// creating it if necessary.
func (r *Registry) EnsureUnclaimed(ctx context.Context) (string, error) {
	name := UnclaimedQueueName(r.prefix)
	if url, err := r.queues.QueueURL(ctx, name); err == nil {
		return url, nil
	} else if !errors.Is(err, queue.ErrQueueNotFound) {
		return "", err
	}
	return r.queues.CreateQueue(ctx, name, map[string]string{"managedBy": "switchboard"})
}

// Prefix returns the queue naming prefix.
func (r *Registry) Prefix() string {
	return r.prefix
}

// discover checks whether all three queues already exist by name.
// A partial set is an invariant violation left for the reaper; discovery
// treats it as absent.
func (r *Registry) discover(ctx context.Context, key types.TenantKey) (*types.QueueTriplet, error) {
	triplet := &types.QueueTriplet{CreatedAt: r.now().UTC()}
	targets := []struct {
		kind string
		url  *string
	}{
		{KindInput, &triplet.InputURL},
		{KindOutput, &triplet.OutputURL},
		{KindDLQ, &triplet.DLQURL},
	}
	for _, target := range targets {
		url, err := r.queues.QueueURL(ctx, QueueName(r.prefix, target.kind, key))
		if errors.Is(err, queue.ErrQueueNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to discover queues: %w", err)
		}
		*target.url = url
	}
	return triplet, nil
}

// create provisions all three queues concurrently. If any creation or
// configuration step fails, every queue created so far is deleted before
// the error is returned: a partial triplet must never survive.
func (r *Registry) create(ctx context.Context, key types.TenantKey) (*types.QueueTriplet, error) {
	tags := r.tags(key)
	triplet := &types.QueueTriplet{CreatedAt: r.now().UTC()}

	var urlMu sync.Mutex
	var created []string
	createOne := func(kind string, dest *string) func() error {
		return func() error {
			url, err := r.queues.CreateQueue(ctx, QueueName(r.prefix, kind, key), tags)
			if err != nil {
				return fmt.Errorf("failed to create %s queue: %w", kind, err)
			}
			urlMu.Lock()
			created = append(created, url)
			urlMu.Unlock()
			*dest = url
			return nil
		}
	}

	var g errgroup.Group
	g.Go(createOne(KindInput, &triplet.InputURL))
	g.Go(createOne(KindOutput, &triplet.OutputURL))
	g.Go(createOne(KindDLQ, &triplet.DLQURL))
	if err := g.Wait(); err != nil {
		r.rollback(ctx, key, created)
		return nil, err
	}

	if err := r.queues.SetRedrive(ctx, triplet.InputURL, triplet.DLQURL, MaxReceiveCount); err != nil {
		r.rollback(ctx, key, created)
		return nil, fmt.Errorf("failed to configure redrive: %w", err)
	}

	if err := r.persist(ctx, key, triplet); err != nil {
		r.rollback(ctx, key, created)
		return nil, err
	}

	metrics.QueueTripletsCreated.Inc()
	if r.broker != nil {
		r.broker.Publish(events.New(events.EventTripletCreated, "queue triplet created", map[string]string{
			"tenant": key.String(),
			"input":  triplet.InputURL,
		}))
	}
	r.logger.Info().
		Str("tenant", key.String()).
		Str("input", triplet.InputURL).
		Msg("queue triplet created")
	return triplet, nil
}

func (r *Registry) persist(ctx context.Context, key types.TenantKey, triplet *types.QueueTriplet) error {
	err := r.store.PutQueueRecord(ctx, &types.QueueRecord{
		TenantKey: key,
		Triplet:   *triplet,
		CreatedAt: triplet.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to persist queue record: %w", err)
	}
	return nil
}

func (r *Registry) rollback(ctx context.Context, key types.TenantKey, urls []string) {
	metrics.RegistryRollbacks.Inc()
	for _, url := range urls {
		if err := r.queues.DeleteQueue(ctx, url); err != nil && !errors.Is(err, queue.ErrQueueNotFound) {
			r.logger.Error().Err(err).
				Str("tenant", key.String()).
				Str("url", url).
				Msg("rollback failed to delete queue")
		}
	}
}

func (r *Registry) tags(key types.TenantKey) map[string]string {
	return map[string]string{
		"project":   key.ProjectID,
		"tenant":    key.String(),
		"managedBy": "switchboard",
	}
}
