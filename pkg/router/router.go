package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/webordinary/switchboard/pkg/events"
	"github.com/webordinary/switchboard/pkg/log"
	"github.com/webordinary/switchboard/pkg/metrics"
	"github.com/webordinary/switchboard/pkg/ownership"
	"github.com/webordinary/switchboard/pkg/queue"
	"github.com/webordinary/switchboard/pkg/registry"
	"github.com/webordinary/switchboard/pkg/tenant"
	"github.com/webordinary/switchboard/pkg/thread"
	"github.com/webordinary/switchboard/pkg/types"
)

// ErrTransient marks routing failures worth retrying upstream: the
// message was valid and attributed, but delivery could not be completed.
var ErrTransient = errors.New("transient routing failure")

// retryBackoff is the pause before the single send retry.
const retryBackoff = 250 * time.Millisecond

// Router drives the ingress pipeline: thread extraction, tenant
// resolution, queue provisioning, ownership check, and delivery. One
// Router instance serializes routing per tenant so a tenant's messages
// reach its input queue in arrival order.
type Router struct {
	resolver *tenant.Resolver
	registry *registry.Registry
	owners   *ownership.Reader
	queues   queue.Service
	sender   WorkSender
	broker   *events.Broker
	now      func() time.Time
	logger   zerolog.Logger

	mu          sync.Mutex
	tenantLocks map[types.TenantKey]*sync.Mutex
}

// New creates a router. broker may be nil when no event consumers exist
// (one-shot CLI routing).
func New(resolver *tenant.Resolver, reg *registry.Registry, owners *ownership.Reader, queues queue.Service, sender WorkSender, broker *events.Broker) *Router {
	return &Router{
		resolver:    resolver,
		registry:    reg,
		owners:      owners,
		queues:      queues,
		sender:      sender,
		broker:      broker,
		now:         time.Now,
		logger:      log.WithComponent("router"),
		tenantLocks: make(map[types.TenantKey]*sync.Mutex),
	}
}

// Route processes one ingress message end to end and returns the
// decision describing where it went. Validation failures wrap
// types.ErrValidation and are terminal; wrapped ErrTransient failures are
// retryable by the caller.
func (r *Router) Route(ctx context.Context, msg types.IngressMsg) (*types.RoutingDecision, error) {
	threadID := thread.Extract(msg)

	res, err := r.resolver.Resolve(ctx, msg, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	// Serialize from here on so a tenant's messages keep arrival order
	// through queue creation and delivery.
	lock := r.tenantLock(res.Key)
	lock.Lock()
	defer lock.Unlock()

	work := r.buildWork(msg, res, threadID)
	if err := types.ValidateWork(work); err != nil {
		metrics.RoutesTotal.WithLabelValues("rejected").Inc()
		r.publish(events.EventRouteRejected, "message rejected", map[string]string{
			"tenant":   res.Key.String(),
			"threadId": threadID,
			"reason":   err.Error(),
		})
		return nil, err
	}

	triplet, err := r.registry.Ensure(ctx, res.Key)
	if err != nil {
		metrics.RoutesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	owned := r.owners.IsOwning(ctx, res.Key)

	decision := &types.RoutingDecision{
		TenantKey:      res.Key,
		ThreadID:       threadID,
		CommandID:      work.CommandID,
		InputURL:       triplet.InputURL,
		OutputURL:      triplet.OutputURL,
		NeedsUnclaimed: !owned,
		Unresolved:     res.Unresolved,
		MissingConfig:  res.MissingConfig,
	}

	// Work is delivered regardless of ownership; an unowned tenant's
	// message waits on the input queue until a worker answers the claim.
	workErr := r.withRetry(ctx, func() error {
		return r.sender.SendWork(ctx, triplet.InputURL, triplet.OutputURL, work)
	})

	var claimErr error
	if !owned {
		claimErr = r.announceClaim(ctx, res.Key, work.CommandID)
	}

	if workErr != nil {
		// The claim, if any, still went out; the instruction itself is
		// lost and the caller must retry.
		metrics.RoutesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: work send failed: %v", ErrTransient, workErr)
	}
	if claimErr != nil {
		metrics.RoutesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: claim announce failed: %v", ErrTransient, claimErr)
	}

	result := "direct"
	if !owned {
		result = "unclaimed"
	}
	metrics.RoutesTotal.WithLabelValues(result).Inc()
	r.publish(events.EventRouteCompleted, "message routed", map[string]string{
		"tenant":    res.Key.String(),
		"threadId":  threadID,
		"commandId": work.CommandID,
		"result":    result,
	})
	logger := log.WithThreadID(log.WithTenant(r.logger, res.Key.String()), threadID)
	logger = log.WithCommandID(logger, work.CommandID)
	logger.Info().
		Bool("owned", owned).
		Bool("unresolved", res.Unresolved).
		Msg("routed ingress message")

	return decision, nil
}

func (r *Router) buildWork(msg types.IngressMsg, res *tenant.Resolution, threadID string) *types.WorkMessage {
	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	work := &types.WorkMessage{
		Type:        types.MessageTypeWork,
		CommandID:   uuid.New().String(),
		SessionID:   sessionID,
		ProjectID:   res.Key.ProjectID,
		UserID:      res.Key.UserID,
		ThreadID:    threadID,
		Instruction: msg.Instruction,
		RepoURL:     res.RepoURL,
		Source:      msg.Source,
		Timestamp:   r.now().UTC(),
		Context:     msg.Raw,
	}
	if msg.Source == types.SourceEmail {
		work.UserEmail = msg.SenderIdentity
	}
	return work
}

// announceClaim publishes an ownership invitation on the shared unclaimed
// queue.
func (r *Router) announceClaim(ctx context.Context, key types.TenantKey, commandID string) error {
	unclaimedURL, err := r.registry.EnsureUnclaimed(ctx)
	if err != nil {
		return err
	}
	claim := &types.ClaimRequest{
		Type:      types.MessageTypeClaim,
		ProjectID: key.ProjectID,
		UserID:    key.UserID,
		CommandID: commandID,
		Timestamp: r.now().UTC(),
	}
	body, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to marshal claim request: %w", err)
	}
	attrs := map[string]string{
		"projectId": key.ProjectID,
		"userId":    key.UserID,
	}
	if err := r.withRetry(ctx, func() error {
		return r.queues.Send(ctx, unclaimedURL, string(body), attrs)
	}); err != nil {
		return err
	}
	metrics.ClaimsTotal.Inc()
	metrics.MessagesSentTotal.WithLabelValues("unclaimed").Inc()
	r.publish(events.EventClaimAnnounced, "claim announced", map[string]string{
		"tenant":    key.String(),
		"commandId": commandID,
	})
	return nil
}

// withRetry runs fn, and on failure retries once after a short pause.
func (r *Router) withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	metrics.SendRetriesTotal.Inc()
	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return ctx.Err()
	}
	if retryErr := fn(); retryErr != nil {
		return fmt.Errorf("send failed after retry: %w", retryErr)
	}
	return nil
}

func (r *Router) publish(t events.EventType, message string, metadata map[string]string) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(events.New(t, message, metadata))
}

func (r *Router) tenantLock(key types.TenantKey) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.tenantLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.tenantLocks[key] = lock
	}
	return lock
}
