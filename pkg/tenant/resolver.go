package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/webordinary/switchboard/pkg/config"
	"github.com/webordinary/switchboard/pkg/log"
	"github.com/webordinary/switchboard/pkg/storage"
	"github.com/webordinary/switchboard/pkg/types"
)

// Resolution is the resolver's answer for one ingress message.
type Resolution struct {
	Key types.TenantKey
	// RepoURL comes from the tenant-config table; empty when the tenant
	// has no configured repository.
	RepoURL string
	// Unresolved marks messages attributed to the reserved default tenant.
	Unresolved bool
	// MissingConfig marks tenants without a tenant-config entry carrying
	// a repository URL.
	MissingConfig bool
	// NewThread is true when this message created the thread mapping.
	NewThread bool
}

// Resolver maps an ingress message to its tenant, consulting in order:
// the session index, the thread mapping, and the static tenant-config
// table. Unattributable messages get the reserved default tenant.
type Resolver struct {
	store  storage.Store
	table  *config.TenantTable
	now    func() time.Time
	logger zerolog.Logger
}

// NewResolver creates a tenant resolver.
func NewResolver(store storage.Store, table *config.TenantTable) *Resolver {
	return &Resolver{
		store:  store,
		table:  table,
		now:    time.Now,
		logger: log.WithComponent("resolver"),
	}
}

// Resolve determines the tenant for a message whose thread identifier has
// already been extracted. It also maintains the thread mapping: the first
// message of a thread binds it to the resolved tenant permanently;
// follow-ups only bump activity.
func (r *Resolver) Resolve(ctx context.Context, msg types.IngressMsg, threadID string) (*Resolution, error) {
	mapping, err := r.store.GetThreadMapping(ctx, threadID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to read thread mapping: %w", err)
	}

	res := &Resolution{}
	switch {
	case msg.SessionID != "" && r.resolveSession(ctx, msg.SessionID, res):
	case mapping != nil:
		res.Key = mapping.TenantKey
	case r.resolveIdentity(msg.SenderIdentity, res):
	default:
		res.Key = types.DefaultTenant
		res.Unresolved = true
		logger := log.WithThreadID(r.logger, threadID)
		logger.Warn().
			Str("sender", msg.SenderIdentity).
			Msg("message could not be attributed to a tenant")
	}

	// Repository lookup always goes through the tenant-config table,
	// regardless of which step resolved the tenant.
	if entry, ok := r.table.ByTenant(res.Key); ok {
		res.RepoURL = entry.RepoURL
	}
	if res.RepoURL == "" {
		res.MissingConfig = true
	}

	now := r.now()
	if mapping != nil {
		if err := r.store.TouchThreadMapping(ctx, threadID, now, msg.Source); err != nil {
			return nil, fmt.Errorf("failed to touch thread mapping: %w", err)
		}
		return res, nil
	}

	res.NewThread = true
	err = r.store.PutThreadMapping(ctx, &types.ThreadMapping{
		ThreadID:       threadID,
		TenantKey:      res.Key,
		FirstSeenAt:    now,
		LastActivityAt: now,
		MessageCount:   1,
		LastTransport:  msg.Source,
		ExpiresAt:      now.Add(types.ThreadMappingTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record thread mapping: %w", err)
	}
	return res, nil
}

func (r *Resolver) resolveSession(ctx context.Context, sessionID string, res *Resolution) bool {
	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn().Err(err).Str("session_id", sessionID).Msg("session lookup failed")
		}
		return false
	}
	res.Key = session.TenantKey
	return true
}

func (r *Resolver) resolveIdentity(identity string, res *Resolution) bool {
	if identity == "" {
		return false
	}
	entry, ok := r.table.ByIdentity(identity)
	if !ok {
		return false
	}
	res.Key = entry.TenantKey()
	return true
}
