package tenant

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/metrics"
	"github.com/scoutlane/scoutlane/internal/models"
)

// MembershipSource is the data access needed to resolve tenants.
type MembershipSource interface {
	ResolveSlug(ctx context.Context, userID, slug string) (*models.AccessContext, error)
	Memberships(ctx context.Context, userID string) ([]models.Membership, error)
}

// Resolver maps a tenant slug to an access context, validating that the
// caller is a member. It holds no per-request state.
type Resolver struct {
	store MembershipSource
	log   *logrus.Logger
}

// NewResolver creates a Resolver.
func NewResolver(store MembershipSource, log *logrus.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// Resolve returns the caller's access context for the named tenant.
//
// With a slug, the lookup is a single joined query: an unknown slug yields
// models.ErrTenantNotFound, a known slug without membership yields
// models.ErrNotMember. The two are indistinguishable externally; the
// membership denial is recorded in the security log here.
//
// Without a slug, a caller with exactly one membership resolves to it;
// several memberships yield models.ErrTenantSelection so the caller must
// choose explicitly rather than landing in an arbitrary tenant.
func (r *Resolver) Resolve(ctx context.Context, userID, slug string) (*models.AccessContext, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}

	if slug != "" {
		return r.resolveSlug(ctx, userID, slug)
	}

	return r.resolveFallback(ctx, userID)
}

func (r *Resolver) resolveSlug(ctx context.Context, userID, slug string) (*models.AccessContext, error) {
	access, err := r.store.ResolveSlug(ctx, userID, slug)
	if err != nil {
		if err == models.ErrNotMember { //nolint:errorlint // sentinel returned unwrapped by the store.
			metrics.TenantAccessDenials.Inc()
			r.log.WithFields(logrus.Fields{
				"security_event": "cross_tenant_denied",
				"user_id":        userID,
				"tenant_slug":    slug,
			}).Warn("tenant access denied: caller is not a member")
		}

		return nil, err
	}

	return access, nil
}

func (r *Resolver) resolveFallback(ctx context.Context, userID string) (*models.AccessContext, error) {
	memberships, err := r.store.Memberships(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch len(memberships) {
	case 0:
		return nil, models.ErrTenantNotFound
	case 1:
		m := memberships[0]

		return &models.AccessContext{
			UserID:     userID,
			TenantID:   m.TenantID,
			TenantSlug: m.TenantSlug,
			Role:       m.Role,
		}, nil
	default:
		return nil, models.ErrTenantSelection
	}
}
