// Package tenant resolves tenant slugs to validated access contexts.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/dbpool"
	"github.com/scoutlane/scoutlane/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// withTimeout creates a context with the default query timeout. A lookup
// past the deadline surfaces as an error to the caller, never an
// indefinite block.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// Store provides data access for tenants and memberships.
type Store struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// NewStore creates a Store.
func NewStore(pool *dbpool.Pool, log *logrus.Logger) *Store {
	return &Store{Pool: pool, Log: log}
}

// beginUserScoped starts a transaction with the caller's user ID bound to
// the session setting the membership RLS policy checks. is_local=true keeps
// the setting from leaking past the transaction on the pooled connection.
func (s *Store) beginUserScoped(ctx context.Context, userID string) (pgx.Tx, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning scoped transaction: %w", err)
	}

	if _, err := tx.Exec(ctx, "SELECT set_config('app.user_id', $1, true)", userID); err != nil {
		_ = tx.Rollback(ctx)

		return nil, fmt.Errorf("setting user scope: %w", err)
	}

	return tx, nil
}

// ResolveSlug looks up a tenant by slug together with the caller's
// membership in a single round trip. Returns models.ErrTenantNotFound when
// the slug is unknown and models.ErrNotMember when the tenant exists but
// the caller holds no membership.
func (s *Store) ResolveSlug(ctx context.Context, userID, slug string) (*models.AccessContext, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginUserScoped(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only transaction.

	var (
		tenantID   string
		tenantSlug string
		role       *string
	)

	err = tx.QueryRow(ctx, `
		SELECT t.id, t.slug, m.role
		FROM tenants t
		LEFT JOIN memberships m ON m.tenant_id = t.id AND m.user_id = $1
		WHERE t.slug = $2`,
		userID, slug,
	).Scan(&tenantID, &tenantSlug, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrTenantNotFound
		}

		return nil, fmt.Errorf("resolving tenant by slug: %w", err)
	}

	if role == nil {
		return nil, models.ErrNotMember
	}

	return &models.AccessContext{
		UserID:     userID,
		TenantID:   tenantID,
		TenantSlug: tenantSlug,
		Role:       models.Role(*role),
	}, nil
}

// Memberships returns all of the caller's memberships with tenant slugs,
// oldest first.
func (s *Store) Memberships(ctx context.Context, userID string) ([]models.Membership, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginUserScoped(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only transaction.

	rows, err := tx.Query(ctx, `
		SELECT m.tenant_id, t.slug, m.user_id, m.role, m.created_at
		FROM memberships m
		JOIN tenants t ON t.id = m.tenant_id
		WHERE m.user_id = $1
		ORDER BY m.created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	defer rows.Close()

	var memberships []models.Membership

	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.TenantID, &m.TenantSlug, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}

		memberships = append(memberships, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading memberships: %w", err)
	}

	return memberships, nil
}

// TenantIDBySlug looks up a tenant ID without any membership check. Used by
// the security auditor, which needs raw tenant IDs for isolation probes.
func (s *Store) TenantIDBySlug(ctx context.Context, slug string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var tenantID string

	err := s.Pool.QueryRow(ctx, "SELECT id FROM tenants WHERE slug = $1", slug).Scan(&tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrTenantNotFound
		}

		return "", fmt.Errorf("looking up tenant id: %w", err)
	}

	return tenantID, nil
}
