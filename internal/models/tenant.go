// Package models defines the shared domain types for the access-control layer.
package models

import "time"

// Role is a member's role within a tenant, ordered OWNER > ADMIN > MANAGER > SCOUT.
type Role string

// Membership roles.
const (
	RoleOwner   Role = "OWNER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleScout   Role = "SCOUT"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleScout:
		return true
	}
	return false
}

// In reports whether r is one of the given roles.
func (r Role) In(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

// Tenant is an isolated customer organization and the unit of data partitioning.
// Slugs are unique, immutable, and never reused.
type Tenant struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership binds a user to a tenant with a role.
// The (TenantID, UserID) pair is unique.
type Membership struct {
	TenantID   string    `json:"tenant_id"`
	TenantSlug string    `json:"tenant_slug"`
	UserID     string    `json:"user_id"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// AccessContext is the per-request resolved identity. It is only ever
// constructed for a tenant the caller holds a membership in, and is
// discarded when the response is written.
type AccessContext struct {
	UserID     string `json:"user_id"`
	TenantID   string `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug"`
	Role       Role   `json:"role"`
}
