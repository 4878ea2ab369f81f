package models

import "errors"

// Sentinel errors for the access-control taxonomy. Handlers map these to
// HTTP responses in internal/api; everything else is an internal error and
// surfaces to clients as a generic message.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrValidation      = errors.New("validation failed")
)

// ErrNotMember indicates the tenant exists but the caller holds no membership.
// It maps to the same external response as ErrTenantNotFound so the two
// outcomes are indistinguishable to an observer; the distinction survives
// only in the server-side security log.
var ErrNotMember = errors.New("caller is not a member of the tenant")

// ErrTenantSelection indicates the caller belongs to several tenants and
// must name one explicitly.
var ErrTenantSelection = errors.New("tenant selection required")
