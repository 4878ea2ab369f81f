package tenant

import (
	"context"

	"github.com/scoutlane/scoutlane/internal/models"
)

// TenantResolver resolves a caller and slug into an access context.
type TenantResolver interface {
	Resolve(ctx context.Context, userID, slug string) (*models.AccessContext, error)
}

// Validator composes tenant resolution with role checks. It is a pure
// function of the caller identity, requested tenant, and role set.
type Validator struct {
	resolver TenantResolver
}

// NewValidator creates a Validator on top of the given resolver.
func NewValidator(resolver TenantResolver) *Validator {
	return &Validator{resolver: resolver}
}

// Authorize resolves the tenant and checks that the caller's role is in the
// required set. An empty role set allows any member. The failure never
// reveals which roles were required.
func (v *Validator) Authorize(ctx context.Context, userID, slug string, required ...models.Role) (*models.AccessContext, error) {
	access, err := v.resolver.Resolve(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	if len(required) > 0 && !access.Role.In(required...) {
		return nil, models.ErrForbidden
	}

	return access, nil
}
