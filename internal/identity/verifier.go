// Package identity verifies bearer tokens issued by the identity provider.
//
// Production tokens are RS256 JWTs verified against the provider's JWKS
// document, fetched over HTTP and cached with a TTL. A development verifier
// (HS256, shared secret) can be selected at startup via DEV_AUTH_ENABLED;
// the selection happens once and is never re-read mid-request.
package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/config"
	"github.com/scoutlane/scoutlane/internal/models"
)

// Claims are the token claims the access-control layer cares about.
// The subject is the caller's user ID.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the caller's user ID (the token subject).
func (c *Claims) UserID() string { return c.Subject }

// Verifier validates a bearer token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// New selects the verifier implementation from the startup configuration.
func New(cfg *config.Config, log *logrus.Logger) (Verifier, error) {
	if cfg.DevAuthEnabled {
		log.Warn("dev auth enabled: tokens are verified against a local shared secret")

		return NewDevVerifier(cfg.DevAuthSecret.Value(), cfg.TokenIssuer), nil
	}

	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("identity: JWKS URL is required")
	}

	return NewJWKSVerifier(cfg.JWKSURL, cfg.TokenIssuer, log), nil
}

// parseOptions builds the jwt parser options shared by both verifiers.
func parseOptions(method, issuer string) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return opts
}

// validateClaims rejects tokens whose subject is missing.
func validateClaims(claims *Claims) error {
	if claims.Subject == "" {
		return fmt.Errorf("%w: token has no subject", models.ErrUnauthenticated)
	}

	return nil
}
