package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/scoutlane/scoutlane/internal/models"
)

// DevVerifier verifies and issues HS256 tokens against a local shared
// secret. Selected only when DEV_AUTH_ENABLED is set, which the config
// layer refuses in production.
type DevVerifier struct {
	secret []byte
	issuer string
}

// NewDevVerifier creates a development verifier with the given shared secret.
func NewDevVerifier(secret, issuer string) *DevVerifier {
	return &DevVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates an HS256 bearer token.
func (v *DevVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	}, parseOptions(jwt.SigningMethodHS256.Alg(), v.issuer)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}

	if !parsed.Valid {
		return nil, models.ErrUnauthenticated
	}

	if err := validateClaims(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// IssueToken mints a short-lived development token for the given user.
func (v *DevVerifier) IssueToken(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing dev token: %w", err)
	}

	return signed, nil
}
