package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/models"
)

const (
	// keyCacheTTL bounds how long verification keys are trusted before a
	// lazy refresh. Provider key rotation is on the order of days, so an
	// hour keeps the fetch off the hot path without trusting stale keys.
	keyCacheTTL = 1 * time.Hour

	jwksFetchTimeout = 5 * time.Second
)

// JWKSVerifier verifies RS256 tokens against a cached JWKS document.
type JWKSVerifier struct {
	url    string
	issuer string
	client *http.Client
	log    *logrus.Logger

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewJWKSVerifier creates a verifier for the given JWKS endpoint.
func NewJWKSVerifier(url, issuer string, log *logrus.Logger) *JWKSVerifier {
	return &JWKSVerifier{
		url:    url,
		issuer: issuer,
		client: &http.Client{Timeout: jwksFetchTimeout},
		log:    log,
		keys:   make(map[string]*rsa.PublicKey),
	}
}

// Verify parses and validates an RS256 bearer token.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no key id")
		}

		return v.keyForKid(ctx, kid)
	}, parseOptions(jwt.SigningMethodRS256.Alg(), v.issuer)...)
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

// keyForKid returns the cached key for kid, refreshing the key set at most
// once when the cache is expired or the kid is unknown.
func (v *JWKSVerifier) keyForKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Since(v.fetchedAt) < keyCacheTTL
	v.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	return v.refreshAndGet(ctx, kid)
}

// refreshAndGet fetches the JWKS document and looks up kid. The write lock
// is held across the fetch so concurrent misses trigger a single refresh.
func (v *JWKSVerifier) refreshAndGet(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	// Another request may have refreshed while we waited for the lock.
	if key, ok := v.keys[kid]; ok && time.Since(v.fetchedAt) < keyCacheTTL {
		return key, nil
	}

	keys, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("refreshing verification keys: %w", err)
	}

	v.keys = keys
	v.fetchedAt = time.Now()
	v.log.WithField("keys", len(keys)).Debug("verification key set refreshed")

	key, ok := v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}

	return key, nil
}

type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// fetchKeys downloads and parses the JWKS document into RSA public keys.
func (v *JWKSVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building JWKS request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))

	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}

		pub, err := k.publicKey()
		if err != nil {
			v.log.WithError(err).WithField("kid", k.Kid).Warn("skipping unparseable JWKS key")
			continue
		}

		keys[k.Kid] = pub
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("JWKS document contains no usable RSA signing keys")
	}

	return keys, nil
}

// publicKey builds an rsa.PublicKey from the base64url modulus and exponent.
func (k jwksKey) publicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 1 {
		return nil, fmt.Errorf("invalid public exponent")
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}
