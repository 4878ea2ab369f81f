package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/identity"
	"github.com/scoutlane/scoutlane/internal/metrics"
)

// authTimingFloor is the minimum response time for failed authentication to
// prevent timing oracles that could distinguish token failure modes.
const authTimingFloor = 50 * time.Millisecond

// UserIDKey is the gin context key for the authenticated caller's user ID.
const UserIDKey = "user_id"

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*identity.Claims, error)
}

// enforceTimingFloor sleeps if needed so the response takes at least authTimingFloor.
func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// Auth returns Gin middleware that authenticates requests via bearer token
// and stores the caller's user ID in the request context.
func Auth(verifier TokenVerifier, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		token := ExtractBearerToken(c)
		if token == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header")
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			metrics.AuthFailures.Inc()
			logAuthFailure(log, c)

			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
			return
		}

		c.Set(UserIDKey, claims.UserID())
		c.Next()
	}
}

// ExtractBearerToken extracts the token from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// logAuthFailure logs a failed authentication attempt. The token itself is
// never logged.
func logAuthFailure(log *logrus.Logger, c *gin.Context) {
	log.WithFields(logrus.Fields{
		"security_event": "auth_failed",
		"client_ip":      c.ClientIP(),
		"method":         c.Request.Method,
		"path":           c.Request.URL.Path,
		"user_agent":     c.Request.UserAgent(),
		"request_id":     c.GetString(RequestIDKey),
	}).Warn("authentication failed: invalid bearer token")
}
