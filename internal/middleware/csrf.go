package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/events"
	"github.com/scoutlane/scoutlane/internal/metrics"
)

const (
	// CSRFCookieName holds the double-submit token. The cookie is
	// deliberately not HttpOnly: the client must read it to echo the
	// value back in the header.
	CSRFCookieName = "csrf_token"

	// CSRFHeaderName is the header the client echoes the cookie into.
	CSRFHeaderName = "X-CSRF-Token"

	csrfTokenBytes   = 32
	csrfCookieMaxAge = 12 * 60 * 60 // seconds
)

// CSRFConfig configures the double-submit guard. Built once at startup from
// the immutable application config.
type CSRFConfig struct {
	// Disabled bypasses validation entirely. Every bypassed unsafe
	// request is logged at Warn since it weakens a guarantee.
	Disabled bool

	// Secure marks the cookie Secure (set in production).
	Secure bool

	// ExemptPaths are path prefixes excused from validation, e.g.
	// webhook receivers that authenticate by other means.
	ExemptPaths []string
}

// CSRF returns double-submit-cookie middleware. Safe methods are never
// rejected; unsafe methods on non-exempt paths must echo the cookie token
// in the header. A rejection is terminal for the request.
func CSRF(cfg CSRFConfig, log *logrus.Logger, hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(CSRFCookieName)
		if err != nil || cookie == "" {
			cookie = mintToken(c, cfg, log)
		}

		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		if isExemptPath(c.Request.URL.Path, cfg.ExemptPaths) {
			c.Next()
			return
		}

		if cfg.Disabled {
			log.WithFields(logrus.Fields{
				"security_event": "csrf_bypassed",
				"method":         c.Request.Method,
				"path":           c.Request.URL.Path,
				"request_id":     c.GetString(RequestIDKey),
			}).Warn("CSRF validation bypassed by disable flag")
			c.Next()
			return
		}

		header := c.GetHeader(CSRFHeaderName)
		if header == "" || subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) != 1 {
			metrics.CSRFRejections.Inc()
			log.WithFields(logrus.Fields{
				"security_event": "csrf_rejected",
				"method":         c.Request.Method,
				"path":           c.Request.URL.Path,
				"client_ip":      c.ClientIP(),
				"request_id":     c.GetString(RequestIDKey),
			}).Warn("CSRF token missing or mismatched")

			if hub != nil {
				if slug := c.Query("tenant"); slug != "" {
					hub.Publish(events.TypeCSRFRejected, slug, map[string]any{
						"method": c.Request.Method,
						"path":   c.Request.URL.Path,
					})
				}
			}

			respondError(c, http.StatusForbidden, "forbidden", "CSRF token missing or invalid")
			return
		}

		c.Next()
	}
}

// mintToken generates a fresh token and sets the cookie on the response.
func mintToken(c *gin.Context, cfg CSRFConfig, log *logrus.Logger) string {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the process cannot mint unpredictable
		// tokens at all; surface loudly rather than degrade silently.
		log.WithError(err).Error("failed to generate CSRF token")

		return ""
	}

	token := hex.EncodeToString(buf)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CSRFCookieName, token, csrfCookieMaxAge, "/", "", cfg.Secure, false)

	return token
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isExemptPath(path string, exempt []string) bool {
	for _, prefix := range exempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
