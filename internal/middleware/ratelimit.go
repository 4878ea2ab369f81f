package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/events"
	"github.com/scoutlane/scoutlane/internal/metrics"
	"github.com/scoutlane/scoutlane/internal/ratelimit"
)

// RateLimit returns middleware enforcing the quota for one endpoint class.
// Quota headers are set on every response passing through the class so
// clients can pace themselves before hitting the limit.
func RateLimit(store *ratelimit.Store, class ratelimit.Class, cfg ratelimit.Config, log *logrus.Logger, hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ratelimit.Key(class, c.Query("tenant"), c.GetString(UserIDKey), c.ClientIP())

		result := store.CheckAndIncrement(key, cfg)

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))

		if !result.Allowed {
			// 429s must not be cached: the quota state they describe is
			// transient.
			c.Header("Retry-After", strconv.Itoa(result.RetryAfterSeconds))
			c.Header("Cache-Control", "no-store")

			metrics.RateLimitDenials.WithLabelValues(string(class)).Inc()
			log.WithFields(logrus.Fields{
				"security_event": "rate_limited",
				"class":          string(class),
				"client_ip":      c.ClientIP(),
				"path":           c.Request.URL.Path,
				"retry_after":    result.RetryAfterSeconds,
				"request_id":     c.GetString(RequestIDKey),
			}).Warn("rate limit exceeded")

			if hub != nil {
				if slug := c.Query("tenant"); slug != "" {
					hub.Publish(events.TypeRateLimited, slug, map[string]any{
						"class":       string(class),
						"path":        c.Request.URL.Path,
						"retry_after": result.RetryAfterSeconds,
					})
				}
			}

			respondError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, retry later")
			return
		}

		c.Next()

		// Classes with SkipSuccessful only count failures, so a request
		// that completed below 400 refunds its increment.
		if cfg.SkipSuccessful && c.Writer.Status() < http.StatusBadRequest {
			store.Forgive(key)
		}
	}
}
