package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scoutlane/scoutlane/internal/dbpool"
	"github.com/scoutlane/scoutlane/internal/httputil"
)

const readyTimeout = 5 * time.Second

// Health reports process liveness.
func (h *Handlers) Health(c *gin.Context) {
	httputil.RespondData(c, http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports readiness, which requires database connectivity.
func (h *Handlers) Ready(pool *dbpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if pool == nil {
			httputil.RespondError(c, http.StatusServiceUnavailable, "not_ready", "database not configured")

			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		if err := pool.HealthCheck(ctx); err != nil {
			h.log.WithError(err).Warn("readiness check failed")
			httputil.RespondError(c, http.StatusServiceUnavailable, "not_ready", "database unavailable")

			return
		}

		// Migrations must have created the tenants table before the
		// service can resolve anything.
		var schemaOK *string
		if err := pool.QueryRow(ctx, "SELECT to_regclass('public.tenants')::text").Scan(&schemaOK); err != nil || schemaOK == nil {
			h.log.Warn("readiness check failed: schema not migrated")
			httputil.RespondError(c, http.StatusServiceUnavailable, "not_ready", "schema not ready")

			return
		}

		httputil.RespondData(c, http.StatusOK, gin.H{"status": "ready"})
	}
}
