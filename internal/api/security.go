package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/events"
	"github.com/scoutlane/scoutlane/internal/httputil"
	"github.com/scoutlane/scoutlane/internal/middleware"
	"github.com/scoutlane/scoutlane/internal/models"
	"github.com/scoutlane/scoutlane/internal/ratelimit"
)

const recentEventLimit = 100

// Handlers implements the security API endpoints.
type Handlers struct {
	log       *logrus.Logger
	validator AccessValidator
	auditor   SecurityAuditor
	hub       *events.Hub
	limiter   *ratelimit.Store
	classes   map[ratelimit.Class]ratelimit.Config
	wsOrigins []string
}

// authorize resolves the tenant from the query string and checks the
// caller's role. Denials for existing tenants are published to that
// tenant's security feed.
func (h *Handlers) authorize(c *gin.Context, required ...models.Role) (*models.AccessContext, bool) {
	slug := c.Query("tenant")
	if slug == "" {
		httputil.RespondError(c, http.StatusBadRequest, "validation_error", "tenant query parameter is required")

		return nil, false
	}

	userID := c.GetString(middleware.UserIDKey)

	access, err := h.validator.Authorize(c.Request.Context(), userID, slug, required...)
	if err != nil {
		if errors.Is(err, models.ErrForbidden) {
			h.hub.Publish(events.TypeAccessDenied, slug, map[string]any{
				"user_id": userID,
				"path":    c.Request.URL.Path,
			})
		}

		mapError(c, h.log, err)

		return nil, false
	}

	return access, true
}

// GetSecurityAudit serves the read side of the security dashboard. The type
// query parameter selects the view; summary is the default.
func (h *Handlers) GetSecurityAudit(c *gin.Context) {
	access, ok := h.authorize(c, models.RoleAdmin, models.RoleOwner)
	if !ok {
		return
	}

	kind := c.DefaultQuery("type", "summary")

	if kind == "export" && !h.allowExport(c, access) {
		return
	}

	switch kind {
	case "summary":
		report, err := h.auditor.RunAudit(c.Request.Context())
		if err != nil {
			mapError(c, h.log, err)

			return
		}

		httputil.RespondData(c, http.StatusOK, summarize(report))

	case "security", "schema":
		report, err := h.auditor.RunAudit(c.Request.Context())
		if err != nil {
			mapError(c, h.log, err)

			return
		}

		httputil.RespondData(c, http.StatusOK, report)

	case "logs":
		httputil.RespondData(c, http.StatusOK, gin.H{
			"events": h.hub.Recent(access.TenantSlug, recentEventLimit),
		})

	case "stats":
		httputil.RespondData(c, http.StatusOK, gin.H{
			"subscribers":       h.hub.SubscriberCount(),
			"rate_limit_keys":   h.limiter.Len(),
			"monitored_classes": len(h.classes),
		})

	case "export":
		report, err := h.auditor.RunAudit(c.Request.Context())
		if err != nil {
			mapError(c, h.log, err)

			return
		}

		httputil.RespondData(c, http.StatusOK, gin.H{
			"audit":  report,
			"events": h.hub.Recent(access.TenantSlug, recentEventLimit),
		})

	default:
		httputil.RespondError(c, http.StatusBadRequest, "validation_error", "unknown type: "+kind)
	}
}

// allowExport charges the export quota, which is stricter than the admin
// class this route already sits behind.
func (h *Handlers) allowExport(c *gin.Context, access *models.AccessContext) bool {
	key := ratelimit.Key(ratelimit.ClassExport, access.TenantSlug, access.UserID, c.ClientIP())

	result := h.limiter.CheckAndIncrement(key, h.classes[ratelimit.ClassExport])
	if !result.Allowed {
		c.Header("Retry-After", strconv.Itoa(result.RetryAfterSeconds))
		c.Header("Cache-Control", "no-store")
		mapError(c, h.log, models.ErrRateLimited)

		return false
	}

	return true
}

type securityAction struct {
	Action string `json:"action" binding:"required"`
}

// PostSecurityAction executes an administrative security action. Owner only.
func (h *Handlers) PostSecurityAction(c *gin.Context) {
	access, ok := h.authorize(c, models.RoleOwner)
	if !ok {
		return
	}

	var req securityAction
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "validation_error", "action is required")

		return
	}

	switch req.Action {
	case "run_audit":
		report, err := h.auditor.RunAudit(c.Request.Context())
		if err != nil {
			mapError(c, h.log, err)

			return
		}

		h.hub.Publish(events.TypeAuditCompleted, access.TenantSlug, map[string]any{
			"overall_status": report.OverallStatus,
		})

		httputil.RespondData(c, http.StatusOK, report)

	case "test_isolation":
		// The probe scopes a transaction to a tenant ID that cannot exist
		// and tries to read this tenant's rows through it.
		foreign := uuid.New().String()

		report, err := h.auditor.TestCrossTenantPrevention(c.Request.Context(), foreign, access.TenantID)
		if err != nil {
			mapError(c, h.log, err)

			return
		}

		httputil.RespondData(c, http.StatusOK, report)

	case "clear_rate_limits":
		h.limiter.Reset()
		h.log.WithFields(logrus.Fields{
			"security_event": "rate_limits_cleared",
			"user_id":        access.UserID,
			"tenant_slug":    access.TenantSlug,
		}).Warn("rate limit state cleared by administrator")

		httputil.RespondData(c, http.StatusOK, gin.H{"cleared": true})

	default:
		httputil.RespondError(c, http.StatusBadRequest, "validation_error", "unknown action: "+req.Action)
	}
}

// summarize collapses a full audit report into the dashboard card payload.
func summarize(report *models.AuditReport) gin.H {
	counts := map[models.Severity]int{}
	for _, ta := range report.Tables {
		counts[ta.Severity]++
	}

	return gin.H{
		"overall_status": report.OverallStatus,
		"ran_at":         report.RanAt,
		"tables_audited": len(report.Tables),
		"critical":       counts[models.SeverityCritical],
		"high":           counts[models.SeverityHigh],
		"clean":          counts[models.SeverityClean],
	}
}
