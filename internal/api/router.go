// Package api wires the HTTP surface: routing, middleware order, and the
// security endpoint handlers.
package api

import (
	"context"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/config"
	"github.com/scoutlane/scoutlane/internal/dbpool"
	"github.com/scoutlane/scoutlane/internal/events"
	"github.com/scoutlane/scoutlane/internal/middleware"
	"github.com/scoutlane/scoutlane/internal/models"
	"github.com/scoutlane/scoutlane/internal/ratelimit"
)

const maxRequestBody = 10 << 20 // 10 MiB

// AccessValidator authorizes a caller against a tenant and role set.
type AccessValidator interface {
	Authorize(ctx context.Context, userID, slug string, required ...models.Role) (*models.AccessContext, error)
}

// SecurityAuditor runs isolation audits and active probes.
type SecurityAuditor interface {
	RunAudit(ctx context.Context) (*models.AuditReport, error)
	TestCrossTenantPrevention(ctx context.Context, sourceTenantID, targetTenantID string) (*models.IsolationReport, error)
}

// Deps carries everything the router needs. All fields are required except
// Pool, which only backs the readiness probe.
type Deps struct {
	Cfg       *config.Config
	Log       *logrus.Logger
	Pool      *dbpool.Pool
	Validator AccessValidator
	Auditor   SecurityAuditor
	Hub       *events.Hub
	Limiter   *ratelimit.Store
	Verifier  middleware.TokenVerifier
}

// NewRouter builds the Gin engine with the full middleware chain.
func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	classes := ratelimit.DefaultClasses()

	h := &Handlers{
		log:       d.Log,
		validator: d.Validator,
		auditor:   d.Auditor,
		hub:       d.Hub,
		limiter:   d.Limiter,
		classes:   classes,
		wsOrigins: originHosts(d.Cfg.CORSOrigins),
	}

	r := gin.New()
	_ = r.SetTrustedProxies(nil)

	r.Use(
		middleware.RequestID(d.Log),
		middleware.Logger(d.Log),
		gin.Recovery(),
		middleware.SecurityHeaders(),
		middleware.MaxBodySize(maxRequestBody),
		cors.New(corsConfig(d.Cfg)),
		middleware.CSRF(middleware.CSRFConfig{
			Disabled:    d.Cfg.DisableCSRF,
			Secure:      d.Cfg.Production(),
			ExemptPaths: []string{"/api/v1/webhooks/"},
		}, d.Log, d.Hub),
		middleware.Prometheus(),
	)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1",
		middleware.RateLimit(d.Limiter, ratelimit.ClassAPI, classes[ratelimit.ClassAPI], d.Log, d.Hub),
	)

	v1.GET("/health", h.Health)
	v1.GET("/ready", h.Ready(d.Pool))

	// The auth class sits in front of Auth so repeated token failures burn
	// quota; SkipSuccessful refunds every request that authenticates.
	sec := v1.Group("/security",
		middleware.RateLimit(d.Limiter, ratelimit.ClassAuth, classes[ratelimit.ClassAuth], d.Log, d.Hub),
		middleware.Auth(d.Verifier, d.Log),
		middleware.RateLimit(d.Limiter, ratelimit.ClassAdmin, classes[ratelimit.ClassAdmin], d.Log, d.Hub),
	)
	sec.GET("/audit", h.GetSecurityAudit)
	sec.POST("/audit", h.PostSecurityAction)
	sec.GET("/events", h.SecurityEvents)

	return r
}

func corsConfig(cfg *config.Config) cors.Config {
	return cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", middleware.CSRFHeaderName},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// originHosts extracts host patterns for the WebSocket origin check from
// the configured CORS origins.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))

	for _, origin := range origins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}

	return hosts
}
