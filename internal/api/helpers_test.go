package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/events"
	"github.com/scoutlane/scoutlane/internal/middleware"
	"github.com/scoutlane/scoutlane/internal/models"
	"github.com/scoutlane/scoutlane/internal/ratelimit"
)

// fakeValidator models one tenant ("alpha") with three members plus an
// existing tenant ("beta") the test users are not members of.
type fakeValidator struct{}

func (fakeValidator) Authorize(_ context.Context, userID, slug string, required ...models.Role) (*models.AccessContext, error) {
	if slug != "alpha" {
		if slug == "beta" {
			return nil, models.ErrNotMember
		}

		return nil, models.ErrTenantNotFound
	}

	roles := map[string]models.Role{
		"owner-1": models.RoleOwner,
		"admin-1": models.RoleAdmin,
		"scout-1": models.RoleScout,
	}

	role, ok := roles[userID]
	if !ok {
		return nil, models.ErrNotMember
	}

	if len(required) > 0 && !role.In(required...) {
		return nil, models.ErrForbidden
	}

	return &models.AccessContext{
		UserID:     userID,
		TenantID:   "11111111-1111-1111-1111-111111111111",
		TenantSlug: slug,
		Role:       role,
	}, nil
}

type fakeAuditor struct {
	report    *models.AuditReport
	isolation *models.IsolationReport
	err       error
}

func (f *fakeAuditor) RunAudit(_ context.Context) (*models.AuditReport, error) {
	return f.report, f.err
}

func (f *fakeAuditor) TestCrossTenantPrevention(_ context.Context, source, target string) (*models.IsolationReport, error) {
	if f.isolation != nil {
		f.isolation.SourceTenant = source
		f.isolation.TargetTenant = target
	}

	return f.isolation, f.err
}

func cleanReport() *models.AuditReport {
	return &models.AuditReport{
		RanAt: time.Now(),
		Tables: []models.TableAudit{
			{Table: "players", RLSEnabled: true, RLSForced: true, HasTenantColumn: true, Severity: models.SeverityClean},
			{Table: "trials", RLSEnabled: true, RLSForced: true, HasTenantColumn: true, Severity: models.SeverityClean},
		},
		OverallStatus: models.StatusSecure,
	}
}

type testEnv struct {
	router  *gin.Engine
	hub     *events.Hub
	limiter *ratelimit.Store
}

// newTestEnv builds the security routes with a stubbed authenticator that
// trusts the X-Test-User header.
func newTestEnv(t *testing.T, auditor SecurityAuditor) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := events.NewHub(log)
	limiter := ratelimit.NewStore(ctx, log)

	h := &Handlers{
		log:       log,
		validator: fakeValidator{},
		auditor:   auditor,
		hub:       hub,
		limiter:   limiter,
		classes:   ratelimit.DefaultClasses(),
	}

	auth := func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			c.Set(middleware.UserIDKey, user)
		}
		c.Next()
	}

	r := gin.New()
	r.GET("/api/v1/security/audit", auth, h.GetSecurityAudit)
	r.POST("/api/v1/security/audit", auth, h.PostSecurityAction)

	return &testEnv{router: r, hub: hub, limiter: limiter}
}

func (e *testEnv) get(user, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/security/audit"+query, nil)
	req.Header.Set("X-Test-User", user)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	return w
}

func (e *testEnv) post(user, query, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/security/audit"+query, strings.NewReader(body))
	req.Header.Set("X-Test-User", user)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	return w
}
