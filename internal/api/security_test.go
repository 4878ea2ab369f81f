package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/scoutlane/scoutlane/internal/events"
	"github.com/scoutlane/scoutlane/internal/models"
	"github.com/scoutlane/scoutlane/internal/ratelimit"
)

func TestGetAuditRequiresTenantParam(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	w := env.get("admin-1", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Success || envelope.Error.Code != "validation_error" {
		t.Errorf("envelope = %s, want validation_error", w.Body.String())
	}
}

func TestGetAuditRejectsScout(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	w := env.get("scout-1", "?tenant=alpha")

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestGetAuditSummaryForAdmin(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	w := env.get("admin-1", "?tenant=alpha")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			OverallStatus string `json:"overall_status"`
			TablesAudited int    `json:"tables_audited"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !envelope.Success || envelope.Data.OverallStatus != models.StatusSecure {
		t.Errorf("body = %s, want secure summary", w.Body.String())
	}
	if envelope.Data.TablesAudited != 2 {
		t.Errorf("tables_audited = %d, want 2", envelope.Data.TablesAudited)
	}
}

func TestGetAuditFullReport(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	w := env.get("admin-1", "?tenant=alpha&type=security")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var envelope struct {
		Data models.AuditReport `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(envelope.Data.Tables) != 2 || envelope.Data.Tables[0].Table != "players" {
		t.Errorf("unexpected report: %s", w.Body.String())
	}
}

// An unknown slug and an existing tenant the caller is not a member of must
// be byte-for-byte indistinguishable.
func TestTenantEnumerationUniform(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	unknown := env.get("admin-1", "?tenant=no-such-tenant")
	foreign := env.get("admin-1", "?tenant=beta")

	if unknown.Code != http.StatusNotFound || foreign.Code != http.StatusNotFound {
		t.Fatalf("statuses = %d, %d, want both 404", unknown.Code, foreign.Code)
	}
	if unknown.Body.String() != foreign.Body.String() {
		t.Errorf("response bodies differ:\n%s\n%s", unknown.Body.String(), foreign.Body.String())
	}
}

func TestGetAuditUnknownType(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	if w := env.get("admin-1", "?tenant=alpha&type=bogus"); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetAuditLogsReturnsBufferedEvents(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	env.hub.Publish(events.TypeRateLimited, "alpha", map[string]any{"class": "api"})

	w := env.get("admin-1", "?tenant=alpha&type=logs")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var envelope struct {
		Data struct {
			Events []events.Event `json:"events"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(envelope.Data.Events) != 1 || envelope.Data.Events[0].Type != events.TypeRateLimited {
		t.Errorf("events = %s", w.Body.String())
	}
}

func TestGetAuditExportQuota(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	for i := 0; i < 5; i++ {
		if w := env.get("admin-1", "?tenant=alpha&type=export"); w.Code != http.StatusOK {
			t.Fatalf("export %d: status = %d", i+1, w.Code)
		}
	}

	w := env.get("admin-1", "?tenant=alpha&type=export")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("sixth export: status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 must carry Retry-After")
	}
}

func TestGetAuditInternalErrorIsGeneric(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{err: errors.New("pg_policies: permission denied for relation")})

	w := env.get("admin-1", "?tenant=alpha")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body := w.Body.String(); strings.Contains(body, "pg_policies") || strings.Contains(body, "permission denied") {
		t.Errorf("internal detail leaked: %s", body)
	}
}

func TestPostAuditRequiresOwner(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	if w := env.post("admin-1", "?tenant=alpha", `{"action":"run_audit"}`); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for non-owner", w.Code)
	}
}

func TestPostRunAuditPublishesEvent(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	w := env.post("owner-1", "?tenant=alpha", `{"action":"run_audit"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	recent := env.hub.Recent("alpha", 10)
	if len(recent) != 1 || recent[0].Type != events.TypeAuditCompleted {
		t.Errorf("recent events = %+v, want one audit_completed", recent)
	}
}

func TestPostTestIsolation(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{
		report: cleanReport(),
		isolation: &models.IsolationReport{
			Probes:    []models.IsolationProbe{{Table: "players", Prevented: true}},
			Prevented: true,
			RanAt:     time.Now(),
		},
	})

	w := env.post("owner-1", "?tenant=alpha", `{"action":"test_isolation"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var envelope struct {
		Data models.IsolationReport `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !envelope.Data.Prevented {
		t.Error("expected prevented isolation report")
	}
	if envelope.Data.TargetTenant != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("target = %s, want caller's tenant ID", envelope.Data.TargetTenant)
	}
}

func TestPostClearRateLimits(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	env.limiter.CheckAndIncrement("api:alpha:u:1.2.3.4", ratelimit.Config{Window: time.Minute, MaxRequests: 5})

	w := env.post("owner-1", "?tenant=alpha", `{"action":"clear_rate_limits"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := env.limiter.Len(); got != 0 {
		t.Errorf("limiter.Len() = %d, want 0 after clear", got)
	}
}

func TestPostUnknownAction(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	if w := env.post("owner-1", "?tenant=alpha", `{"action":"drop_tables"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestPostMissingAction(t *testing.T) {
	env := newTestEnv(t, &fakeAuditor{report: cleanReport()})

	if w := env.post("owner-1", "?tenant=alpha", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
