package audit

import (
	"net/http"
	"testing"

	"github.com/scoutlane/scoutlane/internal/models"
)

func boundPolicy() models.PolicyInfo {
	return models.PolicyInfo{
		Name:          "tenant_isolation",
		Command:       "ALL",
		UsingClause:   "(tenant_id = (current_setting('app.tenant_id'::text, true))::uuid)",
		BindsTenant:   true,
		BindsIdentity: true,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		table     models.TableAudit
		want      models.Severity
		wantIssue bool
	}{
		{
			name: "fully protected",
			table: models.TableAudit{
				RLSEnabled: true, RLSForced: true, HasTenantColumn: true,
				Policies: []models.PolicyInfo{boundPolicy()},
			},
			want: models.SeverityClean,
		},
		{
			name: "rls disabled",
			table: models.TableAudit{
				RLSEnabled: false, HasTenantColumn: true,
				Policies: []models.PolicyInfo{boundPolicy()},
			},
			want:      models.SeverityCritical,
			wantIssue: true,
		},
		{
			name: "missing tenant column",
			table: models.TableAudit{
				RLSEnabled: true, RLSForced: true, HasTenantColumn: false,
				Policies: []models.PolicyInfo{boundPolicy()},
			},
			want:      models.SeverityCritical,
			wantIssue: true,
		},
		{
			name: "no policies at all",
			table: models.TableAudit{
				RLSEnabled: true, RLSForced: true, HasTenantColumn: true,
			},
			want:      models.SeverityCritical,
			wantIssue: true,
		},
		{
			name: "policy ignores tenant column",
			table: models.TableAudit{
				RLSEnabled: true, RLSForced: true, HasTenantColumn: true,
				Policies: []models.PolicyInfo{{
					Name: "allow_all", Command: "ALL", UsingClause: "true",
				}},
			},
			want:      models.SeverityCritical,
			wantIssue: true,
		},
		{
			name: "policy binds tenant but not identity",
			table: models.TableAudit{
				RLSEnabled: true, RLSForced: true, HasTenantColumn: true,
				Policies: []models.PolicyInfo{{
					Name: "static_scope", Command: "ALL",
					UsingClause: "(tenant_id = 'abc'::uuid)",
					BindsTenant: true,
				}},
			},
			want:      models.SeverityHigh,
			wantIssue: true,
		},
		{
			name: "forced off is an issue but not a downgrade",
			table: models.TableAudit{
				RLSEnabled: true, RLSForced: false, HasTenantColumn: true,
				Policies: []models.PolicyInfo{boundPolicy()},
			},
			want:      models.SeverityClean,
			wantIssue: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := tt.table
			classify(&ta)

			if ta.Severity != tt.want {
				t.Errorf("severity = %s, want %s (issues: %v)", ta.Severity, tt.want, ta.Issues)
			}
			if tt.wantIssue && len(ta.Issues) == 0 {
				t.Error("expected at least one issue")
			}
			if !tt.wantIssue && len(ta.Issues) != 0 {
				t.Errorf("unexpected issues: %v", ta.Issues)
			}
		})
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name       string
		severities []models.Severity
		want       string
	}{
		{"all clean", []models.Severity{models.SeverityClean, models.SeverityClean}, models.StatusSecure},
		{"one high", []models.Severity{models.SeverityClean, models.SeverityHigh}, models.StatusWarnings},
		{"critical wins over high", []models.Severity{models.SeverityHigh, models.SeverityCritical}, models.StatusCritical},
		{"empty", nil, models.StatusSecure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := make([]models.TableAudit, len(tt.severities))
			for i, s := range tt.severities {
				tables[i] = models.TableAudit{Severity: s}
			}

			if got := overallStatus(tables); got != tt.want {
				t.Errorf("overallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEnumerationPreventionUniform(t *testing.T) {
	probe := func(_ string) (int, string) {
		return http.StatusNotFound, `{"success":false,"error":{"code":"not_found"}}`
	}

	report := TestEnumerationPrevention(probe, []string{"no-such-tenant", "real-but-foreign"})

	if !report.Uniform {
		t.Error("identical responses must report uniform")
	}
	if len(report.Probes) != 2 {
		t.Fatalf("probes = %d, want 2", len(report.Probes))
	}
}

func TestEnumerationPreventionDetectsLeak(t *testing.T) {
	responses := map[string]int{
		"no-such-tenant":   http.StatusNotFound,
		"real-but-foreign": http.StatusForbidden,
	}
	probe := func(slug string) (int, string) {
		return responses[slug], "{}"
	}

	report := TestEnumerationPrevention(probe, []string{"no-such-tenant", "real-but-foreign"})

	if report.Uniform {
		t.Error("differing status codes leak tenant existence and must not report uniform")
	}
}

func TestMonitoredTablesStable(t *testing.T) {
	a := MonitoredTables()
	b := MonitoredTables()

	if len(a) == 0 {
		t.Fatal("no monitored tables")
	}

	a[0] = "mutated"
	if b[0] == "mutated" {
		t.Error("MonitoredTables must return a fresh slice")
	}
}
