// Package audit verifies tenant isolation posture by introspecting the
// database's row-level security configuration and by actively probing it.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/scoutlane/scoutlane/internal/dbpool"
	"github.com/scoutlane/scoutlane/internal/metrics"
	"github.com/scoutlane/scoutlane/internal/models"
)

// tenantColumn is the column every monitored table must carry and every
// policy must reference.
const tenantColumn = "tenant_id"

// MonitoredTables are the tables whose isolation posture is audited.
func MonitoredTables() []string {
	return []string{"players", "trials", "scout_requests", "memberships"}
}

// Auditor inspects row-level security configuration for the monitored
// tables. Reports are computed on demand and never persisted.
type Auditor struct {
	pool   *dbpool.Pool
	log    *logrus.Logger
	tables []string
}

// NewAuditor creates an Auditor over the default monitored tables.
func NewAuditor(pool *dbpool.Pool, log *logrus.Logger) *Auditor {
	return &Auditor{pool: pool, log: log, tables: MonitoredTables()}
}

// RunAudit audits every monitored table concurrently and aggregates the
// verdicts. A single table's query failure fails the whole run: a partial
// audit could misreport a vulnerable table as absent.
func (a *Auditor) RunAudit(ctx context.Context) (*models.AuditReport, error) {
	started := time.Now()
	results := make([]models.TableAudit, len(a.tables))

	g, gctx := errgroup.WithContext(ctx)

	for i, table := range a.tables {
		i, table := i, table
		g.Go(func() error {
			ta, err := a.auditTable(gctx, table)
			if err != nil {
				return fmt.Errorf("auditing table %s: %w", table, err)
			}

			results[i] = *ta

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &models.AuditReport{
		RanAt:         started,
		Tables:        results,
		OverallStatus: overallStatus(results),
	}

	metrics.AuditRuns.WithLabelValues(report.OverallStatus).Inc()
	a.log.WithFields(logrus.Fields{
		"overall_status": report.OverallStatus,
		"tables":         len(results),
		"duration_ms":    time.Since(started).Milliseconds(),
	}).Info("security audit completed")

	return report, nil
}

// auditTable gathers the raw RLS state for one table and classifies it.
func (a *Auditor) auditTable(ctx context.Context, table string) (*models.TableAudit, error) {
	ta := models.TableAudit{Table: table}

	err := a.pool.QueryRow(ctx, `
		SELECT c.relrowsecurity, c.relforcerowsecurity
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = 'public' AND c.relname = $1`,
		table,
	).Scan(&ta.RLSEnabled, &ta.RLSForced)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("table does not exist")
		}

		return nil, fmt.Errorf("reading pg_class: %w", err)
	}

	err = a.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
		)`,
		table, tenantColumn,
	).Scan(&ta.HasTenantColumn)
	if err != nil {
		return nil, fmt.Errorf("reading information_schema: %w", err)
	}

	policies, err := a.tablePolicies(ctx, table)
	if err != nil {
		return nil, err
	}
	ta.Policies = policies

	classify(&ta)

	return &ta, nil
}

// tablePolicies reads pg_policies for one table, sorted by policy name so
// report output is stable.
func (a *Auditor) tablePolicies(ctx context.Context, table string) ([]models.PolicyInfo, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT policyname, cmd, COALESCE(qual, ''), COALESCE(with_check, '')
		FROM pg_policies
		WHERE schemaname = 'public' AND tablename = $1`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("reading pg_policies: %w", err)
	}
	defer rows.Close()

	var policies []models.PolicyInfo

	for rows.Next() {
		var p models.PolicyInfo
		if err := rows.Scan(&p.Name, &p.Command, &p.UsingClause, &p.WithCheck); err != nil {
			return nil, fmt.Errorf("scanning policy: %w", err)
		}

		clauses := p.UsingClause + " " + p.WithCheck
		p.BindsTenant = strings.Contains(clauses, tenantColumn)
		p.BindsIdentity = strings.Contains(clauses, "current_setting")

		policies = append(policies, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading policies: %w", err)
	}

	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })

	return policies, nil
}

// classify derives issues and a severity from the raw table state.
//
// critical: RLS is off, the tenant column is missing, or no policy
// references the tenant column at all. high: policies reference the tenant
// column but none bind it to the session identity, so the scoping value is
// unanchored. clean: otherwise.
func classify(ta *models.TableAudit) {
	if !ta.RLSEnabled {
		ta.Issues = append(ta.Issues, "row-level security is not enabled")
	}
	if !ta.RLSForced {
		ta.Issues = append(ta.Issues, "row-level security is not forced for the table owner")
	}
	if !ta.HasTenantColumn {
		ta.Issues = append(ta.Issues, "table has no "+tenantColumn+" column")
	}

	bindsTenant := false
	bindsIdentity := false

	for _, p := range ta.Policies {
		if p.BindsTenant {
			bindsTenant = true
		}
		if p.BindsTenant && p.BindsIdentity {
			bindsIdentity = true
		}
	}

	if len(ta.Policies) == 0 {
		ta.Issues = append(ta.Issues, "no row-level security policies defined")
	} else if !bindsTenant {
		ta.Issues = append(ta.Issues, "no policy references the "+tenantColumn+" column")
	} else if !bindsIdentity {
		ta.Issues = append(ta.Issues, "no policy binds "+tenantColumn+" to the session tenant setting")
	}

	switch {
	case !ta.RLSEnabled || !ta.HasTenantColumn || !bindsTenant:
		ta.Severity = models.SeverityCritical
	case !bindsIdentity:
		ta.Severity = models.SeverityHigh
	default:
		ta.Severity = models.SeverityClean
	}
}

// overallStatus collapses per-table severities. Any critical table makes
// the whole report critical.
func overallStatus(tables []models.TableAudit) string {
	status := models.StatusSecure

	for _, ta := range tables {
		switch ta.Severity {
		case models.SeverityCritical:
			return models.StatusCritical
		case models.SeverityHigh:
			status = models.StatusWarnings
		case models.SeverityClean:
		}
	}

	return status
}
