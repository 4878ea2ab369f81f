package models

import "time"

// Severity classifies a table's isolation posture.
type Severity string

// Audit severities.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityClean    Severity = "clean"
)

// Overall audit statuses.
const (
	StatusCritical = "critical"
	StatusWarnings = "warnings"
	StatusSecure   = "secure"
)

// PolicyInfo describes one row-level security policy on a monitored table.
type PolicyInfo struct {
	Name          string `json:"name"`
	Command       string `json:"command"`
	UsingClause   string `json:"using_clause,omitempty"`
	WithCheck     string `json:"with_check,omitempty"`
	BindsTenant   bool   `json:"binds_tenant"`
	BindsIdentity bool   `json:"binds_identity"`
}

// TableAudit is the per-table isolation verdict. Computed on demand,
// never persisted.
type TableAudit struct {
	Table           string       `json:"table"`
	RLSEnabled      bool         `json:"rls_enabled"`
	RLSForced       bool         `json:"rls_forced"`
	HasTenantColumn bool         `json:"has_tenant_column"`
	Policies        []PolicyInfo `json:"policies"`
	Issues          []string     `json:"issues,omitempty"`
	Severity        Severity     `json:"severity"`
}

// AuditReport aggregates per-table verdicts into an overall status.
type AuditReport struct {
	RanAt         time.Time    `json:"ran_at"`
	Tables        []TableAudit `json:"tables"`
	OverallStatus string       `json:"overall_status"`
}

// IsolationProbe is one cross-tenant read attempt during an isolation test.
type IsolationProbe struct {
	Table     string `json:"table"`
	Rows      int    `json:"rows"`
	Error     string `json:"error,omitempty"`
	Prevented bool   `json:"prevented"`
}

// IsolationReport is the outcome of a cross-tenant prevention test.
// Prevented holds iff every probe returned zero rows or an error.
type IsolationReport struct {
	SourceTenant string           `json:"source_tenant"`
	TargetTenant string           `json:"target_tenant"`
	Probes       []IsolationProbe `json:"probes"`
	Prevented    bool             `json:"prevented"`
	RanAt        time.Time        `json:"ran_at"`
}

// EnumerationProbe is one probe of a tenant identifier.
type EnumerationProbe struct {
	Slug   string `json:"slug"`
	Status int    `json:"status"`
	Shape  string `json:"shape"`
}

// EnumerationReport asserts that invalid and unauthorized tenant identifiers
// produce byte-for-byte uniform response classes.
type EnumerationReport struct {
	Probes  []EnumerationProbe `json:"probes"`
	Uniform bool               `json:"uniform"`
	RanAt   time.Time          `json:"ran_at"`
}
