// Package events implements the tenant-scoped security event feed.
//
// Guards across the request path publish events here; tenant admins can
// tail them live over WebSocket or query the recent buffer through the
// security API. Delivery is best-effort: slow subscribers are dropped, and
// nothing on the request path ever blocks on the feed.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Security event types published by the request-security layer. Events are
// keyed by tenant slug, the identifier every guard on the request path has
// at hand.
const (
	TypeRateLimited    = "rate_limit_violation"
	TypeAccessDenied   = "tenant_access_denied"
	TypeCSRFRejected   = "csrf_rejected"
	TypeAuditCompleted = "audit_completed"
)

// Event is the structured message sent to subscribers.
type Event struct {
	Type     string          `json:"type"`
	ID       uint64          `json:"id"`
	TenantID string          `json:"-"`
	Data     json.RawMessage `json:"data"`
	Time     time.Time       `json:"time"`
}

// sequence tracks monotonic event IDs per tenant.
type sequence struct {
	mu       sync.Mutex
	counters map[string]uint64
}

func newSequence() *sequence {
	return &sequence{counters: make(map[string]uint64)}
}

// next returns the next sequence number for a tenant.
func (s *sequence) next(tenantID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[tenantID]++

	return s.counters[tenantID]
}
