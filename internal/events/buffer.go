package events

import (
	"sync"
	"time"
)

const (
	bufferMaxLen = 500
	bufferMaxAge = 1 * time.Hour
)

// buffer stores recent events per tenant for the security log endpoint.
type buffer struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func newBuffer() *buffer {
	return &buffer{events: make(map[string][]Event)}
}

// append stores an event, evicting expired and overflow entries.
func (b *buffer) append(event *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := b.events[event.TenantID]

	// Evict expired events from the front.
	cutoff := time.Now().Add(-bufferMaxAge)
	start := 0
	for start < len(buf) && buf[start].Time.Before(cutoff) {
		start++
	}
	if start > 0 {
		buf = buf[start:]
	}

	buf = append(buf, *event)
	if len(buf) > bufferMaxLen {
		buf = buf[len(buf)-bufferMaxLen:]
	}

	b.events[event.TenantID] = buf
}

// recent returns up to n of the newest buffered events for a tenant,
// newest last. The result is a copy.
func (b *buffer) recent(tenantID string, n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	buf := b.events[tenantID]
	if len(buf) == 0 {
		return nil
	}

	if n <= 0 || n > len(buf) {
		n = len(buf)
	}

	result := make([]Event, n)
	copy(result, buf[len(buf)-n:])

	return result
}

// evictStaleTenants drops tenants whose newest event is past the max age.
func (b *buffer) evictStaleTenants() {
	cutoff := time.Now().Add(-bufferMaxAge)

	b.mu.Lock()
	defer b.mu.Unlock()

	for tenant, buf := range b.events {
		if len(buf) == 0 || buf[len(buf)-1].Time.Before(cutoff) {
			delete(b.events, tenant)
		}
	}
}
