package events

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scoutlane/scoutlane/internal/metrics"
)

// Hub channel buffer sizes and connection caps.
const (
	broadcastBuffer  = 256
	registerBuffer   = 64
	maxSubscribers   = 1000
	maxPerTenant     = 20
	bufferSweepEvery = 10 * time.Minute
)

// tenantBroadcast is sent through the broadcast channel to the Run goroutine.
type tenantBroadcast struct {
	tenantID string
	msg      []byte
}

// Hub manages security event subscribers and the recent-event buffer.
// All subscriber map mutations happen exclusively in the Run goroutine.
type Hub struct {
	subscribers map[*Subscriber]bool
	tenantCount map[string]int
	register    chan *Subscriber
	unregister  chan *Subscriber
	broadcast   chan tenantBroadcast
	shutdown    chan struct{}
	done        chan struct{}
	count       atomic.Int64
	log         *logrus.Logger
	seq         *sequence
	buf         *buffer
}

// NewHub creates a Hub.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		tenantCount: make(map[string]int),
		register:    make(chan *Subscriber, registerBuffer),
		unregister:  make(chan *Subscriber, registerBuffer),
		broadcast:   make(chan tenantBroadcast, broadcastBuffer),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		log:         log,
		seq:         newSequence(),
		buf:         newBuffer(),
	}
}

// drainTimeout is how long the hub waits for subscribers to flush on shutdown.
const drainTimeout = 3 * time.Second

// Run starts the hub event loop. It should be run as a goroutine and exits
// when Shutdown is called or the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	sweep := time.NewTicker(bufferSweepEvery)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			h.drainSubscribers()

			return
		case <-h.shutdown:
			h.drainSubscribers()

			return

		case <-sweep.C:
			h.buf.evictStaleTenants()

		case sub := <-h.register:
			if len(h.subscribers) >= maxSubscribers {
				h.log.Warn("subscriber limit reached, dropping security event subscriber")
				sub.closeSend()
				continue
			}
			if h.tenantCount[sub.TenantID] >= maxPerTenant {
				h.log.WithField("tenant_id", sub.TenantID).Warn("per-tenant subscriber limit reached, dropping subscriber")
				sub.closeSend()
				continue
			}
			h.subscribers[sub] = true
			h.tenantCount[sub.TenantID]++
			h.count.Store(int64(len(h.subscribers)))
			metrics.WSConnections.Set(float64(len(h.subscribers)))

		case sub := <-h.unregister:
			h.remove(sub)
			h.count.Store(int64(len(h.subscribers)))
			metrics.WSConnections.Set(float64(len(h.subscribers)))

		case b := <-h.broadcast:
			for sub := range h.subscribers {
				if sub.TenantID != b.tenantID {
					continue
				}
				select {
				case sub.send <- b.msg:
				default:
					// Slow consumer: drop it rather than block the loop.
					h.remove(sub)
				}
			}
			h.count.Store(int64(len(h.subscribers)))
		}
	}
}

// remove deletes a subscriber. Only called from the Run goroutine.
func (h *Hub) remove(sub *Subscriber) {
	if _, ok := h.subscribers[sub]; !ok {
		return
	}

	delete(h.subscribers, sub)
	sub.closeSend()
	h.tenantCount[sub.TenantID]--
	if h.tenantCount[sub.TenantID] <= 0 {
		delete(h.tenantCount, sub.TenantID)
	}
}

// Publish assigns a sequence ID, buffers the event, and broadcasts it to
// the tenant's subscribers. data is marshalled to JSON; failures are logged
// and the event dropped. Publish never blocks.
func (h *Hub) Publish(eventType, tenantID string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal security event payload")

		return
	}

	evt := Event{
		Type:     eventType,
		ID:       h.seq.next(tenantID),
		TenantID: tenantID,
		Data:     payload,
		Time:     time.Now(),
	}

	h.buf.append(&evt)

	msg, err := json.Marshal(evt)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal security event")

		return
	}

	select {
	case h.broadcast <- tenantBroadcast{tenantID: tenantID, msg: msg}:
	default:
		h.log.Warn("security event broadcast channel full, dropping message")
	}
}

// Recent returns up to n of the newest buffered events for a tenant.
func (h *Hub) Recent(tenantID string, n int) []Event {
	return h.buf.recent(tenantID, n)
}

// Register adds a subscriber to the hub.
func (h *Hub) Register(sub *Subscriber) {
	select {
	case h.register <- sub:
	default:
		h.log.Warn("register channel full, dropping subscriber")
		sub.closeSend()
	}
}

// Unregister removes a subscriber from the hub.
func (h *Hub) Unregister(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	default:
		// Run loop already exited; cleanup happened during shutdown drain.
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	return int(h.count.Load())
}

// Shutdown drains subscribers and blocks until the Run loop has exited.
func (h *Hub) Shutdown() {
	close(h.shutdown)
	<-h.done
}

// drainSubscribers waits for send buffers to flush, then closes everything.
func (h *Hub) drainSubscribers() {
	if len(h.subscribers) == 0 {
		return
	}

	h.log.WithField("subscribers", len(h.subscribers)).Info("draining security event subscribers")

	deadline := time.After(drainTimeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		allDrained := true

		for sub := range h.subscribers {
			if len(sub.send) > 0 {
				allDrained = false

				break
			}
		}

		if allDrained {
			break
		}

		select {
		case <-deadline:
			h.log.Warn("security event drain timeout, closing remaining subscribers")

			goto closeAll
		case <-ticker.C:
		}
	}

closeAll:
	for sub := range h.subscribers {
		sub.closeSend()
		delete(h.subscribers, sub)
	}

	h.tenantCount = make(map[string]int)
	h.count.Store(0)
	metrics.WSConnections.Set(0)
}
