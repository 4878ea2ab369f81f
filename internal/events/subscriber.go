package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeTimeout    = 10 * time.Second
	readLimit       = 1024
	sendBuffer      = 64
	maxConnLifetime = 1 * time.Hour
	pingInterval    = 30 * time.Second
	pingTimeout     = 10 * time.Second
	maxMissedPongs  = int32(2)
)

// Subscriber wraps a single WebSocket connection managed by the Hub.
type Subscriber struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	log         *logrus.Logger
	TenantID    string
	closeOnce   sync.Once
	connectedAt time.Time
}

// NewSubscriber creates a Subscriber for the given WebSocket connection.
func NewSubscriber(hub *Hub, conn *websocket.Conn, tenantID string) *Subscriber {
	return &Subscriber{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		log:         hub.log,
		TenantID:    tenantID,
		connectedAt: time.Now(),
	}
}

// closeSend safely closes the send channel exactly once.
func (s *Subscriber) closeSend() {
	s.closeOnce.Do(func() { close(s.send) })
}

// ReadPump reads from the connection until it closes. The feed is
// one-directional, so inbound frames are discarded; the read loop exists
// to detect disconnects.
func (s *Subscriber) ReadPump(ctx context.Context) {
	defer func() {
		s.hub.Unregister(s)
		s.conn.CloseNow() //nolint:errcheck // best-effort close on teardown
	}()

	s.conn.SetReadLimit(readLimit)

	for {
		if _, _, err := s.conn.Read(ctx); err != nil {
			if websocket.CloseStatus(err) != -1 {
				s.log.WithField("status", websocket.CloseStatus(err)).Debug("subscriber disconnected")
			}

			return
		}
	}
}

// sendPing sends a WebSocket ping and tracks missed pongs.
// Returns true if the connection should be closed.
func (s *Subscriber) sendPing(ctx context.Context, missedPongs *atomic.Int32) bool {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := s.conn.Ping(pingCtx)
	cancel()

	if err != nil {
		if missedPongs.Add(1) >= maxMissedPongs {
			s.log.Debug("closing subscriber: consecutive missed pongs")

			return true
		}

		return false
	}

	missedPongs.Store(0)

	return false
}

// WritePump writes events from the send channel to the connection. It
// enforces a maximum connection lifetime so revoked admins do not keep a
// feed open indefinitely.
func (s *Subscriber) WritePump(ctx context.Context) {
	defer s.conn.CloseNow() //nolint:errcheck // best-effort close on teardown

	lifetimeTimer := time.NewTimer(time.Until(s.connectedAt.Add(maxConnLifetime)))
	defer lifetimeTimer.Stop()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	var missedPongs atomic.Int32

	for {
		select {
		case <-pingTicker.C:
			if s.sendPing(ctx, &missedPongs) {
				return
			}
		case msg, ok := <-s.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)

			err := s.conn.Write(writeCtx, websocket.MessageText, msg)

			cancel()

			if err != nil {
				s.log.WithError(err).Debug("subscriber write failed")

				return
			}
		case <-lifetimeTimer.C:
			s.conn.Close(websocket.StatusNormalClosure, "max connection lifetime exceeded") //nolint:errcheck // best-effort

			return
		}
	}
}
