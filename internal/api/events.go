package api

import (
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/scoutlane/scoutlane/internal/events"
	"github.com/scoutlane/scoutlane/internal/models"
)

// SecurityEvents upgrades the connection to a WebSocket and streams the
// tenant's security events until the client disconnects or the hub drops
// the subscriber.
func (h *Handlers) SecurityEvents(c *gin.Context) {
	access, ok := h.authorize(c, models.RoleAdmin, models.RoleOwner)
	if !ok {
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.wsOrigins,
	})
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")

		return
	}

	sub := events.NewSubscriber(h.hub, conn, access.TenantSlug)
	h.hub.Register(sub)

	go sub.WritePump(c.Request.Context())
	sub.ReadPump(c.Request.Context())
}
