package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultHeartbeatInterval = 25 * time.Second

	streamEventNotification = "notification"
	streamEventHeartbeat    = "heartbeat"
)

type heartbeatPayload struct {
	Timestamp int64 `json:"timestamp_s"`
}

// handleNotificationStream relays hub events as server-sent events until the
// client disconnects.
func (h *httpHandler) handleNotificationStream(c *gin.Context) {
	ctx := c.Request.Context()
	events, cancel := h.hub.Subscribe(ctx, callerID(c))
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent(streamEventHeartbeat, heartbeatPayload{Timestamp: time.Now().UTC().Unix()})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			c.SSEvent(streamEventNotification, event.Record)
			c.Writer.Flush()
		case tick := <-ticker.C:
			c.SSEvent(streamEventHeartbeat, heartbeatPayload{Timestamp: tick.UTC().Unix()})
			c.Writer.Flush()
		}
	}
}
