package realtime

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymate/backend/pkg/response"
)

// DefaultPingInterval keeps long-lived streams open through proxies.
const DefaultPingInterval = 15 * time.Second

// SessionGate reports lecture session state so a stream is never opened for a
// lecture that cannot produce events.
type SessionGate interface {
	SessionState(lectureID uuid.UUID) (exists, active bool)
}

// StreamHandler serves GET /lectures/:id/stream as a server-sent-event
// stream: highlight, status and debug frames as they happen, plus a ping
// frame on every interval. Subscribing to an unknown or ended lecture fails
// immediately instead of opening a dead stream.
func StreamHandler(hub *Hub, gate SessionGate, pingInterval time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return func(c *gin.Context) {
		lectureID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid lecture id")
			return
		}
		exists, active := gate.SessionState(lectureID)
		if !exists {
			response.NotFound(c, "lecture not found")
			return
		}
		if !active {
			response.Conflict(c, "lecture has ended")
			return
		}

		id, events := hub.Subscribe(lectureID)
		defer hub.Unsubscribe(lectureID, id)

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeFrame(c.Writer, EventConnected, []byte("{}"))
		c.Writer.Flush()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.Request.Context().Done():
				logger.Debug("stream client disconnected", zap.String("lecture_id", lectureID.String()))
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				writeFrame(c.Writer, ev.Type, ev.Data)
				c.Writer.Flush()
			case <-ticker.C:
				writeFrame(c.Writer, EventPing, []byte("{}"))
				c.Writer.Flush()
			}
		}
	}
}

// writeFrame emits one SSE frame: event line, data line, blank line.
func writeFrame(w io.Writer, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
