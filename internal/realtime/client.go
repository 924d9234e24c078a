package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/studymate/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for WebSocket heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// FragmentSink receives transcript fragments pushed over a transport.
type FragmentSink interface {
	OnFragment(ctx context.Context, lectureID uuid.UUID, text string, startMs, endMs int64) (models.FragmentResult, error)
}

// Client is a single WebSocket connection feeding one lecture. The socket is
// duplex: the client pushes transcript fragments up and receives the
// lecture's events down.
type Client struct {
	ID        string
	LectureID uuid.UUID
	hub       *Hub
	sink      FragmentSink
	conn      *websocket.Conn
	send      chan WSMessage
	logger    *zap.Logger
}

// ServeWS handles the WebSocket upgrade and runs the client loop. A token
// validator may be nil when auth is disabled.
func ServeWS(hub *Hub, gate SessionGate, sink FragmentSink, logger *zap.Logger, validateToken func(token string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		lectureIDStr := c.Query("lecture_id")
		if lectureIDStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lecture_id required"})
			return
		}
		lectureID, err := uuid.Parse(lectureIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lecture_id"})
			return
		}
		if validateToken != nil {
			if err := validateToken(c.Query("token")); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
		}
		exists, active := gate.SessionState(lectureID)
		if !exists || !active {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active lecture"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:        uuid.New().String(),
			LectureID: lectureID,
			hub:       hub,
			sink:      sink,
			conn:      conn,
			send:      make(chan WSMessage, 256),
			logger:    logger,
		}
		subID, events := hub.Subscribe(lectureID)
		go client.writePump(events)
		client.readPump()
		hub.Unsubscribe(lectureID, subID)
	}
}

// fragmentPayload is the client's transcript_fragment message body.
type fragmentPayload struct {
	Text  string `json:"text"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

func (c *Client) readPump() {
	defer func() {
		_ = c.conn.Close()
		close(c.send)
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "transcript_fragment":
			var frag fragmentPayload
			if err := json.Unmarshal(msg.Data, &frag); err != nil || frag.Text == "" {
				continue
			}
			result, err := c.sink.OnFragment(context.Background(), c.LectureID, frag.Text, frag.Start, frag.End)
			if err != nil {
				c.reply("error", map[string]string{"error": err.Error()})
				continue
			}
			c.reply(EventStatus, result)
		default:
			// ignore
		}
	}
}

// reply queues a message for this client only; full buffer drops it.
func (c *Client) reply(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

func (c *Client) writePump(events <-chan Event) {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(WSMessage{Event: ev.Type, Data: ev.Data}); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
