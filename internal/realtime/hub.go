package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types delivered on lecture streams.
const (
	EventConnected      = "connected"
	EventHighlight      = "highlight"
	EventStatus         = "status"
	EventDebug          = "debug"
	EventPing           = "ping"
	EventLectureStarted = "lecture_started"
	EventLectureStopped = "lecture_stopped"
)

// subscriberBuffer is the per-subscriber channel depth; a slow consumer drops
// frames rather than blocking publishers (at-most-once delivery).
const subscriberBuffer = 64

// Event is one frame on a lecture stream.
type Event struct {
	Type string
	Data json.RawMessage
}

// Hub maintains lecture_id -> set of subscribers and fans events out.
// Delivery is best-effort and scoped to one lecture: a subscriber never sees
// another lecture's events. An optional Redis bridge carries events across
// instances.
type Hub struct {
	lectures map[uuid.UUID]map[string]chan Event
	bridges  map[uuid.UUID]func() // cancel Redis subscription per lecture
	mu       sync.RWMutex
	logger   *zap.Logger
	redisPub RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes lecture events for cross-instance fan-out.
type RedisPublisher interface {
	PublishLectureEvent(lectureID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to a lecture's channel and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeLecture(lectureID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates an event hub. Both Redis sides may be nil for single-process
// operation.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		lectures: make(map[uuid.UUID]map[string]chan Event),
		bridges:  make(map[uuid.UUID]func()),
		logger:   logger,
		redisPub: redisPub,
		redisSub: redisSub,
	}
}

// Subscribe attaches a new stream to a lecture and returns its id and event
// channel. The first subscriber of a lecture opens the Redis bridge.
func (h *Hub) Subscribe(lectureID uuid.UUID) (string, <-chan Event) {
	id := uuid.New().String()
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.lectures[lectureID] == nil {
		h.lectures[lectureID] = make(map[string]chan Event)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeLecture(lectureID, func(event string, payload []byte) {
				h.broadcast(lectureID, event, payload)
			})
			if err == nil {
				h.bridges[lectureID] = cancel
			} else {
				h.logger.Warn("redis lecture subscription failed", zap.Error(err), zap.String("lecture_id", lectureID.String()))
			}
		}
	}
	h.lectures[lectureID][id] = ch
	h.mu.Unlock()

	h.logger.Debug("stream subscribed", zap.String("subscriber_id", id), zap.String("lecture_id", lectureID.String()))
	return id, ch
}

// Unsubscribe detaches a stream. The last subscriber of a lecture closes the
// Redis bridge.
func (h *Hub) Unsubscribe(lectureID uuid.UUID, id string) {
	h.mu.Lock()
	if m, ok := h.lectures[lectureID]; ok {
		if ch, ok := m[id]; ok {
			delete(m, id)
			close(ch)
		}
		if len(m) == 0 {
			delete(h.lectures, lectureID)
			if cancel, ok := h.bridges[lectureID]; ok {
				cancel()
				delete(h.bridges, lectureID)
			}
		}
	}
	h.mu.Unlock()

	h.logger.Debug("stream unsubscribed", zap.String("subscriber_id", id), zap.String("lecture_id", lectureID.String()))
}

// Publish fans an event out to the lecture's subscribers. With a Redis bridge
// configured the event goes through Redis only, so every instance (including
// this one) delivers it exactly once to its local subscribers.
func (h *Hub) Publish(lectureID uuid.UUID, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("drop unmarshalable event", zap.String("event", eventType), zap.Error(err))
		return
	}
	if h.redisPub != nil {
		if err := h.redisPub.PublishLectureEvent(lectureID, eventType, data); err == nil {
			return
		}
		// Bridge down: degrade to local-only delivery.
	}
	h.broadcast(lectureID, eventType, data)
}

// broadcast delivers to local subscribers only. Full buffers drop the frame.
func (h *Hub) broadcast(lectureID uuid.UUID, eventType string, data []byte) {
	ev := Event{Type: eventType, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.lectures[lectureID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount returns the number of attached streams for a lecture.
func (h *Hub) SubscriberCount(lectureID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lectures[lectureID])
}
