package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fasticket/backend/internal/metrics"
	"github.com/fasticket/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// EventAvailability carries an event's remaining capacity.
	EventAvailability = "availability"
)

// Availability is the payload of an availability message.
type Availability struct {
	EventID           uuid.UUID `json:"event_id"`
	AvailableCapacity int       `json:"available_capacity"`
	TotalCapacity     int       `json:"total_capacity"`
	Status            string    `json:"status"`
}

// AvailabilityOf builds the availability payload for e.
func AvailabilityOf(e *models.Event) Availability {
	return Availability{
		EventID:           e.ID,
		AvailableCapacity: e.AvailableCapacity,
		TotalCapacity:     e.TotalCapacity,
		Status:            string(e.Status),
	}
}

// Hub maintains event_id -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: every instance with local clients subscribes to the event's channel.
type Hub struct {
	// eventID -> map[clientID]*Client
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per event
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishEvent(ctx context.Context, eventID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to event channels and invokes handler for incoming messages.
type RedisSubscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Without Redis, broadcasts stay local to this instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to an event room. Starts the Redis subscription for this event if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.EventID] == nil {
		h.rooms[c.EventID] = make(map[string]*Client)
		h.subscribeLocked(c.EventID)
	}
	h.rooms[c.EventID][c.ID] = c
	h.mu.Unlock()
	metrics.WebsocketConnected(1)
	h.logger.Debug("client joined event feed", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// subscribeLocked starts the Redis subscription for eventID. A failure leaves the room without one;
// Publish then delivers locally and retries. h.mu must be held.
func (h *Hub) subscribeLocked(eventID uuid.UUID) bool {
	if h.redisSub == nil {
		return false
	}
	cancel, err := h.redisSub.SubscribeEvent(eventID, func(event string, payload []byte) {
		h.Broadcast(eventID, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("redis subscribe failed", zap.String("event_id", eventID.String()), zap.Error(err))
		return false
	}
	h.subs[eventID] = cancel
	return true
}

// subscribed reports whether local clients of eventID receive Redis messages. True when there are none.
func (h *Hub) subscribed(eventID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, hasRoom := h.rooms[eventID]
	_, hasSub := h.subs[eventID]
	return !hasRoom || hasSub
}

func (h *Hub) resubscribe(eventID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[eventID]; !ok {
		return
	}
	if _, ok := h.subs[eventID]; ok {
		return
	}
	h.subscribeLocked(eventID)
}

// Unregister removes a client from an event room and closes its send channel.
// Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m, ok := h.rooms[c.EventID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, present := m[c.ID]; !present {
		h.mu.Unlock()
		return
	}
	delete(m, c.ID)
	close(c.send)
	if len(m) == 0 {
		delete(h.rooms, c.EventID)
		if cancel, ok := h.subs[c.EventID]; ok {
			cancel()
			delete(h.subs, c.EventID)
		}
	}
	h.mu.Unlock()
	metrics.WebsocketConnected(-1)
	h.logger.Debug("client left event feed", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

func encode(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}

// Broadcast sends a message to all clients of an event on this instance.
func (h *Hub) Broadcast(eventID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers a message to the event's clients on every instance. With Redis the subscriber callback
// performs the broadcast once for all instances (including this one), so local clients are not sent
// duplicates; if publishing fails or the room has no subscription, local clients still get the message.
func (h *Hub) Publish(ctx context.Context, eventID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		err := h.redis.PublishEvent(ctx, eventID, event, data)
		if err == nil && h.subscribed(eventID) {
			return
		}
		if err == nil {
			// Local room has no subscription: deliver here and retry for later messages.
			h.Broadcast(eventID, event, json.RawMessage(data))
			h.resubscribe(eventID)
			return
		}
		h.logger.Warn("redis publish failed", zap.String("event_id", eventID.String()), zap.Error(err))
	}
	h.Broadcast(eventID, event, json.RawMessage(data))
}

// PublishAvailability announces e's current capacity to its live clients.
func (h *Hub) PublishAvailability(ctx context.Context, e *models.Event) {
	h.Publish(ctx, e.ID, EventAvailability, AvailabilityOf(e))
}

// ClientCount returns the number of connected clients of an event on this instance.
func (h *Hub) ClientCount(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

// SendToClient sends a message to a single client.
func (h *Hub) SendToClient(c *Client, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.rooms[c.EventID][c.ID]; !ok {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}
