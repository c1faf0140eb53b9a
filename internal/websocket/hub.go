package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"reqgather-bff/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Hub relays channel-layer pushes to browser clients. Clients subscribe to a
// topic ("session:<id>" or "interview:<id>") and receive every snapshot or
// event published for it. Redis pub/sub carries the same payloads across
// instances so a browser can land on any replica.
type Hub struct {
	// Subscribed clients per topic (one user may hold several tabs).
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out; nil disables it.
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.Topic] = append(h.clients[client.Topic], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client subscribed", map[string]interface{}{
				"topic": client.Topic, "client_id": client.ID,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.Topic]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.Topic] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.Topic]) == 0 {
					delete(h.clients, client.Topic)
					h.logger.Info("Hub", "Topic drained", map[string]interface{}{"topic": client.Topic})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish sends a payload to every local subscriber of the topic and mirrors
// it to Redis for other instances.
func (h *Hub) Publish(topic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal payload", map[string]interface{}{
			"topic": topic, "error": err.Error(),
		})
		return
	}

	h.deliverLocal(topic, data)

	if h.rdb != nil {
		envelope, _ := json.Marshal(map[string]interface{}{
			"topic":   topic,
			"message": json.RawMessage(data),
		})
		h.rdb.Publish(context.Background(), "reqgather_channel_events", envelope)
	}
}

// HasSubscribers reports whether any local client watches the topic.
// Controllers use this to drop upstream channels nobody is looking at.
func (h *Hub) HasSubscribers(topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic]) > 0
}

func (h *Hub) deliverLocal(topic string, data []byte) {
	h.mu.RLock()
	clients := h.clients[topic]
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			// Slow consumer: drop it. The unregister path closes Send.
			h.logger.Warn("Hub", "Client send buffer full, dropping client", map[string]interface{}{
				"topic": topic, "client_id": client.ID,
			})
			h.unregister <- client
		}
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "reqgather_channel_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var envelope struct {
			Topic   string          `json:"topic"`
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}
		h.deliverLocal(envelope.Topic, envelope.Message)
	}
}
