package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs runs one browser subscription until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, topic string) {
	client := &Client{
		ID:    uuid.NewString(),
		Hub:   hub,
		Conn:  c,
		Topic: topic,
		Send:  make(chan []byte, 256),
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // Run readPump in the handler goroutine
}
