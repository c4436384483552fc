// Package hub fans JSON status updates out to a set of WebSocket
// subscribers using the channel-based broadcast pattern. Subscribers are
// read-only; a subscriber that cannot keep up is dropped rather than
// allowed to stall the broadcast.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub tracks subscribers and broadcasts encoded payloads to all of them.
type Hub struct {
	name   string
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

// New creates a hub. Run must be started before clients attach.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run drives registration and fan-out until the channel operations stop.
// Call it in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("subscriber attached", "subscribers", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("subscriber detached", "subscribers", count)

		case payload := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// Slow subscriber: drop it rather than block the rest.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow subscriber")
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastJSON encodes v and queues it for every subscriber. If the
// broadcast queue is full the update is dropped; the next one supersedes it.
func (h *Hub) BroadcastJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast queue full, dropping update")
	}
	return nil
}

// SubscriberCount returns the number of attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
