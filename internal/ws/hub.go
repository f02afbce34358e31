// Package ws is the server side of the session transport: one websocket per
// authenticated player, a hub that routes engine events to it and a router
// that turns inbound commands into coordinator and engine calls.
package ws

import (
	"sync"

	"rps_arena/internal/logger"
	"rps_arena/internal/metrics"
	"rps_arena/internal/protocol"
)

type Hub struct {
	mu      sync.RWMutex
	clients map[int64]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]*Client)}
}

// register makes c the player's live connection. An older connection of the
// same player is closed without triggering its disconnect handling.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	old := h.clients[c.PlayerID]
	h.clients[c.PlayerID] = c
	h.mu.Unlock()

	if old != nil {
		logger.Info("replacing connection", "player_id", c.PlayerID)
		old.Close()
	} else {
		metrics.WSConnections.Inc()
	}
}

// unregister removes c if it is still the player's live connection and
// reports whether it was.
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.PlayerID] != c {
		return false
	}
	delete(h.clients, c.PlayerID)
	metrics.WSConnections.Dec()
	return true
}

// Notify implements game.Notifier. Frames are queued in call order and never block.
func (h *Hub) Notify(playerID int64, ev protocol.Event) {
	h.mu.RLock()
	c := h.clients[playerID]
	h.mu.RUnlock()
	if c == nil {
		return
	}

	frame, err := protocol.Encode(ev)
	if err != nil {
		logger.Error("encode event", "type", ev.Type, "error", err)
		return
	}
	c.enqueue(frame)
}

// Connected reports whether playerID has a live connection.
func (h *Hub) Connected(playerID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[playerID]
	return ok
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
