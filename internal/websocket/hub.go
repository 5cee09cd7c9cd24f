package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event is a data-change notification broadcast to all clients. The
// presentation layer re-fetches whatever views the event invalidates.
type Event struct {
	Type  string         `json:"type"`
	Extra map[string]any `json:"extra,omitempty"`
}

// Hydrated is the event fired whenever reconciliation or a manual pull
// overwrites the in-memory snapshot wholesale. Consumers must discard every
// derived view they hold.
func Hydrated() Event {
	return Event{Type: "snapshot_hydrated"}
}

// LedgerChanged reports a single ledger mutation, e.g. "friend_added" or
// "expense_settled".
func LedgerChanged(kind, id string) Event {
	return Event{Type: kind, Extra: map[string]any{"id": id}}
}

// SyncStatus reports a change in the cloud sync diagnostics.
func SyncStatus(enabled bool, lastError string) Event {
	return Event{Type: "sync_status", Extra: map[string]any{
		"enabled": enabled,
		"error":   lastError,
	}}
}

// Hub maintains the set of connected clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to all connected clients.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop the event to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
