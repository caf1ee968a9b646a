package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event is a real-time notification broadcast to connected dashboards:
// a completion landing in the verification queue, points changing hands,
// a payout closing a period.
type Event struct {
	Type   string         `json:"type"`
	UserID int64          `json:"user_id,omitempty"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// Event types pushed to clients.
const (
	EventTaskCompleted     = "task_completed"
	EventTaskVerified      = "task_verified"
	EventTaskRejected      = "task_rejected"
	EventPointsChanged     = "points_changed"
	EventPayoutExecuted    = "payout_executed"
	EventSettingsChanged   = "settings_changed"
	EventRewardRedeemed    = "reward_redeemed"
	EventAssignmentChanged = "assignment_changed"
)

// Hub maintains the set of active WebSocket clients and broadcasts events.
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
			// Client buffer full, drop rather than block the hub
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
