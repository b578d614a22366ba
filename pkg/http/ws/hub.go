package ws

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendQueueFull    = errors.New("send queue full")
)

// Topic names the feed of one board, e.g. "daily:60".
func Topic(period string, durationSec int) string {
	return fmt.Sprintf("%s:%d", period, durationSec)
}

// Hub tracks live leaderboard sockets, one per user, and fans board
// updates out to the sockets that follow that board.
type Hub struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]*Connection
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		conns:  make(map[uuid.UUID]*Connection),
		logger: logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Register makes conn the user's live socket. An older socket of the same
// user is closed.
func (h *Hub) Register(userID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	old := h.conns[userID]
	h.conns[userID] = conn
	h.mu.Unlock()

	if old != nil && old != conn {
		old.Close()
	}
	h.logger.Debug().Str("user_id", userID.String()).Msg("socket registered")
}

// Unregister drops conn unless it was already replaced.
func (h *Hub) Unregister(userID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	if h.conns[userID] == conn {
		delete(h.conns, userID)
	}
	h.mu.Unlock()
	conn.Close()
}

// Count returns the number of live sockets.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Publish queues msg on every socket following topic and returns how many
// accepted it. Sockets that cannot keep up are disconnected.
func (h *Hub) Publish(topic string, msg Message) int {
	h.mu.RLock()
	targets := make(map[uuid.UUID]*Connection, len(h.conns))
	for id, c := range h.conns {
		if c.Follows(topic) {
			targets[id] = c
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for id, c := range targets {
		switch err := c.Send(msg); {
		case err == nil:
			delivered++
		case errors.Is(err, ErrSendQueueFull):
			h.logger.Warn().Str("user_id", id.String()).Str("topic", topic).Msg("slow socket dropped")
			h.Unregister(id, c)
		}
	}
	return delivered
}
