// Package notify maintains the registry of live client connections and
// pushes real-time events to them: per-user connection lists plus optional
// room subscriptions for form-specific updates.
//
// The Conn abstraction keeps the registry transport-agnostic; the HTTP
// layer adapts whatever wire protocol it serves. Send failures are logged
// and the connection dropped - notification delivery is best-effort and
// never fails the operation that triggered it.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"autoforms/pkg/requestclock"
)

// EventType classifies a notification.
type EventType string

const (
	EventFormGenerated EventType = "form_generated"
	EventFormUpdated   EventType = "form_updated"
	EventFormSubmitted EventType = "form_submitted"
	EventFormDeleted   EventType = "form_deleted"
	EventSystemMessage EventType = "system_message"
	EventError         EventType = "error"
)

// Event is one notification payload.
type Event struct {
	Type      EventType      `json:"type"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// Conn is one live client connection.
type Conn interface {
	Send(ctx context.Context, event Event) error
	Close() error
}

type connMeta struct {
	userID string
	roomID string
}

// Hub is the connection registry. Safe for concurrent use.
type Hub struct {
	mu     sync.Mutex
	byUser map[string][]Conn
	byRoom map[string][]Conn
	meta   map[Conn]connMeta
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		byUser: make(map[string][]Conn),
		byRoom: make(map[string][]Conn),
		meta:   make(map[Conn]connMeta),
		logger: logger,
	}
}

// Connect registers a connection for a user, optionally joining a room,
// and sends the welcome message.
func (h *Hub) Connect(ctx context.Context, conn Conn, userID, roomID string) {
	h.mu.Lock()
	h.byUser[userID] = append(h.byUser[userID], conn)
	if roomID != "" {
		h.byRoom[roomID] = append(h.byRoom[roomID], conn)
	}
	h.meta[conn] = connMeta{userID: userID, roomID: roomID}
	h.mu.Unlock()

	h.send(ctx, conn, Event{
		Type:      EventSystemMessage,
		Message:   "connected to autoforms real-time updates",
		Timestamp: requestclock.Now(ctx).UTC().Format(time.RFC3339),
	})
	h.logger.Debug("connection registered", "user_id", userID, "room_id", roomID)
}

// Disconnect removes a connection from the registry and closes it.
// Unknown connections are a no-op.
func (h *Hub) Disconnect(conn Conn) {
	h.mu.Lock()
	m, ok := h.meta[conn]
	if ok {
		delete(h.meta, conn)
		h.byUser[m.userID] = remove(h.byUser[m.userID], conn)
		if len(h.byUser[m.userID]) == 0 {
			delete(h.byUser, m.userID)
		}
		if m.roomID != "" {
			h.byRoom[m.roomID] = remove(h.byRoom[m.roomID], conn)
			if len(h.byRoom[m.roomID]) == 0 {
				delete(h.byRoom, m.roomID)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		_ = conn.Close()
	}
}

// SendToUser delivers an event to every connection of one user.
func (h *Hub) SendToUser(ctx context.Context, userID string, event Event) {
	h.stampAndFanOut(ctx, h.snapshot(h.byUser, userID), event)
}

// BroadcastToRoom delivers an event to every connection in a room.
func (h *Hub) BroadcastToRoom(ctx context.Context, roomID string, event Event) {
	h.stampAndFanOut(ctx, h.snapshot(h.byRoom, roomID), event)
}

// Broadcast delivers an event to every registered connection.
func (h *Hub) Broadcast(ctx context.Context, event Event) {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.meta))
	for conn := range h.meta {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	h.stampAndFanOut(ctx, conns, event)
}

// ConnectionCount returns the number of live connections for a user.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byUser[userID])
}

// TotalConnections returns the number of live connections across all users.
func (h *Hub) TotalConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.meta)
}

func (h *Hub) snapshot(index map[string][]Conn, key string) []Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := make([]Conn, len(index[key]))
	copy(conns, index[key])
	return conns
}

func (h *Hub) stampAndFanOut(ctx context.Context, conns []Conn, event Event) {
	if event.Timestamp == "" {
		event.Timestamp = requestclock.Now(ctx).UTC().Format(time.RFC3339)
	}
	for _, conn := range conns {
		h.send(ctx, conn, event)
	}
}

func remove(conns []Conn, target Conn) []Conn {
	for i, c := range conns {
		if c == target {
			return append(conns[:i:i], conns[i+1:]...)
		}
	}
	return conns
}

// send delivers one event, dropping the connection on failure.
func (h *Hub) send(ctx context.Context, conn Conn, event Event) {
	if err := conn.Send(ctx, event); err != nil {
		h.logger.Warn("notification send failed, dropping connection", "error", err, "type", event.Type)
		h.Disconnect(conn)
	}
}
