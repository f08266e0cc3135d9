package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Admin feed message types, mirroring the service event names
const (
	MsgSessionStarted   MessageType = "session_started"
	MsgAnswerRecorded   MessageType = "answer_recorded"
	MsgSessionCompleted MessageType = "session_completed"
	MsgResponsesCleared MessageType = "responses_cleared"
	MsgConnected        MessageType = "connected"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans admin feed events out to connected dashboards
type Hub struct {
	adminConns map[*Connection]bool
	logger     *slog.Logger

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *Message
	done       chan struct{}
}

// Connection represents a WebSocket connection
type Connection struct {
	AdminID string
	Send    chan []byte
	Hub     *Hub
}

// NewHub creates a new WebSocket hub and starts its loop
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		adminConns: make(map[*Connection]bool),
		logger:     logger,
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.adminConns[conn] = true
			h.mu.Unlock()
			h.logger.Info("admin feed connected", "admin_id", conn.AdminID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.adminConns[conn]; ok {
				delete(h.adminConns, conn)
				close(conn.Send)
				h.logger.Info("admin feed disconnected", "admin_id", conn.AdminID)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Warn("admin feed encode failed", "type", msg.Type, "error", err)
				continue
			}
			h.mu.RLock()
			for conn := range h.adminConns {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for conn := range h.adminConns {
				delete(h.adminConns, conn)
				close(conn.Send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Close stops the hub and closes every connection's send channel
func (h *Hub) Close() {
	close(h.done)
}

// Count returns the number of connected dashboards
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.adminConns)
}

// BroadcastToAdmins queues an event for every dashboard (implements service.Broadcaster).
// Events are dropped when the queue is full so callers never block.
func (h *Hub) BroadcastToAdmins(msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("admin feed encode failed", "type", msgType, "error", err)
		return
	}
	select {
	case h.broadcast <- &Message{Type: MessageType(msgType), Payload: data}:
	default:
		h.logger.Warn("admin feed queue full, dropping event", "type", msgType)
	}
}
