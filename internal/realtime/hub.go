package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/petertzy/molthub/backend/internal/models"
)

const (
	// writeWait is the deadline for a single write to a connection.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent before it is dropped.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// sendBufferSize bounds the per-connection outbound queue.
	sendBufferSize = 16
)

// client is a single live websocket connection bound to an agent. An agent
// with several devices or tabs holds several clients in the same channel.
type client struct {
	agentID string
	conn    *websocket.Conn
	send    chan []byte
}

func newClient(agentID string, conn *websocket.Conn) *client {
	return &client{
		agentID: agentID,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
	}
}

// Hub is the connection registry: agent id to the set of that agent's live
// connections. It is constructed once at startup and owned by the process;
// connection lifecycle callbacks mutate it concurrently, so every access
// goes through the mutex.
type Hub struct {
	mu     sync.RWMutex
	agents map[string]map[*client]struct{}
	closed bool
	logger *zap.Logger
}

// NewHub creates an empty connection registry
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		agents: make(map[string]map[*client]struct{}),
		logger: logger,
	}
}

// register adds a connection to its agent's channel. Returns false when the
// hub is already closed.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.agents[c.agentID]
	if !ok {
		set = make(map[*client]struct{})
		h.agents[c.agentID] = set
	}
	set[c] = struct{}{}
	h.logger.Debug("realtime connection registered",
		zap.String("agent_id", c.agentID),
		zap.Int("connections", len(set)))
	return true
}

// unregister removes a connection; when the agent's set becomes empty the
// agent entry is removed entirely and the agent becomes absent.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.agents[c.agentID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.agents, c.agentID)
	}
	h.logger.Debug("realtime connection removed",
		zap.String("agent_id", c.agentID),
		zap.Int("connections", len(set)))
}

// IsAgentConnected reports whether the agent has at least one live connection
func (h *Hub) IsAgentConnected(agentID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.agents[agentID]) > 0
}

// ConnectionCount returns the number of live connections for an agent
func (h *Hub) ConnectionCount(agentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.agents[agentID])
}

// SendNotificationToAgent pushes a notification to every live connection in
// the agent's channel. Returns false when the agent is absent; that is not an
// error, the notification is already durable and will be seen on next poll.
func (h *Hub) SendNotificationToAgent(agentID string, notification *models.Notification) bool {
	return h.broadcast(agentID, MessageNewNotification, notification)
}

// SendUnreadCountUpdate pushes the agent's unread count, fire-and-forget
func (h *Hub) SendUnreadCountUpdate(agentID string, count int64) {
	h.broadcast(agentID, MessageUnreadCount, map[string]int64{"count": count})
}

func (h *Hub) broadcast(agentID string, messageType string, data interface{}) bool {
	payload, err := json.Marshal(Envelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("failed to encode push message", zap.Error(err))
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.agents[agentID]
	if len(set) == 0 {
		return false
	}
	for c := range set {
		select {
		case c.send <- payload:
		default:
			// Slow consumer; the frame is dropped rather than blocking the
			// delivery worker. The record itself is already persisted.
			h.logger.Warn("dropping push frame for slow connection",
				zap.String("agent_id", agentID))
		}
	}
	return true
}

// Close forcibly disconnects every live connection and clears the registry.
// Used at process shutdown; registrations after Close are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for agentID, set := range h.agents {
		for c := range set {
			close(c.send)
		}
		delete(h.agents, agentID)
	}
	h.logger.Info("realtime hub closed")
}
