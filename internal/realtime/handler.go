package realtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TokenVerifier validates a bearer credential against the external auth
// service and returns the agent it was issued to. Refresh-class tokens must
// be rejected.
type TokenVerifier interface {
	VerifyAccessToken(token string) (agentID string, err error)
}

// Handler upgrades authenticated requests into hub connections
type Handler struct {
	hub      *Hub
	verifier TokenVerifier
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates the realtime endpoint handler
func NewHandler(hub *Hub, verifier TokenVerifier, logger *zap.Logger) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement belongs to the fronting proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// RegisterRealtimeRoutes registers the realtime endpoint
func (h *Handler) RegisterRealtimeRoutes(e *echo.Echo) {
	e.GET("/ws/notifications", h.Handshake)
}

// credentialFromRequest extracts the bearer credential from the Authorization
// header, falling back to the token query parameter (browsers cannot set
// headers on websocket requests).
func credentialFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Handshake authenticates the connection, upgrades it, and joins it to the
// agent's channel. Authentication failures reject the handshake before any
// registry mutation.
func (h *Handler) Handshake(c echo.Context) error {
	token := credentialFromRequest(c.Request())
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
	}

	agentID, err := h.verifier.VerifyAccessToken(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired access token")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return nil
	}

	client := newClient(agentID, conn)
	if !h.hub.register(client) {
		conn.Close()
		return nil
	}

	go h.writePump(client)
	go h.readPump(client)
	return nil
}

// writePump drains the client's send channel onto the wire and keeps the
// connection alive with pings. Exits when the channel is closed (unregister
// or hub shutdown).
func (h *Handler) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames (clients only send pongs and close
// frames) and unregisters the connection when it drops.
func (h *Handler) readPump(c *client) {
	defer func() {
		h.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("realtime connection closed unexpectedly",
					zap.String("agent_id", c.agentID), zap.Error(err))
			}
			return
		}
	}
}
