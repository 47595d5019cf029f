package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"interviewroom-backend/internal/middleware"
	"interviewroom-backend/internal/service/navigator"
	"interviewroom-backend/internal/service/session"
	"interviewroom-backend/pkg/constants"
	"interviewroom-backend/pkg/logger"
	"interviewroom-backend/pkg/metrics"
)

const sessionStateMessage = "session_state"

// HealthReporter exposes the latest conversation service probe
type HealthReporter interface {
	Healthy() bool
}

// SessionStream pushes the navigator view of a session to websocket clients
// every time the session state changes
type SessionStream struct {
	sessions *session.Manager
	health   HealthReporter
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	// Concurrency limit: maxConnections is the maximum number of concurrent WebSocket connections
	maxConnections int
	semaphore      chan struct{}
}

// streamClient is one subscribed websocket connection
type streamClient struct {
	stream      *SessionStream
	conn        *websocket.Conn
	sessionID   uuid.UUID
	states      <-chan session.State
	unsubscribe func()
	releaseOnce sync.Once
}

// NewSessionStream creates a session state stream. maxConns <= 0 uses the default limit.
func NewSessionStream(sessions *session.Manager, health HealthReporter, allowedOrigins []string,
	maxConns int, m *metrics.Metrics) *SessionStream {
	if maxConns <= 0 {
		maxConns = constants.MaxStreamConnections
	}

	return &SessionStream{
		sessions: sessions,
		health:   health,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     middleware.OriginAllowed(allowedOrigins),
		},
		maxConnections: maxConns,
		semaphore:      make(chan struct{}, maxConns),
	}
}

// ServeWS handles WebSocket requests for session state updates
// GET /v1/ws/interviews/:id
func (s *SessionStream) ServeWS(c *gin.Context) {
	// Acquire semaphore to limit concurrent connections
	select {
	case s.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", s.maxConnections))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server at capacity, please try again later"})
		return
	}
	upgraded := false
	defer func() {
		if !upgraded {
			<-s.semaphore
		}
	}()

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	ctrl, err := s.sessions.Lookup(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		return
	}
	upgraded = true

	states, unsubscribe := ctrl.Subscribe()
	client := &streamClient{
		stream:      s,
		conn:        conn,
		sessionID:   sessionID,
		states:      states,
		unsubscribe: unsubscribe,
	}

	s.metrics.IncWebSocketConnections()
	logger.Debug("Session stream opened", zap.String("session_id", sessionID.String()))

	go client.writePump()
	go client.readPump()
}

// release frees the connection slot exactly once
func (c *streamClient) release() {
	c.releaseOnce.Do(func() {
		c.unsubscribe()
		c.stream.metrics.DecWebSocketConnections()
		<-c.stream.semaphore
	})
}

// readPump only watches for the client going away; inbound frames are ignored
func (c *streamClient) readPump() {
	defer func() {
		c.release()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(2 * constants.WebSocketPingInterval))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * constants.WebSocketPingInterval))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket connection closed",
					zap.String("session_id", c.sessionID.String()),
					zap.Error(err))
			}
			return
		}
		c.stream.metrics.RecordWebSocketMessage("ignored", "inbound")
	}
}

// writePump writes session views to the websocket until the subscription ends
func (c *streamClient) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.release()
		c.conn.Close()
	}()

	for {
		select {
		case state, ok := <-c.states:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}

			payload, err := json.Marshal(navigator.Resolve(state, c.stream.health.Healthy()))
			if err != nil {
				logger.Error("Failed to encode session view",
					zap.String("session_id", c.sessionID.String()),
					zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			c.stream.metrics.RecordWebSocketMessage(sessionStateMessage, "outbound")

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
