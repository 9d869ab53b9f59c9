package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
	"github.com/yourusername/ytpipe-go/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Event types pushed to websocket clients
const (
	EventStatus   = "status"
	EventProgress = "progress"
	EventResult   = "result"
	EventLog      = "log"
)

const (
	pingInterval  = 30 * time.Second
	writeTimeout  = 10 * time.Second
	clientBacklog = 256
)

// Event is one message on the event stream
type Event struct {
	Type     string                `json:"type"`
	Time     time.Time             `json:"time"`
	Status   *StatusResponse       `json:"status,omitempty"`
	Progress *domain.ProgressEvent `json:"progress,omitempty"`
	Result   *ResultResponse       `json:"result,omitempty"`
	Line     string                `json:"line,omitempty"`
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventsHandler fans session progress, results and tool output out to
// websocket clients
type EventsHandler struct {
	session SessionController
	logger  *zap.Logger
	clients map[*eventClient]struct{}
	mu      sync.RWMutex
}

// NewEventsHandler creates a new event stream handler. session may be
// set later with SetSession.
func NewEventsHandler(session SessionController, log *zap.Logger) *EventsHandler {
	return &EventsHandler{
		session: session,
		logger:  log,
		clients: make(map[*eventClient]struct{}),
	}
}

// SetSession sets the session whose status is sent to new clients
func (h *EventsHandler) SetSession(session SessionController) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session = session
}

// ClientCount returns the number of connected clients
func (h *EventsHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishProgress broadcasts a progress event
func (h *EventsHandler) PublishProgress(ev domain.ProgressEvent) {
	h.Broadcast(Event{Type: EventProgress, Progress: &ev})
}

// PublishResult broadcasts the terminal result of a session
func (h *EventsHandler) PublishResult(result *domain.SessionResult) {
	h.Broadcast(Event{Type: EventResult, Result: NewResultResponse(result)})
}

// ForwardLogs broadcasts every line appended to ring until ctx ends
func (h *EventsHandler) ForwardLogs(ctx context.Context, ring *logger.RingBuffer) {
	lines, unsubscribe := ring.Subscribe()
	defer unsubscribe()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			h.Broadcast(Event{Type: EventLog, Line: line})
		case <-ctx.Done():
			return
		}
	}
}

// Broadcast sends ev to every client. Clients whose backlog is full miss
// the event; they can resynchronize from GET /api/v1/status.
func (h *EventsHandler) Broadcast(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Debug("Dropping event for slow client", zap.String("type", ev.Type))
		}
	}
}

// HandleWebSocket handles GET /api/v1/events
func (h *EventsHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	client := &eventClient{conn: conn, send: make(chan []byte, clientBacklog)}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	session := h.session
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
	}()

	h.logger.Info("WebSocket client connected", zap.String("remote_addr", c.Request.RemoteAddr))

	if session != nil {
		status := BuildStatus(session)
		data, _ := json.Marshal(Event{Type: EventStatus, Time: time.Now(), Status: &status})
		if err := h.write(conn, websocket.TextMessage, data); err != nil {
			return
		}
	}

	// Read messages from client (for close and pong handling)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-client.send:
			if err := h.write(conn, websocket.TextMessage, data); err != nil {
				h.logger.Debug("Failed to send event", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := h.write(conn, websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

func (h *EventsHandler) write(conn *websocket.Conn, messageType int, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(messageType, data)
}
