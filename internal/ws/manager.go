// Package ws implements the persistent-connection transport: a
// gorilla/websocket connection manager and the JSON envelope handler
// that relays pipeline progress and results to clients.
package ws

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/agentichat/agent-gateway/internal/metrics"
)

// Envelope is the wire frame for every message in either direction.
type Envelope struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// connection wraps a websocket with a write lock; gorilla connections
// do not allow concurrent writers and progress updates arrive from the
// pipeline goroutine.
type connection struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *connection) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Manager tracks open connections and their session associations.
type Manager struct {
	mu       sync.RWMutex
	conns    map[string]*connection
	sessions map[string]string // session_id -> connection_id
	logger   *slog.Logger
}

// NewManager creates an empty connection manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		conns:    make(map[string]*connection),
		sessions: make(map[string]string),
		logger:   logger,
	}
}

// Add registers an upgraded connection.
func (m *Manager) Add(connID string, ws *websocket.Conn) {
	m.mu.Lock()
	m.conns[connID] = &connection{ws: ws}
	count := len(m.conns)
	m.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(count))
	m.logger.Info("WebSocket connection established", "connection_id", connID)
}

// Remove drops a connection and any session association pointing at it.
func (m *Manager) Remove(connID string) {
	m.mu.Lock()
	delete(m.conns, connID)
	for sessionID, id := range m.sessions {
		if id == connID {
			delete(m.sessions, sessionID)
		}
	}
	count := len(m.conns)
	m.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(count))
	m.logger.Info("WebSocket connection closed", "connection_id", connID)
}

// AssociateSession binds a session to a connection so that
// session-addressed sends reach the right client.
func (m *Manager) AssociateSession(sessionID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = connID
}

// Send delivers an envelope to one connection.
func (m *Manager) Send(connID string, env Envelope) error {
	m.mu.RLock()
	conn, ok := m.conns[connID]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("connection '%s' not found", connID)
	}

	if err := conn.writeJSON(env); err != nil {
		m.logger.Error("Failed to send WebSocket message", "connection_id", connID, "error", err)
		return err
	}
	return nil
}

// SendToSession delivers an envelope to the connection associated with
// a session, if any.
func (m *Manager) SendToSession(sessionID string, env Envelope) error {
	m.mu.RLock()
	connID, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("session '%s' has no connection", sessionID)
	}
	return m.Send(connID, env)
}

// Broadcast delivers an envelope to every open connection. Best
// effort: individual send failures are logged, not returned.
func (m *Manager) Broadcast(env Envelope) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.Send(id, env)
	}
}

// Count returns the number of open connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}
