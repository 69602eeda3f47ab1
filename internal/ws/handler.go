package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentichat/agent-gateway/internal/agent"
	"github.com/agentichat/agent-gateway/internal/schema"
)

// inbound is the partially decoded wire frame; Data is decoded per
// message type.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Handler owns the WebSocket endpoint: it upgrades connections, reads
// envelopes, and drives the orchestrator for chat messages.
type Handler struct {
	manager      *Manager
	orchestrator *agent.Orchestrator
	upgrader     websocket.Upgrader
	logger       *slog.Logger
}

// NewHandler creates the WebSocket handler.
func NewHandler(manager *Manager, orchestrator *agent.Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{
		manager:      manager,
		orchestrator: orchestrator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Manager exposes the connection manager for broadcasts.
func (h *Handler) Manager() *Manager {
	return h.manager
}

// ServeHTTP upgrades the request and runs the connection read loop.
// The connection identifier comes from the path suffix, or is
// generated when absent.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	connID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws"), "/")
	if connID == "" {
		connID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	h.manager.Add(connID, conn)
	defer func() {
		h.manager.Remove(connID)
		conn.Close()
	}()

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error("WebSocket read error", "connection_id", connID, "error", err)
			}
			return
		}
		// Per-message error isolation: a bad envelope is reported back
		// over the same connection, which stays open.
		h.dispatch(r.Context(), connID, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, connID string, msg inbound) {
	switch msg.Type {
	case "chat_message":
		h.handleChatMessage(ctx, connID, msg.Data)
	case "session_init":
		h.handleSessionInit(connID, msg.Data)
	case "session_history":
		h.handleSessionHistory(connID, msg.Data)
	case "ping":
		h.send(connID, Envelope{Type: "pong", Data: map[string]any{
			"timestamp": float64(time.Now().UnixNano()) / float64(time.Second),
		}})
	default:
		h.sendError(connID, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *Handler) handleChatMessage(ctx context.Context, connID string, data json.RawMessage) {
	var payload struct {
		Message   string `json:"message"`
		SessionID string `json:"session_id"`
		UserID    string `json:"user_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		h.sendError(connID, fmt.Sprintf("Error processing chat message: %s", err.Error()))
		return
	}

	if strings.TrimSpace(payload.Message) == "" {
		h.sendError(connID, "Empty message received")
		return
	}

	if payload.SessionID != "" {
		h.manager.AssociateSession(payload.SessionID, connID)
	}

	h.send(connID, Envelope{Type: "message_received", Data: map[string]any{
		"message_id": payload.SessionID,
	}})

	progress := func(message string, fraction float64) {
		h.send(connID, Envelope{Type: "progress_update", Data: map[string]any{
			"message":    message,
			"progress":   fraction,
			"session_id": payload.SessionID,
		}})
	}

	response := h.orchestrator.ProcessQuery(ctx, schema.UserQuery{
		Message:   payload.Message,
		SessionID: payload.SessionID,
		UserID:    payload.UserID,
	}, progress)

	h.send(connID, Envelope{Type: "agent_response", Data: map[string]any{
		"message_id":      response.MessageID,
		"content":         response.Content,
		"tools_used":      response.ToolsUsed,
		"processing_time": response.ProcessingTime,
		"session_id":      response.SessionID,
	}})
}

func (h *Handler) handleSessionInit(connID string, data json.RawMessage) {
	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.SessionID == "" {
		h.sendError(connID, "No session_id provided")
		return
	}

	h.manager.AssociateSession(payload.SessionID, connID)
	h.send(connID, Envelope{Type: "session_initialized", Data: map[string]any{
		"session_id": payload.SessionID,
		"status":     "connected",
	}})
}

func (h *Handler) handleSessionHistory(connID string, data json.RawMessage) {
	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.SessionID == "" {
		h.sendError(connID, "No session_id provided")
		return
	}

	history := h.orchestrator.Sessions().History(payload.SessionID)

	entries := make([]map[string]any, 0, len(history))
	for i := range history {
		entry := map[string]any{
			"id":        history[i].ID,
			"type":      history[i].Role,
			"content":   history[i].Content,
			"timestamp": history[i].Timestamp.Format(time.RFC3339),
		}
		if len(history[i].ToolResults) > 0 {
			entry["tool_results"] = history[i].ToolResults
		}
		entries = append(entries, entry)
	}

	h.send(connID, Envelope{Type: "session_history", Data: map[string]any{
		"session_id": payload.SessionID,
		"history":    entries,
	}})
}

// send is best effort; a dead connection is cleaned up by the read loop.
func (h *Handler) send(connID string, env Envelope) {
	_ = h.manager.Send(connID, env)
}

func (h *Handler) sendError(connID string, message string) {
	h.send(connID, Envelope{Type: "error", Data: map[string]any{
		"error":     message,
		"timestamp": float64(time.Now().UnixNano()) / float64(time.Second),
	}})
}
