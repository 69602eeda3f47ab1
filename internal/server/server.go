// Package server exposes the request/response surface: chat, tool
// management, session inspection, system status, metrics, and the
// WebSocket mount.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentichat/agent-gateway/internal/agent"
	"github.com/agentichat/agent-gateway/internal/config"
	"github.com/agentichat/agent-gateway/internal/metrics"
	"github.com/agentichat/agent-gateway/internal/schema"
	"github.com/agentichat/agent-gateway/internal/session"
	"github.com/agentichat/agent-gateway/internal/tools"
	"github.com/agentichat/agent-gateway/internal/ws"
)

const version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	cfg          *config.Config
	orchestrator *agent.Orchestrator
	registry     *tools.Registry
	store        *session.Store
	wsHandler    *ws.Handler
	httpServer   *http.Server
	startTime    time.Time
	logger       *slog.Logger
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Services  map[string]string `json:"services"`
	Timestamp string            `json:"timestamp"`
}

// ToolSearchResponse represents tool search results
type ToolSearchResponse struct {
	Query   string           `json:"query"`
	Results []ToolSearchItem `json:"results"`
	Count   int              `json:"count"`
}

// ToolSearchItem represents one tool search result
type ToolSearchItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Enabled     bool   `json:"enabled"`
}

// SessionHistoryResponse represents a session's conversation history
type SessionHistoryResponse struct {
	SessionID    string               `json:"session_id"`
	History      []schema.ChatMessage `json:"history"`
	MessageCount int                  `json:"message_count"`
}

// New creates a new HTTP server
func New(cfg *config.Config, orchestrator *agent.Orchestrator, registry *tools.Registry, store *session.Store, wsHandler *ws.Handler, logger *slog.Logger) *Server {
	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		registry:     registry,
		store:        store,
		wsHandler:    wsHandler,
		logger:       logger,
		startTime:    time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/v1/chat", s.chatHandler)
	mux.HandleFunc("/api/v1/tools", s.toolsHandler)
	mux.HandleFunc("/api/v1/tools/categories", s.toolCategoriesHandler)
	mux.HandleFunc("/api/v1/tools/search", s.toolSearchHandler)
	mux.HandleFunc("/api/v1/tools/", s.toolSubHandler)
	mux.HandleFunc("/api/v1/sessions", s.sessionsHandler)
	mux.HandleFunc("/api/v1/sessions/", s.sessionSubHandler)
	mux.HandleFunc("/api/v1/system/status", s.systemStatusHandler)
	mux.Handle("/metrics", promhttp.Handler())
	if wsHandler != nil {
		mux.Handle("/ws", wsHandler)
		mux.Handle("/ws/", wsHandler)
	}
	mux.HandleFunc("/", s.rootHandler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.withMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections stay open
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// withMiddleware applies CORS headers and request metrics.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range s.cfg.CORS.Origins {
			if origin == allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				break
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.RequestCount.WithLabelValues(r.Method, r.URL.Path, fmt.Sprintf("%d", rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.written {
		r.status = status
		r.written = true
	}
	r.ResponseWriter.WriteHeader(status)
}

// Hijack support is required for the WebSocket upgrade behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// rootHandler serves API information
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "Agent Gateway",
		"version":     version,
		"description": "Agentic chat assistant gateway",
		"endpoints": map[string]string{
			"health":    "/health",
			"tools":     "/api/v1/tools",
			"chat":      "/api/v1/chat",
			"websocket": "/ws/{connection_id}",
			"metrics":   "/metrics",
		},
	})
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	services := map[string]string{
		"orchestrator": "healthy",
		"registry":     "healthy",
		"classifier":   "healthy",
	}
	if s.cfg.OpenAI.Configured() {
		services["openai_api"] = "configured"
	} else {
		services["openai_api"] = "not_configured"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   version,
		Uptime:    time.Since(s.startTime).String(),
		Services:  services,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// chatHandler processes a query synchronously, without progress
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var query schema.UserQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(query.Message) == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}

	response := s.orchestrator.ProcessQuery(r.Context(), query, nil)
	writeJSON(w, http.StatusOK, response)
}

// toolsHandler lists definitions for all enabled tools
func (s *Server) toolsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.registry.Definitions())
}

// toolCategoriesHandler lists categories with their tools
func (s *Server) toolCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	categories := s.registry.Categories()
	details := make(map[string]any, len(categories))
	for _, category := range categories {
		inCategory := s.registry.ByCategory(category)
		names := make([]string, 0, len(inCategory))
		for _, t := range inCategory {
			names = append(names, t.Name())
		}
		details[category] = map[string]any{
			"tool_count": len(inCategory),
			"tools":      names,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"categories": categories,
		"details":    details,
	})
}

// toolSearchHandler searches enabled tools
func (s *Server) toolSearchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		http.Error(w, "Search query is required", http.StatusBadRequest)
		return
	}

	matches := s.registry.Search(req.Query)
	results := make([]ToolSearchItem, 0, len(matches))
	for _, t := range matches {
		results = append(results, ToolSearchItem{
			Name:        t.Name(),
			Description: t.Description(),
			Category:    t.Category(),
			Enabled:     t.Enabled(),
		})
	}

	writeJSON(w, http.StatusOK, ToolSearchResponse{
		Query:   req.Query,
		Results: results,
		Count:   len(results),
	})
}

// toolSubHandler routes /api/v1/tools/{name}[/execute|/toggle]
func (s *Server) toolSubHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/tools/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		s.toolDefinitionHandler(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "execute":
		s.toolExecuteHandler(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "toggle":
		s.toolToggleHandler(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) toolDefinitionHandler(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	t, ok := s.registry.Get(name)
	if !ok {
		http.Error(w, fmt.Sprintf("Tool '%s' not found", name), http.StatusNotFound)
		return
	}

	def, err := t.Definition()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get tool definition: %s", err.Error()), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) toolExecuteHandler(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	result := s.registry.Execute(r.Context(), name, params, nil)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) toolToggleHandler(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	enabled, ok := s.registry.Toggle(name)
	if !ok {
		http.Error(w, fmt.Sprintf("Tool '%s' not found", name), http.StatusNotFound)
		return
	}

	status := "disabled"
	if enabled {
		status = "enabled"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"tool_name": name,
		"status":    status,
		"message":   fmt.Sprintf("Tool '%s' has been %s", name, status),
	})
}

// sessionsHandler lists all active sessions
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := s.store.Active()
	writeJSON(w, http.StatusOK, map[string]any{
		"active_sessions": len(sessions),
		"sessions":        sessions,
	})
}

// sessionSubHandler routes /api/v1/sessions/{id}[/history|/stats]
func (s *Server) sessionSubHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		s.sessionClearHandler(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "history":
		s.sessionHistoryHandler(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "stats":
		s.sessionStatsHandler(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) sessionHistoryHandler(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	history := s.store.History(id)
	writeJSON(w, http.StatusOK, SessionHistoryResponse{
		SessionID:    id,
		History:      history,
		MessageCount: len(history),
	})
}

func (s *Server) sessionStatsHandler(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, ok := s.store.Stats(id)
	if !ok {
		http.Error(w, fmt.Sprintf("Session '%s' not found", id), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) sessionClearHandler(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.store.Clear(id) {
		http.Error(w, fmt.Sprintf("Session '%s' not found", id), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session '%s' cleared successfully", id),
	})
}

// systemStatusHandler aggregates tool, session, and connection status
func (s *Server) systemStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	toolStatus := s.registry.Status()
	enabledCount := 0
	for _, info := range toolStatus {
		if info.Enabled {
			enabledCount++
		}
	}

	connections := 0
	if s.wsHandler != nil {
		connections = s.wsHandler.Manager().Count()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"system": map[string]any{
			"status":  "operational",
			"version": version,
			"uptime":  time.Since(s.startTime).String(),
		},
		"tools": map[string]any{
			"total_tools":   len(toolStatus),
			"enabled_tools": enabledCount,
			"tool_status":   toolStatus,
		},
		"sessions": map[string]any{
			"active_sessions": s.store.Count(),
			"total_messages":  s.store.TotalMessages(),
		},
		"connections": map[string]any{
			"websocket_connections": connections,
		},
		"configuration": map[string]any{
			"openai_configured": s.cfg.OpenAI.Configured(),
			"cors_origins":      s.cfg.CORS.Origins,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
