// Package scheduler runs periodic maintenance jobs: system
// announcements over the WebSocket transport and metrics refresh.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentichat/agent-gateway/internal/config"
	"github.com/agentichat/agent-gateway/internal/metrics"
	"github.com/agentichat/agent-gateway/internal/session"
	"github.com/agentichat/agent-gateway/internal/tools"
	"github.com/agentichat/agent-gateway/internal/ws"
)

// Scheduler manages cron jobs for the gateway
type Scheduler struct {
	cron      *cron.Cron
	manager   *ws.Manager
	store     *session.Store
	registry  *tools.Registry
	startTime time.Time
	logger    *slog.Logger
}

// New creates a scheduler with the configured jobs registered
func New(cfg config.SchedulerConfig, manager *ws.Manager, store *session.Store, registry *tools.Registry, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		manager:   manager,
		store:     store,
		registry:  registry,
		startTime: time.Now(),
		logger:    logger,
	}

	if _, err := s.cron.AddFunc(cfg.AnnounceCron, s.announce); err != nil {
		return nil, fmt.Errorf("invalid announce schedule %q: %w", cfg.AnnounceCron, err)
	}
	if _, err := s.cron.AddFunc("@every 30s", s.refreshGauges); err != nil {
		return nil, err
	}

	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// announce broadcasts a system message to all connected clients
func (s *Scheduler) announce() {
	enabled := len(s.registry.Enabled())
	s.manager.Broadcast(ws.Envelope{
		Type: "system_message",
		Data: map[string]any{
			"message":   fmt.Sprintf("Gateway operational: uptime %s, %d tools enabled", time.Since(s.startTime).Round(time.Second), enabled),
			"timestamp": float64(time.Now().UnixNano()) / float64(time.Second),
		},
	})
}

// refreshGauges re-syncs gauges that drift when no traffic arrives
func (s *Scheduler) refreshGauges() {
	metrics.ActiveSessions.Set(float64(s.store.Count()))
	metrics.WebSocketConnections.Set(float64(s.manager.Count()))
}
