package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentichat/agent-gateway/internal/agent"
	"github.com/agentichat/agent-gateway/internal/config"
	"github.com/agentichat/agent-gateway/internal/intent"
	"github.com/agentichat/agent-gateway/internal/llm"
	"github.com/agentichat/agent-gateway/internal/logging"
	"github.com/agentichat/agent-gateway/internal/scheduler"
	"github.com/agentichat/agent-gateway/internal/server"
	"github.com/agentichat/agent-gateway/internal/session"
	"github.com/agentichat/agent-gateway/internal/tools"
	"github.com/agentichat/agent-gateway/internal/ws"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Run with defaults when no config file exists; env vars still apply.
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		logging.New(cfg.Logging).Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	rootLogger := logging.New(cfg.Logging)
	logger := logging.WithComponent(rootLogger, "main")
	logger.Info("Starting agent gateway", "version", version)

	// The completion client stays nil without credentials: the text
	// generation tool registers disabled and the classifier runs on
	// keyword fallback.
	var client llm.Client
	if cfg.OpenAI.Configured() {
		openaiClient, err := llm.NewOpenAIClient(&llm.OpenAIConfig{
			BaseURL: cfg.OpenAI.BaseURL,
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			Timeout: cfg.OpenAI.GetTimeout(),
		})
		if err != nil {
			logger.Error("Failed to create completion client", "error", err)
			os.Exit(1)
		}
		client = openaiClient
		logger.Info("Completion backend configured", "base_url", cfg.OpenAI.BaseURL, "model", cfg.OpenAI.Model)
	} else {
		logger.Warn("No API key configured, text generation disabled and classifier on keyword fallback")
	}

	registry := tools.NewRegistry(logging.WithComponent(rootLogger, "registry"))
	registry.Register(tools.NewTextGeneration(client, cfg.OpenAI, logging.WithComponent(rootLogger, "textgen")))
	logger.Info("Tools registered", "enabled", len(registry.Enabled()), "total", len(registry.All()))

	classifier := intent.NewClassifier(client, registry, cfg.Classifier, logging.WithComponent(rootLogger, "classifier"))
	store := session.NewStore()
	orchestrator := agent.NewOrchestrator(store, classifier, registry, logging.WithComponent(rootLogger, "orchestrator"))

	wsManager := ws.NewManager(logging.WithComponent(rootLogger, "ws"))
	wsHandler := ws.NewHandler(wsManager, orchestrator, logging.WithComponent(rootLogger, "ws"))

	srv := server.New(cfg, orchestrator, registry, store, wsHandler, logging.WithComponent(rootLogger, "server"))

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler, wsManager, store, registry, logging.WithComponent(rootLogger, "scheduler"))
		if err != nil {
			logger.Error("Failed to create scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("HTTP server failed", "error", err)
		os.Exit(1)
	case sig := <-sigCh:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
