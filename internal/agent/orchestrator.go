// Package agent implements the query-processing pipeline: session
// resolution, intent classification, concurrent tool dispatch, and
// response formatting, with progress reported at fixed checkpoints.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentichat/agent-gateway/internal/intent"
	"github.com/agentichat/agent-gateway/internal/metrics"
	"github.com/agentichat/agent-gateway/internal/schema"
	"github.com/agentichat/agent-gateway/internal/session"
	"github.com/agentichat/agent-gateway/internal/tools"
)

// ProgressFunc receives pipeline progress notifications. Fire and
// forget: no return value, nil is safe, and a failing callback never
// fails the pipeline.
type ProgressFunc func(message string, progress float64)

// Orchestrator drives a query through the full pipeline.
type Orchestrator struct {
	store      *session.Store
	classifier *intent.Classifier
	registry   *tools.Registry
	logger     *slog.Logger
}

// NewOrchestrator wires the pipeline services together.
func NewOrchestrator(store *session.Store, classifier *intent.Classifier, registry *tools.Registry, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		classifier: classifier,
		registry:   registry,
		logger:     logger,
	}
}

// ProcessQuery runs one query through the pipeline and always returns
// a response: on any failure the response carries a single error
// content block and the user message already appended stays in
// history. The returned processing time covers elapsed work up to the
// failure point.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query schema.UserQuery, progress ProgressFunc) *schema.AgentResponse {
	start := time.Now()

	sessionID := query.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	messageID := uuid.NewString()

	response, err := o.runPipeline(ctx, query, sessionID, messageID, start, progress)
	if err == nil {
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
		return response
	}

	o.logger.Error("Query pipeline failed", "session_id", sessionID, "error", err)
	return &schema.AgentResponse{
		MessageID:    messageID,
		ResponseType: schema.RoleError,
		Content: []schema.Content{{
			Type:     schema.ContentError,
			Content:  fmt.Sprintf("I encountered an error processing your request: %s", err.Error()),
			Metadata: map[string]any{"error_type": fmt.Sprintf("%T", err)},
		}},
		ProcessingTime: time.Since(start).Seconds(),
		SessionID:      sessionID,
	}
}

func (o *Orchestrator) runPipeline(ctx context.Context, query schema.UserQuery, sessionID, messageID string, start time.Time, progress ProgressFunc) (response *schema.AgentResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	o.store.Touch(sessionID)

	// The question stays recorded even if a later step fails.
	o.store.Append(sessionID, schema.ChatMessage{
		ID:        uuid.NewString(),
		Role:      schema.RoleUser,
		Content:   []schema.Content{{Type: schema.ContentText, Content: query.Message}},
		Timestamp: time.Now(),
		UserID:    query.UserID,
		SessionID: sessionID,
	})

	notify(progress, "Analyzing your request...", 0.1)

	classification := o.classifier.Classify(ctx, query.Message, o.conversationContext(sessionID))

	notify(progress, fmt.Sprintf("Intent classified: %s", classification.Intent), 0.3)

	var toolResults []schema.ToolResult
	if len(classification.SuggestedTools) > 0 {
		notify(progress, "Executing tools...", 0.5)

		// Suggested tools without a parameter entry are skipped, not
		// executed and not reported as failed.
		var requests []tools.ExecRequest
		for _, name := range classification.SuggestedTools {
			if params, ok := classification.Parameters[name]; ok {
				requests = append(requests, tools.ExecRequest{ToolName: name, Parameters: params})
			}
		}

		if len(requests) > 0 {
			toolResults = o.registry.ExecuteMany(ctx, requests)
		}

		notify(progress, "Processing results...", 0.8)
	}

	content := formatResponse(classification, toolResults, query.Message)

	response = &schema.AgentResponse{
		MessageID:      messageID,
		ResponseType:   schema.RoleAssistant,
		Content:        content,
		ToolsUsed:      classification.SuggestedTools,
		ProcessingTime: time.Since(start).Seconds(),
		SessionID:      sessionID,
	}

	o.store.Append(sessionID, schema.ChatMessage{
		ID:          messageID,
		Role:        schema.RoleAssistant,
		Content:     content,
		Timestamp:   time.Now(),
		SessionID:   sessionID,
		ToolResults: toolResults,
	})

	notify(progress, "Response ready!", 1.0)

	return response, nil
}

// conversationContext flattens the last turns into the shape the
// classifier consumes.
func (o *Orchestrator) conversationContext(sessionID string) []intent.ContextMessage {
	recent := o.store.Recent(sessionID, 5)

	context := make([]intent.ContextMessage, 0, len(recent))
	for i := range recent {
		context = append(context, intent.ContextMessage{
			Role:      recent[i].Role,
			Content:   recent[i].PrimaryContent(),
			Timestamp: recent[i].Timestamp.Format(time.RFC3339),
		})
	}
	return context
}

// Sessions exposes the session store to the transport adapters.
func (o *Orchestrator) Sessions() *session.Store {
	return o.store
}

func notify(progress ProgressFunc, message string, fraction float64) {
	if progress == nil {
		return
	}
	defer func() { recover() }()
	progress(message, fraction)
}
