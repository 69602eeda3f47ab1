// Package intent maps free-text messages to structured intent
// classifications, with a deterministic keyword fallback when the
// classification backend is unavailable.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentichat/agent-gateway/internal/config"
	"github.com/agentichat/agent-gateway/internal/llm"
	"github.com/agentichat/agent-gateway/internal/metrics"
	"github.com/agentichat/agent-gateway/internal/schema"
	"github.com/agentichat/agent-gateway/internal/tools"
)

// Intents is the fixed intent taxonomy.
var Intents = []string{
	"text_generation",
	"code_generation",
	"web_search",
	"image_generation",
	"data_analysis",
	"calculation",
	"file_processing",
	"general_chat",
}

// ContextMessage is one recent conversation turn passed as
// classification context.
type ContextMessage struct {
	Role      schema.Role `json:"type"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
}

// Classifier classifies user intents and suggests tools. A nil backend
// client forces the keyword fallback path.
type Classifier struct {
	client   llm.Client
	registry *tools.Registry
	cfg      config.ClassifierConfig
	logger   *slog.Logger
}

// NewClassifier creates a classifier. client may be nil.
func NewClassifier(client llm.Client, registry *tools.Registry, cfg config.ClassifierConfig, logger *slog.Logger) *Classifier {
	if client == nil {
		logger.Warn("Classification backend not configured, using keyword fallback")
	}
	return &Classifier{
		client:   client,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

// Classify determines the intent of a message given recent
// conversation context. Every classification, by either path, suggests
// at least one tool and carries a parameter bundle for each.
func (c *Classifier) Classify(ctx context.Context, message string, history []ContextMessage) schema.IntentClassification {
	if c.client == nil {
		return c.fallback(message)
	}

	classification, err := c.classifyStructured(ctx, message, history)
	if err != nil {
		c.logger.Warn("Intent classification failed, using fallback", "error", err)
		return c.fallback(message)
	}
	return normalize(classification, message)
}

func (c *Classifier) classifyStructured(ctx context.Context, message string, history []ContextMessage) (schema.IntentClassification, error) {
	prompt := fmt.Sprintf("Classify this query: %s", message)

	if contextJSON := buildContext(history); contextJSON != "" {
		prompt += "\n\nAdditional context: " + contextJSON
	}

	resp, err := c.client.Complete(ctx, &llm.Request{
		Model:        c.cfg.Model,
		System:       c.systemPrompt(),
		Prompt:       prompt,
		MaxTokens:    c.cfg.MaxTokens,
		Temperature:  c.cfg.Temperature,
		JSONResponse: true,
	})
	if err != nil {
		return schema.IntentClassification{}, err
	}

	// Missing fields default per the classification contract. A pointer
	// distinguishes an absent confidence from an explicit zero.
	var parsed struct {
		Intent         string                    `json:"intent"`
		Confidence     *float64                  `json:"confidence"`
		SuggestedTools []string                  `json:"suggested_tools"`
		Parameters     map[string]map[string]any `json:"parameters"`
		Reasoning      string                    `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return schema.IntentClassification{}, fmt.Errorf("invalid classification payload: %w", err)
	}

	classification := schema.IntentClassification{
		Intent:         parsed.Intent,
		Confidence:     0.5,
		SuggestedTools: parsed.SuggestedTools,
		Parameters:     parsed.Parameters,
		Reasoning:      parsed.Reasoning,
	}
	if parsed.Confidence != nil {
		classification.Confidence = *parsed.Confidence
	}
	if classification.Intent == "" {
		classification.Intent = "text_generation"
	}
	if classification.Reasoning == "" {
		classification.Reasoning = "Default classification"
	}
	return classification, nil
}

// buildContext serializes the last turns, flagging the most recent
// assistant turn explicitly when present.
func buildContext(history []ContextMessage) string {
	if len(history) == 0 {
		return ""
	}

	recent := history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	contextData := map[string]any{
		"recent_conversation": recent,
	}
	last := recent[len(recent)-1]
	if last.Role == schema.RoleAssistant {
		contextData["last_assistant_response"] = last.Content
	}

	data, err := json.Marshal(contextData)
	if err != nil {
		return ""
	}
	return string(data)
}

func (c *Classifier) systemPrompt() string {
	defs := c.registry.Definitions()

	var toolLines []string
	for _, def := range defs {
		toolLines = append(toolLines, fmt.Sprintf("- %s: %s (Category: %s)", def.Name, def.Description, def.Category))
	}
	toolsList := strings.Join(toolLines, "\n")
	if toolsList == "" {
		toolsList = "- text_generation: Generate text responses using AI language models (Category: ai)"
	}

	return fmt.Sprintf(`You are an intelligent intent classifier for an agentic chat assistant. Your job is to analyze user queries and determine:

1. The primary intent of the user
2. Which tools should be used to fulfill the request
3. What parameters should be passed to those tools

Available Tools:
%s

Intent Categories:
- text_generation: User wants text generated, questions answered, creative writing, explanations
- code_generation: User wants code written, programming help, technical solutions
- web_search: User needs current information, facts, news, or web-based research
- image_generation: User wants images created, visual content, artwork
- data_analysis: User has data to analyze, wants charts, statistics, or insights
- calculation: User needs mathematical calculations, conversions, or computations
- file_processing: User wants to process files, extract information, or convert formats
- general_chat: General conversation, greetings, casual chat

Response Format:
You must respond with a valid JSON object containing:
{
    "intent": "primary_intent_category",
    "confidence": 0.0-1.0,
    "suggested_tools": ["tool1", "tool2"],
    "parameters": {
        "tool1": {"param1": "value1"},
        "tool2": {"param2": "value2"}
    },
    "reasoning": "Brief explanation of why these tools were selected"
}

Rules:
1. Always suggest at least one tool
2. If unsure, default to text_generation tool
3. Confidence should reflect how certain you are about the classification
4. Parameters should match the tool's expected input format
5. For text generation, always include the user's query as the "prompt" parameter`, toolsList)
}

// keywordRule is one ordered fallback rule. First match wins.
type keywordRule struct {
	intent     string
	confidence float64
	keywords   []string
	prefix     string
	reasoning  string
}

var fallbackRules = []keywordRule{
	{
		intent:     "code_generation",
		confidence: 0.7,
		keywords:   []string{"code", "program", "function", "script", "debug"},
		prefix:     "Help with coding: ",
		reasoning:  "Detected code-related keywords",
	},
	{
		intent:     "web_search",
		confidence: 0.6,
		keywords:   []string{"search", "find", "what is", "current", "news", "latest"},
		prefix:     "Provide information about: ",
		reasoning:  "Detected search-related keywords",
	},
	{
		intent:     "image_generation",
		confidence: 0.8,
		keywords:   []string{"image", "picture", "draw", "create visual", "generate image"},
		prefix:     "Describe image generation request: ",
		reasoning:  "Detected image-related keywords",
	},
	{
		intent:     "calculation",
		confidence: 0.7,
		keywords:   []string{"calculate", "math", "compute", "solve", "equation"},
		prefix:     "Help with calculation: ",
		reasoning:  "Detected calculation-related keywords",
	},
}

// fallback applies ordered keyword matching. Each path nominates
// exactly the text_generation tool with a category-specific prompt.
func (c *Classifier) fallback(message string) schema.IntentClassification {
	metrics.ClassifierFallbacks.Inc()
	lower := strings.ToLower(message)

	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return schema.IntentClassification{
					Intent:         rule.intent,
					Confidence:     rule.confidence,
					SuggestedTools: []string{"text_generation"},
					Parameters: map[string]map[string]any{
						"text_generation": {"prompt": rule.prefix + message},
					},
					Reasoning: rule.reasoning,
				}
			}
		}
	}

	return schema.IntentClassification{
		Intent:         "text_generation",
		Confidence:     0.5,
		SuggestedTools: []string{"text_generation"},
		Parameters: map[string]map[string]any{
			"text_generation": {"prompt": message},
		},
		Reasoning: "Default classification for general text generation",
	}
}

// normalize enforces the classification invariant: at least one
// suggested tool, and a parameter bundle for every suggested tool.
// text_generation gets the raw message as its prompt; other tools get
// an empty bundle and rely on their own validation.
func normalize(c schema.IntentClassification, message string) schema.IntentClassification {
	if len(c.SuggestedTools) == 0 {
		c.SuggestedTools = []string{"text_generation"}
	}
	if c.Parameters == nil {
		c.Parameters = map[string]map[string]any{}
	}
	for _, name := range c.SuggestedTools {
		if _, ok := c.Parameters[name]; ok {
			continue
		}
		if name == "text_generation" {
			c.Parameters[name] = map[string]any{"prompt": message}
		} else {
			c.Parameters[name] = map[string]any{}
		}
	}
	return c
}
