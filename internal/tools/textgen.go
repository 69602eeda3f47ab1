package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentichat/agent-gateway/internal/config"
	"github.com/agentichat/agent-gateway/internal/llm"
	"github.com/agentichat/agent-gateway/internal/schema"
)

var textGenModels = []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo-preview"}

// TextGeneration generates text responses through the hosted
// language-model backend. It is disabled at construction when no
// backend client is available.
type TextGeneration struct {
	Base
	client llm.Client
	cfg    config.OpenAIConfig
}

// NewTextGeneration creates the text_generation tool. A nil client
// leaves the tool registered but disabled.
func NewTextGeneration(client llm.Client, cfg config.OpenAIConfig, logger *slog.Logger) *TextGeneration {
	t := &TextGeneration{
		Base:   NewBase("text_generation", "Generate text responses using AI language models", "ai"),
		client: client,
		cfg:    cfg,
	}
	if client == nil {
		logger.Warn("Text generation backend not configured, disabling tool")
		t.SetEnabled(false)
	}
	return t
}

// Execute runs one completion call.
func (t *TextGeneration) Execute(ctx context.Context, params map[string]any) (map[string]any, error) {
	if t.client == nil {
		return nil, fmt.Errorf("completion client not initialized - check API key")
	}

	prompt, _ := params["prompt"].(string)
	maxTokens := intParam(params, "max_tokens", t.cfg.MaxTokens)
	temperature := floatParam(params, "temperature", t.cfg.Temperature)
	model, ok := params["model"].(string)
	if !ok || model == "" {
		model = t.cfg.Model
	}

	resp, err := t.client.Complete(ctx, &llm.Request{
		Model:       model,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("text generation failed: %w", err)
	}

	return map[string]any{
		"generated_text": resp.Content,
		"model_used":     model,
		"tokens_used":    resp.TokensUsed,
		"finish_reason":  resp.FinishReason,
	}, nil
}

// Definition returns the parameter contract for text generation.
func (t *TextGeneration) Definition() (schema.ToolDefinition, error) {
	minTokens, maxTokens := 1.0, 4000.0
	minTemp, maxTemp := 0.0, 1.0

	return schema.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]schema.ParamSpec{
			"prompt": {
				Type:        "string",
				Description: "The text prompt to generate a response for",
			},
			"max_tokens": {
				Type:        "integer",
				Description: "Maximum number of tokens to generate",
				Default:     t.cfg.MaxTokens,
				Minimum:     &minTokens,
				Maximum:     &maxTokens,
			},
			"temperature": {
				Type:        "number",
				Description: "Creativity level (0.0 to 1.0)",
				Default:     t.cfg.Temperature,
				Minimum:     &minTemp,
				Maximum:     &maxTemp,
			},
			"model": {
				Type:        "string",
				Description: "Model to use",
				Default:     t.cfg.Model,
				Enum:        textGenModels,
			},
		},
		RequiredParams: []string{"prompt"},
		Category:       t.Category(),
		Enabled:        t.Enabled(),
	}, nil
}

// ValidateParameters rejects anything Execute cannot safely consume.
func (t *TextGeneration) ValidateParameters(params map[string]any) bool {
	prompt, ok := params["prompt"].(string)
	if !ok || prompt == "" {
		return false
	}

	if v, present := params["max_tokens"]; present {
		n, ok := asInt(v)
		if !ok || n < 1 || n > 4000 {
			return false
		}
	}

	if v, present := params["temperature"]; present {
		f, ok := asFloat(v)
		if !ok || f < 0.0 || f > 1.0 {
			return false
		}
	}

	if v, present := params["model"]; present {
		m, ok := v.(string)
		if !ok {
			return false
		}
		valid := false
		for _, known := range textGenModels {
			if m == known {
				valid = true
				break
			}
		}
		if !valid {
			return false
		}
	}

	return true
}

// JSON decoding delivers numbers as float64; accept both forms.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func intParam(params map[string]any, key string, def int) int {
	if v, present := params[key]; present {
		if n, ok := asInt(v); ok {
			return n
		}
	}
	return def
}

func floatParam(params map[string]any, key string, def float64) float64 {
	if v, present := params[key]; present {
		if f, ok := asFloat(v); ok {
			return f
		}
	}
	return def
}
