package tools

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentichat/agent-gateway/internal/config"
	"github.com/agentichat/agent-gateway/internal/llm"
)

// fakeCompleter records the last request and returns a canned response.
type fakeCompleter struct {
	lastReq *llm.Request
	resp    *llm.Response
	err     error
}

func (f *fakeCompleter) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeCompleter) Health() error { return nil }

func textGenConfig() config.OpenAIConfig {
	return config.OpenAIConfig{
		APIKey:      "test-key",
		Model:       "gpt-3.5-turbo",
		MaxTokens:   2000,
		Temperature: 0.7,
	}
}

func TestTextGenerationDisabledWithoutClient(t *testing.T) {
	tool := NewTextGeneration(nil, textGenConfig(), slog.Default())
	assert.False(t, tool.Enabled())
}

func TestTextGenerationExecute(t *testing.T) {
	client := &fakeCompleter{resp: &llm.Response{
		Content:      "Hi there",
		Model:        "gpt-3.5-turbo",
		TokensUsed:   12,
		FinishReason: "stop",
	}}
	tool := NewTextGeneration(client, textGenConfig(), slog.Default())

	output, err := tool.Execute(context.Background(), map[string]any{"prompt": "Hello"})
	require.NoError(t, err)

	assert.Equal(t, "Hi there", output["generated_text"])
	assert.Equal(t, "gpt-3.5-turbo", output["model_used"])
	assert.Equal(t, 12, output["tokens_used"])
	assert.Equal(t, "stop", output["finish_reason"])
	assert.Equal(t, "Hello", client.lastReq.Prompt)
	assert.Equal(t, 2000, client.lastReq.MaxTokens)
}

func TestTextGenerationParameterOverrides(t *testing.T) {
	client := &fakeCompleter{resp: &llm.Response{Content: "ok"}}
	tool := NewTextGeneration(client, textGenConfig(), slog.Default())

	// JSON-decoded parameters arrive as float64.
	_, err := tool.Execute(context.Background(), map[string]any{
		"prompt":      "Hello",
		"max_tokens":  float64(100),
		"temperature": 0.2,
		"model":       "gpt-4",
	})
	require.NoError(t, err)

	assert.Equal(t, 100, client.lastReq.MaxTokens)
	assert.Equal(t, 0.2, client.lastReq.Temperature)
	assert.Equal(t, "gpt-4", client.lastReq.Model)
}

func TestTextGenerationExecuteError(t *testing.T) {
	client := &fakeCompleter{err: fmt.Errorf("rate limited")}
	tool := NewTextGeneration(client, textGenConfig(), slog.Default())

	_, err := tool.Execute(context.Background(), map[string]any{"prompt": "Hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestTextGenerationValidateParameters(t *testing.T) {
	tool := NewTextGeneration(&fakeCompleter{}, textGenConfig(), slog.Default())

	cases := []struct {
		name   string
		params map[string]any
		want   bool
	}{
		{"valid prompt only", map[string]any{"prompt": "hi"}, true},
		{"missing prompt", map[string]any{}, false},
		{"empty prompt", map[string]any{"prompt": ""}, false},
		{"valid full", map[string]any{"prompt": "hi", "max_tokens": 100, "temperature": 0.5, "model": "gpt-4"}, true},
		{"max_tokens too large", map[string]any{"prompt": "hi", "max_tokens": 5000}, false},
		{"max_tokens zero", map[string]any{"prompt": "hi", "max_tokens": 0}, false},
		{"max_tokens fractional", map[string]any{"prompt": "hi", "max_tokens": 10.5}, false},
		{"temperature negative", map[string]any{"prompt": "hi", "temperature": -0.1}, false},
		{"temperature too high", map[string]any{"prompt": "hi", "temperature": 1.1}, false},
		{"unknown model", map[string]any{"prompt": "hi", "model": "llama-7b"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tool.ValidateParameters(tc.params))
		})
	}
}

func TestTextGenerationDefinition(t *testing.T) {
	tool := NewTextGeneration(&fakeCompleter{}, textGenConfig(), slog.Default())

	def, err := tool.Definition()
	require.NoError(t, err)

	assert.Equal(t, "text_generation", def.Name)
	assert.Equal(t, "ai", def.Category)
	assert.Equal(t, []string{"prompt"}, def.RequiredParams)
	assert.Contains(t, def.Parameters, "prompt")
	assert.Contains(t, def.Parameters, "max_tokens")
	assert.Contains(t, def.Parameters, "temperature")
	assert.Contains(t, def.Parameters, "model")
}
