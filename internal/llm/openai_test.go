package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func fakeCompletionsServer(t *testing.T, handler func(req chatRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Unexpected auth header: %s", auth)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}

		status, resp := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAIClientRequiresBaseURL(t *testing.T) {
	_, err := NewOpenAIClient(&OpenAIConfig{})
	if err == nil {
		t.Error("Expected error for missing base URL")
	}
}

func TestComplete(t *testing.T) {
	srv := fakeCompletionsServer(t, func(req chatRequest) (int, any) {
		if req.Model != "gpt-3.5-turbo" {
			t.Errorf("Expected default model, got %s", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("Expected system+user messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("Unexpected message roles: %+v", req.Messages)
		}
		return http.StatusOK, chatResponse{
			Model: "gpt-3.5-turbo",
			Choices: []choice{{
				Message:      chatMessage{Role: "assistant", Content: "Hi there"},
				FinishReason: "stop",
			}},
			Usage: usage{TotalTokens: 12},
		}
	})

	client, err := NewOpenAIClient(&OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "gpt-3.5-turbo"})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	resp, err := client.Complete(context.Background(), &Request{
		System: "You are a helper",
		Prompt: "Hello",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "Hi there" {
		t.Errorf("Unexpected content: %s", resp.Content)
	}
	if resp.TokensUsed != 12 {
		t.Errorf("Unexpected token count: %d", resp.TokensUsed)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("Unexpected finish reason: %s", resp.FinishReason)
	}
}

func TestCompleteJSONResponseFormat(t *testing.T) {
	srv := fakeCompletionsServer(t, func(req chatRequest) (int, any) {
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("Expected json_object response format, got %+v", req.ResponseFormat)
		}
		return http.StatusOK, chatResponse{
			Choices: []choice{{Message: chatMessage{Content: `{"intent": "general_chat"}`}}},
		}
	})

	client, _ := NewOpenAIClient(&OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key"})
	resp, err := client.Complete(context.Background(), &Request{Prompt: "hi", JSONResponse: true})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != `{"intent": "general_chat"}` {
		t.Errorf("Unexpected content: %s", resp.Content)
	}
}

func TestCompleteModelOverride(t *testing.T) {
	srv := fakeCompletionsServer(t, func(req chatRequest) (int, any) {
		if req.Model != "gpt-4" {
			t.Errorf("Expected model override gpt-4, got %s", req.Model)
		}
		return http.StatusOK, chatResponse{Choices: []choice{{Message: chatMessage{Content: "ok"}}}}
	})

	client, _ := NewOpenAIClient(&OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "gpt-3.5-turbo"})
	if _, err := client.Complete(context.Background(), &Request{Prompt: "hi", Model: "gpt-4"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
}

func TestCompleteAPIError(t *testing.T) {
	srv := fakeCompletionsServer(t, func(req chatRequest) (int, any) {
		return http.StatusTooManyRequests, map[string]any{"error": "rate limited"}
	})

	client, _ := NewOpenAIClient(&OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key"})
	if _, err := client.Complete(context.Background(), &Request{Prompt: "hi"}); err == nil {
		t.Error("Expected error for non-200 status")
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := fakeCompletionsServer(t, func(req chatRequest) (int, any) {
		return http.StatusOK, chatResponse{}
	})

	client, _ := NewOpenAIClient(&OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key"})
	if _, err := client.Complete(context.Background(), &Request{Prompt: "hi"}); err == nil {
		t.Error("Expected error for empty choices")
	}
}

func TestHealth(t *testing.T) {
	client, _ := NewOpenAIClient(&OpenAIConfig{BaseURL: "http://localhost:1234", APIKey: "key"})
	if err := client.Health(); err != nil {
		t.Errorf("Expected healthy with API key: %v", err)
	}

	client, _ = NewOpenAIClient(&OpenAIConfig{BaseURL: "http://localhost:1234"})
	if err := client.Health(); err == nil {
		t.Error("Expected error without API key")
	}
}
