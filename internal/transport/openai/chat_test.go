package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/legalrag/internal/domain"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

func chatServer(t *testing.T, got *chatRequest, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "chat-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	}))
}

func TestChatter_Chat(t *testing.T) {
	var got chatRequest
	server := chatServer(t, &got, `{"query_type":"general_legal"}`)
	defer server.Close()

	c := NewChatter(&Config{APIKey: "k", BaseURL: server.URL, Model: "chat-model", Provider: "test"})

	out, err := c.Chat(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "classify"},
		{Role: domain.RoleUser, Content: "what is CCPA?"},
	}, domain.ChatOptions{Temperature: 0.2, MaxTokens: 1500, JSON: true})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if out != `{"query_type":"general_legal"}` {
		t.Errorf("content = %q", out)
	}
	if got.Model != "chat-model" || got.MaxTokens != 1500 || got.Temperature != 0.2 {
		t.Errorf("unexpected request: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v", got.ResponseFormat)
	}
}

func TestChatter_ZeroTemperatureIsSent(t *testing.T) {
	var got chatRequest
	server := chatServer(t, &got, "ok")
	defer server.Close()

	c := NewChatter(&Config{APIKey: "k", BaseURL: server.URL, Model: "chat-model"})
	if _, err := c.Chat(context.Background(), nil, domain.ChatOptions{}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if got.Temperature <= 0 || got.Temperature > 1e-6 {
		t.Errorf("temperature = %v, want a near-zero positive value", got.Temperature)
	}
	if got.ResponseFormat != nil {
		t.Errorf("response_format should be omitted, got %+v", got.ResponseFormat)
	}
}

func TestChatter_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	c := NewChatter(&Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
	_, err := c.Chat(context.Background(), nil, domain.ChatOptions{})
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}
