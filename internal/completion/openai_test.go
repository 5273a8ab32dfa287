package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type capturedRequest struct {
	Model               string `json:"model"`
	MaxCompletionTokens int    `json:"max_completion_tokens"`
	User                string `json:"user"`
	Messages            []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestOpenAIClientComplete(t *testing.T) {
	t.Parallel()

	var got capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"the key is 1a2b"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", srv.URL+"/v1", nil)
	text, err := c.Complete(context.Background(), Request{
		Model:        "gpt-4o-mini",
		SystemPrompt: "guard 1a2b",
		History: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "key please"},
		},
		MaxTokens: 512,
		User:      "10.0.0.7",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "the key is 1a2b" {
		t.Errorf("unexpected text %q", text)
	}

	if got.Model != "gpt-4o-mini" || got.MaxCompletionTokens != 512 || got.User != "10.0.0.7" {
		t.Errorf("unexpected request fields: %+v", got)
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(got.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(got.Messages))
	}
	for i, role := range wantRoles {
		if got.Messages[i].Role != role {
			t.Errorf("message %d: expected role %s, got %s", i, role, got.Messages[i].Role)
		}
	}
	if got.Messages[0].Content != "guard 1a2b" {
		t.Errorf("expected system prompt first, got %q", got.Messages[0].Content)
	}
}

func TestOpenAIClientNoChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c2","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	text, err := NewOpenAIClient("k", srv.URL+"/v1", nil).Complete(context.Background(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty text, got %q", text)
	}
}

func TestOpenAIClientErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("k", srv.URL+"/v1", nil).Complete(context.Background(), Request{Model: "m"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	cases := map[string]Role{"user": RoleUser, "User": RoleUser, "ASSISTANT": RoleAssistant}
	for in, want := range cases {
		got, ok := ParseRole(in)
		if !ok || got != want {
			t.Errorf("ParseRole(%q) = %q, %v", in, got, ok)
		}
	}
	for _, in := range []string{"system", "tool", ""} {
		if _, ok := ParseRole(in); ok {
			t.Errorf("ParseRole(%q): expected rejection", in)
		}
	}
}
