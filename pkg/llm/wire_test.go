package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"sql-smart-go/internal/config"
)

func TestFillEmptyContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"missing content", `{"messages":[{"role":"user"}],"model":"m"}`, `{"messages":[{"content":"","role":"user"}],"model":"m"}`},
		{"content kept", `{"messages":[{"role":"user","content":"hi"}]}`, `{"messages":[{"role":"user","content":"hi"}]}`},
		{"not json", `not json`, `not json`},
		{"no messages", `{"model":"m"}`, `{"model":"m"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(fillEmptyContent([]byte(tt.in))); got != tt.want {
				t.Errorf("fillEmptyContent(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewClient_SendsEmptyContent(t *testing.T) {
	var received struct {
		Messages []map[string]any `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("invalid request body %s: %v", body, err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	got, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: RoleUser, Content: ""},
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if got != "ok" {
		t.Errorf("Chat() = %q, want ok", got)
	}
	if len(received.Messages) != 2 {
		t.Fatalf("messages = %v", received.Messages)
	}
	content, ok := received.Messages[1]["content"]
	if !ok || content != "" {
		t.Errorf("empty content not sent on the wire: %v", received.Messages[1])
	}
}
