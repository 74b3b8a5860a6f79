package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReplyBuildsMessageStack(t *testing.T) {
	var captured completionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q, want bearer token", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Take a deep breath."}},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key", "test-model",
		WithSystemPrompt("Be supportive."))

	reply, err := c.Reply(context.Background(), "I feel anxious", []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply != "Take a deep breath." {
		t.Errorf("reply = %q, want the choice content", reply)
	}

	if captured.Model != "test-model" {
		t.Errorf("model = %q, want test-model", captured.Model)
	}
	want := []Message{
		{Role: "system", Content: "Be supportive."},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "I feel anxious"},
	}
	if len(captured.Messages) != len(want) {
		t.Fatalf("messages = %+v, want %+v", captured.Messages, want)
	}
	for i := range want {
		if captured.Messages[i] != want[i] {
			t.Errorf("messages[%d] = %+v, want %+v", i, captured.Messages[i], want[i])
		}
	}
}

func TestReplyUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limit exceeded"},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, "k", "m")
	if _, err := c.Reply(context.Background(), "hi", nil); err == nil {
		t.Fatal("Reply succeeded on a 429 response")
	}
}

func TestReplyEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	c := NewClient(server.URL, "k", "m")
	if _, err := c.Reply(context.Background(), "hi", nil); err == nil {
		t.Fatal("Reply succeeded with no choices")
	}
}

func TestReplyMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway timeout</html>"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "k", "m")
	if _, err := c.Reply(context.Background(), "hi", nil); err == nil {
		t.Fatal("Reply succeeded on a non-JSON body")
	}
}

func TestWithSystemPromptIgnoresBlank(t *testing.T) {
	c := NewClient("http://localhost", "k", "m", WithSystemPrompt("   "))
	if c.systemPrompt != DefaultSystemPrompt {
		t.Errorf("systemPrompt = %q, want default kept for blank override", c.systemPrompt)
	}
}
