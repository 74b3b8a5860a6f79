// Package llm provides the chat-completions client used by text mode.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultSystemPrompt frames the companion for the synchronous chat surface.
const DefaultSystemPrompt = "You are a mental health support chatbot. Be kind and concise."

// Message is one turn of conversation context, OpenAI chat-completions shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Option configures a Client.
type Option func(*Client)

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	endpoint     string
	apiKey       string
	model        string
	systemPrompt string
	httpClient   *http.Client
}

// NewClient creates a completion client for the given endpoint and model.
func NewClient(endpoint, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		endpoint:     strings.TrimSpace(endpoint),
		apiKey:       strings.TrimSpace(apiKey),
		model:        model,
		systemPrompt: DefaultSystemPrompt,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(prompt); trimmed != "" {
			c.systemPrompt = trimmed
		}
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Reply sends the latest user message with the ordered conversation history
// and returns the single reply string. History carries user and assistant
// roles only; the system prompt is prepended here.
func (c *Client) Reply(ctx context.Context, message string, hist []Message) (string, error) {
	messages := make([]Message, 0, len(hist)+2)
	messages = append(messages, Message{Role: "system", Content: c.systemPrompt})
	messages = append(messages, hist...)
	messages = append(messages, Message{Role: "user", Content: message})

	body, err := json.Marshal(completionRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	var parsed completionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("parse completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("completion endpoint returned %d", resp.StatusCode)
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("completion response contained no usable reply")
	}

	return parsed.Choices[0].Message.Content, nil
}
