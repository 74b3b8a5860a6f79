package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// Client drives the conversational-agent platform's REST API: one call to
// put an agent into an RTC channel, one to take it out again.
type Client struct {
	settings   Settings
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a provisioning client.
func NewClient(settings Settings, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		settings:   settings,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Start provisions an agent into the given channel, listening to the local
// participant uid. The avatar video pipeline is enabled only in video mode.
// It returns the opaque agent handle; a response without one is a failure
// even when the platform answers 2xx.
func (c *Client) Start(ctx context.Context, channel, uid, mode string) (string, error) {
	s := c.settings

	payload := joinRequest{
		Name: channel,
		Properties: joinProperties{
			Channel:     channel,
			AgentRTCUID: AgentRTCUID,
			// The agent must be told exactly who to listen and look at.
			RemoteRTCUIDs:    []string{uid},
			IdleTimeout:      s.IdleTimeout,
			AdvancedFeatures: advancedFeatures{EnableAIVAD: false},
			ASR:              asrConfig{Language: s.ASRLanguage},
			LLM: llmConfig{
				URL:    s.LLMURL,
				APIKey: s.LLMKey,
				SystemMessages: []systemMessage{{
					Role:    "system",
					Content: s.SystemPrompt,
				}},
				Greeting:       s.Greeting,
				FailureMessage: "System error.",
				Params:         llmParams{Model: s.LLMModel},
			},
			TTS: ttsConfig{
				Vendor: "minimax",
				Params: ttsParams{
					URL:     s.TTSURL,
					GroupID: s.TTSGroupID,
					Key:     s.TTSKey,
					Model:   s.TTSModel,
					VoiceSetting: voiceSetting{
						VoiceID: s.TTSVoiceID,
						Speed:   1.0,
						Volume:  1.0,
						Pitch:   0,
						Emotion: "happy",
					},
					AudioSetting: audioSetting{SampleRate: 16000},
				},
			},
			Avatar: avatarConfig{
				Vendor: "akool",
				Enable: mode == "video",
				Params: avatarParams{
					APIKey:   s.AvatarKey,
					AgoraUID: AvatarRTCUID,
					AvatarID: s.AvatarID,
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal join request: %w", err)
	}

	url := fmt.Sprintf("%s/api/conversational-ai-agent/v2/projects/%s/join", strings.TrimRight(s.BaseURL, "/"), s.AppID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build join request: %w", err)
	}
	req.SetBasicAuth(s.RESTKey, s.RESTSecret)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("Starting agent", "channel", channel, "mode", mode)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("join request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read join response: %w", err)
	}

	var parsed joinResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("parse join response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := parsed.Reason
		if reason == "" {
			reason = parsed.Detail
		}
		if reason == "" {
			reason = strings.TrimSpace(string(data))
		}
		return "", fmt.Errorf("agent platform returned %d: %s", resp.StatusCode, reason)
	}

	if parsed.AgentID == "" {
		return "", fmt.Errorf("agent platform response missing agent_id")
	}

	c.logger.Info("Agent started", "channel", channel, "agent_id", parsed.AgentID)
	return parsed.AgentID, nil
}

// Stop releases the agent. Best effort: callers treat failures as
// diagnostics only, since the platform reaps idle agents on its own.
func (c *Client) Stop(ctx context.Context, agentID string) error {
	s := c.settings

	url := fmt.Sprintf("%s/api/conversational-ai-agent/v2/projects/%s/agents/%s/leave", strings.TrimRight(s.BaseURL, "/"), s.AppID, agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("build leave request: %w", err)
	}
	req.SetBasicAuth(s.RESTKey, s.RESTSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("leave request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("agent platform returned %d on leave", resp.StatusCode)
	}

	c.logger.Info("Agent stopped", "agent_id", agentID)
	return nil
}
