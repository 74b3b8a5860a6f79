// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// FallbackDelay is how long the UI waits for the avatar video after
	// remote audio arrives before degrading to voice presentation.
	FallbackDelay time.Duration

	RTC    RTCConfig
	LLM    LLMConfig
	TTS    TTSConfig
	Avatar AvatarConfig
}

// RTCConfig identifies the realtime transport project and the agent
// platform's REST credentials.
type RTCConfig struct {
	AppID       string
	RESTKey     string
	RESTSecret  string
	BaseURL     string
	IdleTimeout int // seconds
}

// LLMConfig selects the completion backend used by both the voice agent and
// the text-chat relay.
type LLMConfig struct {
	URL          string
	APIKey       string
	Model        string
	SystemPrompt string
	Greeting     string
}

// TTSConfig selects the speech synthesis vendor parameters.
type TTSConfig struct {
	URL     string
	GroupID string
	APIKey  string
	Model   string
	VoiceID string
}

// AvatarConfig selects the avatar video vendor parameters (video mode only).
type AvatarConfig struct {
	APIKey   string
	AvatarID string
}

const defaultSystemPrompt = `You are a supportive, empathetic mental health companion.
- Keep answers short (1-2 sentences).
- Be warm and soothing.
- Ask gentle questions.`

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "3000"),
		FrontendURL:   getEnv("FRONTEND_URL", ""),
		DBPath:        getEnv("DB_PATH", "./data/anchor.db"),
		FallbackDelay: getEnvDuration("VIDEO_FALLBACK_DELAY", 8*time.Second),
		RTC: RTCConfig{
			AppID:       getEnv("AGORA_APPID", ""),
			RESTKey:     getEnv("AGORA_REST_KEY", ""),
			RESTSecret:  getEnv("AGORA_REST_SECRET", ""),
			BaseURL:     getEnv("AGORA_REST_BASE", "https://api.agora.io"),
			IdleTimeout: getEnvInt("AGENT_IDLE_TIMEOUT", 120),
		},
		LLM: LLMConfig{
			URL:          getEnv("LLM_URL", "https://api.groq.com/openai/v1/chat/completions"),
			APIKey:       getEnv("GROQ_KEY", ""),
			Model:        getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
			SystemPrompt: getEnv("LLM_SYSTEM_PROMPT", defaultSystemPrompt),
			Greeting:     getEnv("LLM_GREETING", "Hello, I am connected. I am listening."),
		},
		TTS: TTSConfig{
			URL:     getEnv("TTS_MINIMAX_URL", "wss://api.minimax.io/ws/v1/t2a_v2"),
			GroupID: getEnv("TTS_MINIMAX_GROUPID", ""),
			APIKey:  getEnv("TTS_MINIMAX_KEY", ""),
			Model:   getEnv("TTS_MINIMAX_MODEL", "speech-2.6-turbo"),
			VoiceID: getEnv("TTS_MINIMAX_VOICE", "English_Lively_Male_11"),
		},
		Avatar: AvatarConfig{
			APIKey:   getEnv("AVATAR_AKOOL_KEY", ""),
			AvatarID: getEnv("AVATAR_AKOOL_ID", "dvp_Sean_agora"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.RTC.AppID == "" {
		return fmt.Errorf("AGORA_APPID cannot be empty")
	}
	if c.RTC.RESTKey == "" || c.RTC.RESTSecret == "" {
		return fmt.Errorf("AGORA_REST_KEY and AGORA_REST_SECRET cannot be empty")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("GROQ_KEY cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.FallbackDelay <= 0 {
		return fmt.Errorf("VIDEO_FALLBACK_DELAY must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
