package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AGORA_APPID", "app123")
	t.Setenv("AGORA_REST_KEY", "rest-key")
	t.Setenv("AGORA_REST_SECRET", "rest-secret")
	t.Setenv("GROQ_KEY", "groq-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.FallbackDelay != 8*time.Second {
		t.Errorf("FallbackDelay = %v, want 8s", cfg.FallbackDelay)
	}
	if cfg.RTC.BaseURL != "https://api.agora.io" {
		t.Errorf("RTC.BaseURL = %q, want platform default", cfg.RTC.BaseURL)
	}
	if cfg.RTC.IdleTimeout != 120 {
		t.Errorf("RTC.IdleTimeout = %d, want 120", cfg.RTC.IdleTimeout)
	}
	if cfg.LLM.Model != "llama-3.3-70b-versatile" {
		t.Errorf("LLM.Model = %q, want default model", cfg.LLM.Model)
	}
	if cfg.DBPath != "./data/anchor.db" {
		t.Errorf("DBPath = %q, want default path", cfg.DBPath)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("VIDEO_FALLBACK_DELAY", "3s")
	t.Setenv("AGENT_IDLE_TIMEOUT", "60")
	t.Setenv("LLM_MODEL", "custom-model")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.FallbackDelay != 3*time.Second {
		t.Errorf("FallbackDelay = %v, want 3s", cfg.FallbackDelay)
	}
	if cfg.RTC.IdleTimeout != 60 {
		t.Errorf("RTC.IdleTimeout = %d, want 60", cfg.RTC.IdleTimeout)
	}
	if cfg.LLM.Model != "custom-model" {
		t.Errorf("LLM.Model = %q, want custom-model", cfg.LLM.Model)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AGENT_IDLE_TIMEOUT", "not-a-number")
	t.Setenv("VIDEO_FALLBACK_DELAY", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RTC.IdleTimeout != 120 {
		t.Errorf("RTC.IdleTimeout = %d, want fallback 120", cfg.RTC.IdleTimeout)
	}
	if cfg.FallbackDelay != 8*time.Second {
		t.Errorf("FallbackDelay = %v, want fallback 8s", cfg.FallbackDelay)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:          "3000",
			DBPath:        "./data/test.db",
			FallbackDelay: 8 * time.Second,
			RTC:           RTCConfig{AppID: "a", RESTKey: "k", RESTSecret: "s"},
			LLM:           LLMConfig{APIKey: "g"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing app id", func(c *Config) { c.RTC.AppID = "" }, true},
		{"missing rest key", func(c *Config) { c.RTC.RESTKey = "" }, true},
		{"missing rest secret", func(c *Config) { c.RTC.RESTSecret = "" }, true},
		{"missing llm key", func(c *Config) { c.LLM.APIKey = "" }, true},
		{"missing db path", func(c *Config) { c.DBPath = "" }, true},
		{"zero fallback delay", func(c *Config) { c.FallbackDelay = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		frontendURL string
		want        bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:3000", true},
		{"https://anchor.example.com", false},
	}

	for _, tt := range tests {
		c := &Config{FrontendURL: tt.frontendURL}
		if got := c.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tt.frontendURL, got, tt.want)
		}
	}
}
