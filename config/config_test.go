package config

import (
	"errors"
	"testing"

	"videoDigest/core"
)

func freshLoad(t *testing.T) *Config {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	return cfg
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := freshLoad(t)
	if cfg.SpeechModel != "whisper-1" {
		t.Errorf("speech model = %s", cfg.SpeechModel)
	}
	if cfg.Store != "memory" {
		t.Errorf("store = %s", cfg.Store)
	}
	if cfg.MaxHighlights != 6 {
		t.Errorf("max highlights = %d", cfg.MaxHighlights)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("max retries = %d", cfg.MaxRetries)
	}
	if cfg.WindowSeconds != 300 {
		t.Errorf("window seconds = %v", cfg.WindowSeconds)
	}
	if cfg.MaxWorkers < 1 || cfg.MaxWorkers > 4 {
		t.Errorf("max workers = %d, want 1..4", cfg.MaxWorkers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("API_KEY", "sk-test")
	t.Setenv("SUMMARY_PROVIDER", "Mock")
	t.Setenv("MAX_HIGHLIGHTS", "3")
	t.Setenv("WINDOW_SECONDS", "120.5")
	t.Setenv("MAX_RETRIES", "0")

	cfg := freshLoad(t)
	if cfg.APIKey != "sk-test" {
		t.Errorf("api key = %s", cfg.APIKey)
	}
	if cfg.SummaryProvider != "mock" {
		t.Errorf("summary provider = %s, want lowercased mock", cfg.SummaryProvider)
	}
	if cfg.MaxHighlights != 3 {
		t.Errorf("max highlights = %d", cfg.MaxHighlights)
	}
	if cfg.WindowSeconds != 120.5 {
		t.Errorf("window seconds = %v", cfg.WindowSeconds)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("max retries = %d, want 0", cfg.MaxRetries)
	}
}

func TestValidateRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown asr provider", func(c *Config) { c.ASRProvider = "sphinx" }},
		{"unknown summary provider", func(c *Config) { c.SummaryProvider = "markov" }},
		{"unknown store", func(c *Config) { c.Store = "cassandra" }},
		{"zero highlights", func(c *Config) { c.MaxHighlights = 0 }},
		{"zero timeout", func(c *Config) { c.RequestTimeoutSeconds = 0 }},
		{"zero window", func(c *Config) { c.WindowSeconds = 0 }},
		{"zero workers", func(c *Config) { c.MaxWorkers = 0 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			var cfgErr *core.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error %v is not a ConfigurationError", err)
			}
		})
	}
}

func TestHasValidAPI(t *testing.T) {
	cfg := defaults()
	if cfg.HasValidAPI() {
		t.Error("no key configured but HasValidAPI is true")
	}
	cfg.APIKey = "sk-test"
	if !cfg.HasValidAPI() {
		t.Error("key and base url present but HasValidAPI is false")
	}
	cfg.BaseURL = "   "
	if cfg.HasValidAPI() {
		t.Error("blank base url accepted")
	}
}
