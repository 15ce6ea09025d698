package app

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	keysToClear := []string{
		"HTTP_ADDR", "PUBLIC_BASE_URL", "SAMPLE_RATE", "FRAME_SIZE",
		"MAX_QUEUE_SIZE", "RECONNECT_ATTEMPTS", "RECONNECT_DELAY",
		"HEARTBEAT_INTERVAL", "CONNECT_TIMEOUT", "JWT_EXPIRY",
		"JANITOR_INTERVAL", "SESSION_STALE_AFTER",
	}
	for _, key := range keysToClear {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv failed: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.PublicBaseURL != "http://localhost:8080" {
		t.Errorf("PublicBaseURL = %q, want %q", cfg.PublicBaseURL, "http://localhost:8080")
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", cfg.SampleRate)
	}
	if cfg.FrameSize != 1024 {
		t.Errorf("FrameSize = %d, want 1024", cfg.FrameSize)
	}
	if cfg.MaxQueueSize != 20 {
		t.Errorf("MaxQueueSize = %d, want 20", cfg.MaxQueueSize)
	}
	if cfg.ReconnectAttempts != 5 {
		t.Errorf("ReconnectAttempts = %d, want 5", cfg.ReconnectAttempts)
	}
	if cfg.ReconnectDelay != time.Second {
		t.Errorf("ReconnectDelay = %v, want 1s", cfg.ReconnectDelay)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 30s", cfg.HeartbeatInterval)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want 10s", cfg.ConnectTimeout)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v, want 24h", cfg.JWTExpiry)
	}
	if cfg.JanitorInterval != 5*time.Minute {
		t.Errorf("JanitorInterval = %v, want 5m", cfg.JanitorInterval)
	}
	if cfg.SessionStaleAfter != 30*time.Minute {
		t.Errorf("SessionStaleAfter = %v, want 30m", cfg.SessionStaleAfter)
	}
}

func TestLoadConfigFromEnvCustomValues(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("PUBLIC_BASE_URL", "https://api.example.com")
	t.Setenv("SAMPLE_RATE", "48000")
	t.Setenv("FRAME_SIZE", "2048")
	t.Setenv("RECONNECT_DELAY", "500ms")
	t.Setenv("JWT_EXPIRY", "1h")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv failed: %v", err)
	}

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.PublicBaseURL != "https://api.example.com" {
		t.Errorf("PublicBaseURL = %q, want %q", cfg.PublicBaseURL, "https://api.example.com")
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.SampleRate)
	}
	if cfg.FrameSize != 2048 {
		t.Errorf("FrameSize = %d, want 2048", cfg.FrameSize)
	}
	if cfg.ReconnectDelay != 500*time.Millisecond {
		t.Errorf("ReconnectDelay = %v, want 500ms", cfg.ReconnectDelay)
	}
	if cfg.JWTExpiry != time.Hour {
		t.Errorf("JWTExpiry = %v, want 1h", cfg.JWTExpiry)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		DatabaseURL:    "postgres://localhost/asrstream",
		JWTSecret:      "secret",
		ASRUpstreamURL: "wss://asr.example.com/stream",
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }},
		{"missing upstream url", func(c *Config) { c.ASRUpstreamURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
