package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SentryDSN     string `env:"SENTRY_DSN"`

	// Upstream recognition service
	ASRUpstreamURL    string        `env:"ASR_UPSTREAM_URL"`
	SampleRate        int           `env:"SAMPLE_RATE" envDefault:"16000"`
	FrameSize         int           `env:"FRAME_SIZE" envDefault:"1024"`
	MaxQueueSize      int           `env:"MAX_QUEUE_SIZE" envDefault:"20"`
	ReconnectAttempts int           `env:"RECONNECT_ATTEMPTS" envDefault:"5"`
	ReconnectDelay    time.Duration `env:"RECONNECT_DELAY" envDefault:"1s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	ConnectTimeout    time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`

	// JWT Authentication
	JWTSecret string        `env:"JWT_SECRET"` // Required - no fallback for security
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	// Session completion webhook (optional)
	WebhookURL string `env:"WEBHOOK_URL"`

	// Background sweeps
	JanitorInterval   time.Duration `env:"JANITOR_INTERVAL" envDefault:"5m"`
	SessionStaleAfter time.Duration `env:"SESSION_STALE_AFTER" envDefault:"30m"`
}

// LoadConfigFromEnv parses configuration from environment variables.
// Defaults apply where a variable is unset; Validate is the caller's job
// so tests can load partial configs.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("environment variables are invalid: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.ASRUpstreamURL == "" {
		return errors.New("ASR_UPSTREAM_URL is required")
	}
	return nil
}
