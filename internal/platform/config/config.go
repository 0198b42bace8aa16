package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config holds the relay server settings.
type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8765"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	LivenessInterval time.Duration `env:"LIVENESS_INTERVAL" default:"30s"`
	CloseGrace       time.Duration `env:"CLOSE_GRACE" default:"1s"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" default:"5s"`
	SendBuffer       int           `env:"SEND_BUFFER" default:"16"`
	MaxConnections   int           `env:"MAX_CONNECTIONS" default:"10000"`

	HTTPSendCodeEnabled bool    `env:"HTTP_SEND_CODE_ENABLED" default:"true"`
	SendCodeRate        float64 `env:"SEND_CODE_RATE" default:"5"`
	SendCodeBurst       int     `env:"SEND_CODE_BURST" default:"10"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
}

// ProducerConfig holds the settings of the upstream producer process.
type ProducerConfig struct {
	RelayURL       string        `env:"RELAY_URL" default:"ws://localhost:8765/ws"`
	ProducerID     string        `env:"PRODUCER_ID"`
	ReconnectDelay time.Duration `env:"RECONNECT_DELAY" default:"5s"`
	DedupeWindow   time.Duration `env:"DEDUPE_WINDOW" default:"300s"`
	DialTimeout    time.Duration `env:"DIAL_TIMEOUT" default:"10s"`
	RedisURL       string        `env:"REDIS_URL"`
	LogLevel       string        `env:"LOG_LEVEL" default:"info"`
	LogFormat      string        `env:"LOG_FORMAT" default:"text"`
}

// IsDevelopment reports whether the relay runs outside production.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv != "production"
}

// Origins returns the configured extra WebSocket origins.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func Load() (*Config, error) {
	loadDotEnv()

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func LoadProducer() (*ProducerConfig, error) {
	loadDotEnv()

	var cfg ProducerConfig
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validateProducer(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}
}

func validate(cfg *Config) error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"LIVENESS_INTERVAL", cfg.LivenessInterval},
		{"CLOSE_GRACE", cfg.CloseGrace},
		{"SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	if cfg.CloseGrace >= cfg.ShutdownTimeout {
		return errors.New("CLOSE_GRACE must be shorter than SHUTDOWN_TIMEOUT")
	}
	if cfg.SendBuffer < 1 {
		return errors.New("SEND_BUFFER must be at least 1")
	}
	if cfg.MaxConnections < 1 {
		return errors.New("MAX_CONNECTIONS must be at least 1")
	}
	if cfg.HTTPSendCodeEnabled && (cfg.SendCodeRate <= 0 || cfg.SendCodeBurst < 1) {
		return errors.New("SEND_CODE_RATE and SEND_CODE_BURST must be positive")
	}

	return nil
}

func validateProducer(cfg *ProducerConfig) error {
	if cfg.ProducerID == "" {
		return errors.New("PRODUCER_ID is required")
	}
	if !strings.HasPrefix(cfg.RelayURL, "ws://") && !strings.HasPrefix(cfg.RelayURL, "wss://") {
		return fmt.Errorf("RELAY_URL must be a ws:// or wss:// URL, got %q", cfg.RelayURL)
	}
	if cfg.ReconnectDelay <= 0 {
		return errors.New("RECONNECT_DELAY must be positive")
	}
	if cfg.DedupeWindow <= 0 {
		return errors.New("DEDUPE_WINDOW must be positive")
	}
	if cfg.DialTimeout <= 0 {
		return errors.New("DIAL_TIMEOUT must be positive")
	}
	return nil
}
