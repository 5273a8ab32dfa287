// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Counter backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	Port           string `env:"PORT"            envDefault:"8080"`
	FrontendURL    string `env:"FRONTEND_URL"`
	DBPath         string `env:"DB_PATH"         envDefault:"./data/guard.db"`
	CounterBackend string `env:"COUNTER_BACKEND" envDefault:"sqlite"`
	DebugEndpoints bool   `env:"DEBUG_ENDPOINTS" envDefault:"true"`
	LogLevel       string `env:"LOG_LEVEL"       envDefault:"info"`

	OpenAI  OpenAIConfig
	Chat    ChatConfig
	Summary SummaryConfig
}

// OpenAIConfig configures the completion backend.
type OpenAIConfig struct {
	APIKey       string `env:"OPENAI_API_KEY"`
	APIKeyFile   string `env:"OPENAI_API_KEY_FILE" envDefault:"/run/secrets/openai_api_key"`
	BaseURL      string `env:"OPENAI_BASE_URL"`
	ModelFast    string `env:"MODEL_FAST"          envDefault:"gpt-4o-mini"`
	ModelCapable string `env:"MODEL_CAPABLE"       envDefault:"gpt-4o"`
}

// ChatConfig bounds completion calls.
type ChatConfig struct {
	MaxTokens  int           `env:"CHAT_MAX_TOKENS"  envDefault:"512"`
	Timeout    time.Duration `env:"CHAT_TIMEOUT"     envDefault:"30s"`
	MaxRetries int           `env:"CHAT_MAX_RETRIES" envDefault:"0"`
	Mask       string        `env:"MASK"             envDefault:"****"`
}

// SummaryConfig configures the summary cache.
type SummaryConfig struct {
	TTL time.Duration `env:"SUMMARY_TTL" envDefault:"5m"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.OpenAI.APIKey == "" && cfg.OpenAI.APIKeyFile != "" {
		key, err := readSecret(cfg.OpenAI.APIKeyFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read api key file: %w", err)
		}
		cfg.OpenAI.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func readSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	switch c.CounterBackend {
	case BackendSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH cannot be empty")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("COUNTER_BACKEND must be %q or %q, got %q", BackendSQLite, BackendMemory, c.CounterBackend)
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required (or provide %s)", c.OpenAI.APIKeyFile)
	}
	if c.OpenAI.ModelFast == "" || c.OpenAI.ModelCapable == "" {
		return errors.New("MODEL_FAST and MODEL_CAPABLE cannot be empty")
	}
	if c.Chat.MaxTokens <= 0 {
		return errors.New("CHAT_MAX_TOKENS must be > 0")
	}
	if c.Chat.Timeout <= 0 {
		return errors.New("CHAT_TIMEOUT must be > 0")
	}
	if c.Chat.MaxRetries < 0 || c.Chat.MaxRetries > 1 {
		return errors.New("CHAT_MAX_RETRIES must be 0 or 1")
	}
	if c.Chat.Mask == "" {
		return errors.New("MASK cannot be empty")
	}
	if c.Summary.TTL <= 0 {
		return errors.New("SUMMARY_TTL must be > 0")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the configured frontend.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

// ParseLogLevel maps LOG_LEVEL to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
