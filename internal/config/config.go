// Package config loads draftboard configuration from environment variables
// and an optional draftboard.yaml file.
//
// Precedence, later overrides earlier:
//  1. Built-in defaults
//  2. draftboard.yaml (working directory), when present
//  3. Environment variables
//
// Unknown variables are ignored.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	// DatabaseURL is the SQLite path or URI (e.g. draftboard.db, :memory:,
	// file:draftboard.db?cache=shared).
	DatabaseURL string `mapstructure:"database_url"`

	// Port is the HTTP listen port.
	Port int `mapstructure:"port"`

	// OpenAIAPIKey authenticates against the chat-completions endpoint.
	// Empty disables the /api/ai surface (requests fail with VALIDATION).
	OpenAIAPIKey string `mapstructure:"openai_api_key"`

	// OpenAIBaseURL is the API root of any OpenAI-compatible provider.
	OpenAIBaseURL string `mapstructure:"openai_base_url"`

	// OpenAIModel is the model name sent with each completion request.
	OpenAIModel string `mapstructure:"openai_model"`

	// Seed runs the idempotent demo seed at startup.
	Seed bool `mapstructure:"seed"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "draftboard.db")
	v.SetDefault("port", 8788)
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("seed", false)
}

// Load resolves the configuration. A missing config file is not an error;
// a malformed one is.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("draftboard")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read draftboard.yaml: %w", err)
		}
	}

	// DATABASE_URL, PORT, OPENAI_API_KEY, OPENAI_BASE_URL, OPENAI_MODEL, SEED
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: invalid port %d", cfg.Port)
	}
	return &cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
