package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Provider ProviderConfig `mapstructure:"provider"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Sparks   SparksConfig   `mapstructure:"sparks"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig stores HTTP listener details.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig stores database connection details.
type DatabaseConfig struct {
	Path string `mapstructure:"path"` // Path to the embedded libsql .db file
}

// ProviderConfig stores the model backend endpoint. Any OpenAI-compatible
// chat completions server works.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// ChatConfig stores orchestration policy for the conversation loop.
type ChatConfig struct {
	DefaultModel    string        `mapstructure:"default_model"`    // Model used when the request names none
	MaxToolRounds   int           `mapstructure:"max_tool_rounds"`  // Maximum model/tool round trips per turn
	ToolTimeout     time.Duration `mapstructure:"tool_timeout"`     // Per-tool-call timeout
	ModelTimeout    time.Duration `mapstructure:"model_timeout"`    // Per-model-call timeout
	ToolConcurrency int           `mapstructure:"tool_concurrency"` // Max concurrent tool executions in one round
	HistoryWindow   int           `mapstructure:"history_window"`   // Last-k messages loaded into the prompt
	EnableTracing   bool          `mapstructure:"enable_tracing"`   // Enable structured span logging
}

// SparksConfig stores credit grant amounts and the claim timezone.
type SparksConfig struct {
	DailyGrant         int64  `mapstructure:"daily_grant"`          // Daily claim amount for non-verified users
	VerifiedDailyGrant int64  `mapstructure:"verified_daily_grant"` // Daily claim amount for verified users
	InitialBalance     int64  `mapstructure:"initial_balance"`      // Balance seeded for first-seen users
	ClaimTimezone      string `mapstructure:"claim_timezone"`       // IANA zone the claim day is computed in
}

// LoggingConfig stores logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sparkchat")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("database.path", "sparkchat.db")

	v.SetDefault("provider.base_url", "http://localhost:8081/v1")

	v.SetDefault("chat.default_model", "claude-haiku")
	v.SetDefault("chat.max_tool_rounds", 5)
	v.SetDefault("chat.tool_timeout", "30s")
	v.SetDefault("chat.model_timeout", "120s")
	v.SetDefault("chat.tool_concurrency", 4)
	v.SetDefault("chat.history_window", 40)
	v.SetDefault("chat.enable_tracing", true)

	v.SetDefault("sparks.daily_grant", 50)
	v.SetDefault("sparks.verified_daily_grant", 200)
	v.SetDefault("sparks.initial_balance", 100)
	v.SetDefault("sparks.claim_timezone", "UTC")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	v.SetEnvPrefix("SPARKCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that policy values are usable.
func (c *Config) Validate() error {
	if c.Chat.MaxToolRounds < 1 {
		return fmt.Errorf("chat.max_tool_rounds must be at least 1, got %d", c.Chat.MaxToolRounds)
	}
	if c.Chat.ToolConcurrency < 1 {
		return fmt.Errorf("chat.tool_concurrency must be at least 1, got %d", c.Chat.ToolConcurrency)
	}
	if c.Sparks.DailyGrant < 0 || c.Sparks.VerifiedDailyGrant < 0 || c.Sparks.InitialBalance < 0 {
		return fmt.Errorf("sparks grant amounts must be non-negative")
	}
	if _, err := time.LoadLocation(c.Sparks.ClaimTimezone); err != nil {
		return fmt.Errorf("invalid sparks.claim_timezone %q: %w", c.Sparks.ClaimTimezone, err)
	}
	return nil
}
