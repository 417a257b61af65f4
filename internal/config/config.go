package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main Compere configuration
type Config struct {
	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Database
	Database DatabaseConfig `json:"database" mapstructure:"database"`

	// Model provider
	Model ModelConfig `json:"model" mapstructure:"model"`

	// Agent behavior
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// HTTP server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Store maintenance
	Maintenance MaintenanceConfig `json:"maintenance" mapstructure:"maintenance"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DatabaseConfig holds SQLite configuration
type DatabaseConfig struct {
	Path          string `json:"path" mapstructure:"path"`
	BusyTimeoutMs int    `json:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// ModelConfig holds model provider configuration
type ModelConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	BaseURL     string  `json:"base_url" mapstructure:"base_url"` // optional, OpenAI-compatible endpoints
	Name        string  `json:"name" mapstructure:"name"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
}

// AgentConfig holds conversation agent configuration
type AgentConfig struct {
	Label         string        `json:"label" mapstructure:"label"`
	HistoryLimit  int           `json:"history_limit" mapstructure:"history_limit"`
	ContextCap    int           `json:"context_cap" mapstructure:"context_cap"`
	RetryAttempts int           `json:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
	RulesFile     string        `json:"rules_file" mapstructure:"rules_file"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host              string        `json:"host" mapstructure:"host"`
	Port              int           `json:"port" mapstructure:"port"`
	InstructionMaxLen int           `json:"instruction_max_len" mapstructure:"instruction_max_len"`
	SessionKeyTTL     time.Duration `json:"session_key_ttl" mapstructure:"session_key_ttl"`
}

// MaintenanceConfig holds scheduled store maintenance configuration
type MaintenanceConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Schedule string `json:"schedule" mapstructure:"schedule"` // robfig/cron spec, e.g. "@every 1h"
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Database: DatabaseConfig{
			BusyTimeoutMs: 5000,
		},
		Model: ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Agent: AgentConfig{
			Label:         "Compere",
			HistoryLimit:  100,
			ContextCap:    10000,
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
		},
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              8721,
			InstructionMaxLen: 20000,
			SessionKeyTTL:     24 * time.Hour,
		},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Schedule: "@every 1h",
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Model.Provider != "openai" && c.Model.Provider != "anthropic" {
		return fmt.Errorf("invalid model provider %q (must be: openai, anthropic)", c.Model.Provider)
	}
	if c.Model.APIKey == "" {
		return fmt.Errorf("model api_key is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if c.Model.MaxTokens < 0 {
		return fmt.Errorf("model max_tokens cannot be negative")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model temperature must be between 0 and 2")
	}

	if c.Agent.Label == "" {
		return fmt.Errorf("agent label is required")
	}
	if c.Agent.HistoryLimit <= 0 {
		return fmt.Errorf("agent history_limit must be positive")
	}
	if c.Agent.ContextCap <= 0 {
		return fmt.Errorf("agent context_cap must be positive")
	}
	if c.Agent.RetryAttempts <= 0 {
		return fmt.Errorf("agent retry_attempts must be positive")
	}
	if c.Agent.RetryDelay < 0 {
		return fmt.Errorf("agent retry_delay cannot be negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.InstructionMaxLen <= 0 {
		return fmt.Errorf("server instruction_max_len must be positive")
	}

	if c.Maintenance.Enabled && c.Maintenance.Schedule == "" {
		return fmt.Errorf("maintenance schedule is required when maintenance is enabled")
	}

	return nil
}
