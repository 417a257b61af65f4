package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Console)
	assert.True(t, cfg.Logging.Redaction)
	assert.Equal(t, 5000, cfg.Database.BusyTimeoutMs)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, 1024, cfg.Model.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Model.Temperature, 0.001)
	assert.Equal(t, "Compere", cfg.Agent.Label)
	assert.Equal(t, 100, cfg.Agent.HistoryLimit)
	assert.Equal(t, 10000, cfg.Agent.ContextCap)
	assert.Equal(t, 3, cfg.Agent.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Agent.RetryDelay)
	assert.Equal(t, 8721, cfg.Server.Port)
	assert.Equal(t, 20000, cfg.Server.InstructionMaxLen)
	assert.Equal(t, 24*time.Hour, cfg.Server.SessionKeyTTL)
	assert.True(t, cfg.Maintenance.Enabled)
	assert.Equal(t, "@every 1h", cfg.Maintenance.Schedule)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Model.APIKey = "sk-test123"
		return cfg
	}

	t.Run("valid config", func(t *testing.T) {
		err := valid().Validate()
		assert.NoError(t, err)
	})

	t.Run("valid anthropic provider", func(t *testing.T) {
		cfg := valid()
		cfg.Model.Provider = "anthropic"
		cfg.Model.Name = "claude-sonnet-4-5"

		err := cfg.Validate()
		assert.NoError(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := valid()
		cfg.Model.Provider = "llamafarm"

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "provider")
	})

	t.Run("missing API key", func(t *testing.T) {
		cfg := valid()
		cfg.Model.APIKey = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "api_key")
	})

	t.Run("missing model name", func(t *testing.T) {
		cfg := valid()
		cfg.Model.Name = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "model name")
	})

	t.Run("temperature out of range", func(t *testing.T) {
		cfg := valid()
		cfg.Model.Temperature = 3.5

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "temperature")
	})

	t.Run("missing agent label", func(t *testing.T) {
		cfg := valid()
		cfg.Agent.Label = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "label")
	})

	t.Run("non-positive history limit", func(t *testing.T) {
		cfg := valid()
		cfg.Agent.HistoryLimit = 0

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "history_limit")
	})

	t.Run("non-positive context cap", func(t *testing.T) {
		cfg := valid()
		cfg.Agent.ContextCap = -1

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "context_cap")
	})

	t.Run("non-positive retry attempts", func(t *testing.T) {
		cfg := valid()
		cfg.Agent.RetryAttempts = 0

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "retry_attempts")
	})

	t.Run("invalid port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 70000

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "port")
	})

	t.Run("maintenance enabled without schedule", func(t *testing.T) {
		cfg := valid()
		cfg.Maintenance.Schedule = ""

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "schedule")
	})

	t.Run("maintenance disabled allows empty schedule", func(t *testing.T) {
		cfg := valid()
		cfg.Maintenance.Enabled = false
		cfg.Maintenance.Schedule = ""

		err := cfg.Validate()
		assert.NoError(t, err)
	})
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	s := cfg.String()

	assert.Contains(t, s, "\"agent\"")
	assert.Contains(t, s, "\"Compere\"")
	assert.Contains(t, s, "\"maintenance\"")
}
