package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "compere.json")
		loader := NewLoader(path)

		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "Compere", cfg.Agent.Label)
		assert.Equal(t, 8721, cfg.Server.Port)
	})

	t.Run("loads values from file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "compere.json")
		content := `{
			"model": {"provider": "anthropic", "name": "claude-sonnet-4-5", "api_key": "sk-ant-test"},
			"agent": {"label": "Quizmaster", "history_limit": 25},
			"server": {"port": 9100},
			"data_dir": "` + dir + `"
		}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		loader := NewLoader(path)
		cfg, err := loader.Load()
		require.NoError(t, err)

		assert.Equal(t, "anthropic", cfg.Model.Provider)
		assert.Equal(t, "claude-sonnet-4-5", cfg.Model.Name)
		assert.Equal(t, "Quizmaster", cfg.Agent.Label)
		assert.Equal(t, 25, cfg.Agent.HistoryLimit)
		assert.Equal(t, 9100, cfg.Server.Port)
		// Unset fields keep defaults
		assert.Equal(t, 10000, cfg.Agent.ContextCap)
		assert.Equal(t, 2*time.Second, cfg.Agent.RetryDelay)
	})

	t.Run("fills derived paths from data dir", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "compere.json")
		content := `{"data_dir": "` + dir + `"}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		loader := NewLoader(path)
		cfg, err := loader.Load()
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dir, "compere.log"), cfg.Logging.File)
		assert.Equal(t, filepath.Join(dir, "compere.db"), cfg.Database.Path)
	})

	t.Run("explicit paths win over derived", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "compere.json")
		content := `{
			"data_dir": "` + dir + `",
			"logging": {"file": "/var/log/compere.log"},
			"database": {"path": "/srv/compere/compere.db"}
		}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		loader := NewLoader(path)
		cfg, err := loader.Load()
		require.NoError(t, err)

		assert.Equal(t, "/var/log/compere.log", cfg.Logging.File)
		assert.Equal(t, "/srv/compere/compere.db", cfg.Database.Path)
	})

	t.Run("invalid json fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "compere.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		loader := NewLoader(path)
		_, err := loader.Load()
		assert.Error(t, err)
	})

	t.Run("api key falls back to env", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "compere.json")
		t.Setenv("COMPERE_MODEL_API_KEY", "sk-env-key")

		loader := NewLoader(path)
		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "sk-env-key", cfg.Model.APIKey)
	})

	t.Run("provider env var used when prefixed var unset", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "compere.json")
		t.Setenv("COMPERE_MODEL_API_KEY", "")
		t.Setenv("OPENAI_API_KEY", "sk-openai-key")

		loader := NewLoader(path)
		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "sk-openai-key", cfg.Model.APIKey)
	})
}

func TestLoaderSave(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "compere.json")
		loader := NewLoader(path)

		cfg := DefaultConfig()
		cfg.Model.APIKey = "sk-saved"
		cfg.Agent.Label = "Emcee"
		cfg.DataDir = filepath.Dir(path)
		require.NoError(t, loader.Save(cfg))

		loaded, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "sk-saved", loaded.Model.APIKey)
		assert.Equal(t, "Emcee", loaded.Agent.Label)
	})

	t.Run("creates parent directory", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "a", "b", "compere.json")
		loader := NewLoader(path)

		cfg := DefaultConfig()
		cfg.DataDir = dir
		require.NoError(t, loader.Save(cfg))

		_, err := os.Stat(path)
		assert.NoError(t, err)
	})
}

func TestGetConfigPath(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		loader := NewLoader("/tmp/custom.json")
		assert.Equal(t, "/tmp/custom.json", loader.GetConfigPath())
	})

	t.Run("default path", func(t *testing.T) {
		loader := NewLoader("")
		path := loader.GetConfigPath()
		assert.Contains(t, path, ".compere")
		assert.Contains(t, path, "compere.json")
	})
}
