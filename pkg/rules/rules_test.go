package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestEngine(t *testing.T, path string) *Engine {
	t.Helper()

	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	e, err := New(Config{
		AgentLabel: "Compere",
		Path:       path,
		Logger:     logger,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		e.Stop()
	})

	return e
}

func TestDefaultRules(t *testing.T) {
	text := DefaultRules("Compere")

	assert.Contains(t, text, "You are Compere")
	assert.Contains(t, text, "[profile]")
	assert.Contains(t, text, "[memory]")
	assert.Contains(t, text, "read-only context")
}

func TestEngineWithoutFile(t *testing.T) {
	e := createTestEngine(t, "")

	assert.Equal(t, DefaultRules("Compere"), e.Current())
	assert.NoError(t, e.Stop())
}

func TestEngineLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte("Custom rules.\n"), 0o644))

	e := createTestEngine(t, path)

	assert.Equal(t, "Custom rules.", e.Current())
}

func TestEngineMissingFileServesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")

	e := createTestEngine(t, path)

	assert.Equal(t, DefaultRules("Compere"), e.Current())
}

func TestEngineReloadEmptyFileRestoresDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte("Custom rules."), 0o644))

	e := createTestEngine(t, path)
	require.Equal(t, "Custom rules.", e.Current())

	require.NoError(t, os.WriteFile(path, []byte("  \n\t"), 0o644))
	require.NoError(t, e.Reload())

	assert.Equal(t, DefaultRules("Compere"), e.Current())
}

func TestEngineHotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte("First version."), 0o644))

	e := createTestEngine(t, path)
	require.Equal(t, "First version.", e.Current())

	require.NoError(t, os.WriteFile(path, []byte("Second version."), 0o644))

	assert.Eventually(t, func() bool {
		return e.Current() == "Second version."
	}, 3*time.Second, 50*time.Millisecond)
}

func TestEngineFileCreatedAfterStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")

	e := createTestEngine(t, path)
	require.Equal(t, DefaultRules("Compere"), e.Current())

	require.NoError(t, os.WriteFile(path, []byte("Late arrival."), 0o644))

	assert.Eventually(t, func() bool {
		return e.Current() == "Late arrival."
	}, 3*time.Second, 50*time.Millisecond)
}

func TestEngineFileRemovedRestoresDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte("Custom rules."), 0o644))

	e := createTestEngine(t, path)
	require.Equal(t, "Custom rules.", e.Current())

	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		return e.Current() == DefaultRules("Compere")
	}, 3*time.Second, 50*time.Millisecond)
}

func TestEngineIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte("Custom rules."), 0o644))

	e := createTestEngine(t, path)
	require.Equal(t, "Custom rules.", e.Current())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("noise"), 0o644))

	// Give the debounce window time to elapse; the sibling write must not
	// disturb the loaded rules.
	time.Sleep(700 * time.Millisecond)
	assert.Equal(t, "Custom rules.", e.Current())
}
