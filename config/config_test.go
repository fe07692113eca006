package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadModels_ParsesYAMLAndResolvesAPIKeyFromEnv(t *testing.T) {
	t.Setenv("TEST_GPT4O_KEY", "sk-test-123")

	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	yamlContent := `
models:
  gpt-4o:
    provider: openai
    endpoint: https://api.openai.com
    api_key_env: TEST_GPT4O_KEY
    model_name: gpt-4o
    max_requests_per_minute: 500
    max_tokens_per_minute: 150000
    batch_size: 8
    batch_timeout_ms: 50
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	models, err := LoadModels(path)
	require.NoError(t, err)
	require.Contains(t, models, "gpt-4o")

	cfg := models["gpt-4o"]
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "sk-test-123", cfg.APIKey)
	assert.Equal(t, 500, cfg.MaxRequestsPerMinute)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 50*time.Millisecond, cfg.BatchTimeout)
}

func TestLoadModels_AppliesDefaultsWhenOmitted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  bare:\n    provider: openai\n"), 0o644))

	models, err := LoadModels(path)
	require.NoError(t, err)

	cfg := models["bare"]
	assert.Greater(t, cfg.BatchSize, 0)
	assert.Greater(t, cfg.BatchTimeout, time.Duration(0))
}

func TestLoadModels_MissingFileErrors(t *testing.T) {
	_, err := LoadModels("/nonexistent/path/models.yaml")
	assert.Error(t, err)
}

func TestLoadPassthrough_ReadsDocumentedEnvVars(t *testing.T) {
	t.Setenv("STORAGE_BASE_PATH", "/data/docs")
	t.Setenv("STORAGE_CACHE_PATH", "/data/cache")

	p, err := LoadPassthrough()
	require.NoError(t, err)
	assert.Equal(t, "/data/docs", p.StorageBasePath)
	assert.Equal(t, "/data/cache", p.StorageCachePath)
}
