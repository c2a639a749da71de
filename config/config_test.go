package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"GLYPH_CONFIG", "PORT", "GLYPH_STORAGE", "GLYPH_DATA_PATH", "GLYPH_PROVIDERS",
	"GLYPH_PROVIDER_TIMEOUT", "OLLAMA_HOST", "OLLAMA_MODEL", "OLLAMA_EMBED_MODEL",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "OPENAI_EMBED_MODEL",
	"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_EMBED_MODEL",
	"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "GLYPH_SEARCH_THRESHOLD", "GLYPH_SEARCH_TOP_K",
	"GLYPH_BACKFILL_DELAY", "GLYPH_JOB_WORKERS", "GLYPH_EXECUTOR", "GLYPH_EXECUTOR_INTERVAL",
	"GLYPH_WORKSPACE", "GLYPH_ALLOW_COMMANDS", "GLYPH_STEP_TIMEOUT", "GLYPH_LOG_LEVEL",
	"GLYPH_LOG_FILE",
}

// clearEnv blanks every variable Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glyph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":3005", cfg.Server.Addr)
	assert.Equal(t, StorageBadger, cfg.Storage.Backend)
	assert.Equal(t, "glyph-data", cfg.StoragePath())
	assert.Equal(t, []string{"ollama", "gemini"}, cfg.AI.Providers)
	assert.Equal(t, 0.3, cfg.Search.Threshold)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 4, cfg.Jobs.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Executor.Interval)
	assert.False(t, cfg.Executor.AllowCommands)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
server:
  addr: "127.0.0.1:8080"
storage:
  backend: sqlite
  path: /tmp/glyph-test.db
ai:
  providers: [openai]
  timeout: 30s
  openai:
    api_key: sk-file
search:
  threshold: 0.5
  top_k: 3
executor:
  allow_commands: true
  step_timeout: 10s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, StorageSQLite, cfg.Storage.Backend)
	assert.Equal(t, "/tmp/glyph-test.db", cfg.StoragePath())
	assert.Equal(t, []string{"openai"}, cfg.AI.Providers)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "sk-file", cfg.AI.OpenAI.APIKey)
	// unset keys keep their defaults
	assert.Equal(t, "gpt-4o-mini", cfg.AI.OpenAI.Model)
	assert.Equal(t, 0.5, cfg.Search.Threshold)
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.True(t, cfg.Executor.AllowCommands)
	assert.Equal(t, 10*time.Second, cfg.Executor.StepTimeout)
	assert.Equal(t, 5*time.Second, cfg.Executor.Interval)
}

func TestLoad_PathFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GLYPH_CONFIG", writeFile(t, "jobs:\n  pool_size: 9\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Jobs.PoolSize)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "search:\n  top_k: 3\nai:\n  openai:\n    api_key: sk-file\n")

	t.Setenv("PORT", "4000")
	t.Setenv("GLYPH_SEARCH_TOP_K", "8")
	t.Setenv("GLYPH_SEARCH_THRESHOLD", "0.25")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("GLYPH_PROVIDERS", "openai, Ollama")
	t.Setenv("GLYPH_PROVIDER_TIMEOUT", "45")
	t.Setenv("GLYPH_STEP_TIMEOUT", "1m")
	t.Setenv("GLYPH_ALLOW_COMMANDS", "true")
	t.Setenv("GLYPH_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Search.TopK)
	assert.Equal(t, 0.25, cfg.Search.Threshold)
	assert.Equal(t, "sk-env", cfg.AI.OpenAI.APIKey)
	assert.Equal(t, 45*time.Second, cfg.AI.Timeout)
	assert.Equal(t, time.Minute, cfg.Executor.StepTimeout)
	assert.True(t, cfg.Executor.AllowCommands)
	assert.Equal(t, "debug", cfg.Log.Level)

	aiCfg := cfg.ProviderConfig()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, []string{"openai", "ollama"}, aiCfg.Providers)
	assert.Equal(t, "sk-env", aiCfg.OpenAIKey)
}

func TestLoad_GeminiKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_GEMINI_API_KEY", "g-legacy")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "g-legacy", cfg.AI.Gemini.APIKey)

	t.Setenv("GEMINI_API_KEY", "g-new")
	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "g-new", cfg.AI.Gemini.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("bad yaml", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(writeFile(t, "server: [unclosed"))
		assert.ErrorContains(t, err, "failed to parse config")
	})

	t.Run("bad env number", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GLYPH_SEARCH_TOP_K", "many")
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorContains(t, err, "GLYPH_SEARCH_TOP_K")
	})

	t.Run("bad env duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GLYPH_EXECUTOR_INTERVAL", "soon")
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorContains(t, err, "GLYPH_EXECUTOR_INTERVAL")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"threshold too high", func(c *Config) { c.Search.Threshold = 1 }},
		{"threshold too low", func(c *Config) { c.Search.Threshold = -1.5 }},
		{"zero top k", func(c *Config) { c.Search.TopK = 0 }},
		{"negative backfill delay", func(c *Config) { c.Search.BackfillDelay = -time.Second }},
		{"zero pool", func(c *Config) { c.Jobs.PoolSize = 0 }},
		{"zero interval", func(c *Config) { c.Executor.Interval = 0 }},
		{"zero step timeout", func(c *Config) { c.Executor.StepTimeout = 0 }},
		{"no workspace", func(c *Config) { c.Executor.Workspace = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"no providers", func(c *Config) { c.AI.Providers = nil }},
		{"unknown provider", func(c *Config) { c.AI.Providers = []string{"watson"} }},
	}

	require.NoError(t, Default().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
