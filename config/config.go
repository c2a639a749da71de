// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads glyph settings from a YAML file, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/glyph/ai"
	"github.com/poiesic/glyph/logging"
)

// DefaultPath is the YAML file read when GLYPH_CONFIG is unset.
const DefaultPath = "glyph.yaml"

// Storage backends.
const (
	StorageBadger = "badger"
	StorageSQLite = "sqlite"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig selects and locates the persistent store.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	// Path is a directory for badger and a database file for sqlite.
	// Empty selects glyph-data or glyph.db in the working directory.
	Path string `yaml:"path"`
}

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	Host       string `yaml:"host"`
	Model      string `yaml:"model"`
	EmbedModel string `yaml:"embed_model"`
}

// OpenAIConfig configures an OpenAI-compatible backend.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	EmbedModel string `yaml:"embed_model"`
}

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	EmbedModel string `yaml:"embed_model"`
}

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// AIConfig lists the providers in fallback order and their settings.
type AIConfig struct {
	Providers []string        `yaml:"providers"`
	Timeout   time.Duration   `yaml:"timeout"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

// SearchConfig tunes the similarity index.
type SearchConfig struct {
	Threshold     float64       `yaml:"threshold"`
	TopK          int           `yaml:"top_k"`
	BackfillDelay time.Duration `yaml:"backfill_delay"`
}

// JobsConfig sizes the background job pool.
type JobsConfig struct {
	PoolSize int `yaml:"pool_size"`
}

// ExecutorConfig configures the autonomous task executor.
type ExecutorConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	Workspace     string        `yaml:"workspace"`
	AllowCommands bool          `yaml:"allow_commands"`
	StepTimeout   time.Duration `yaml:"step_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	AI       AIConfig       `yaml:"ai"`
	Search   SearchConfig   `yaml:"search"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Executor ExecutorConfig `yaml:"executor"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Server:  ServerConfig{Addr: ":3005"},
		Storage: StorageConfig{Backend: StorageBadger},
		AI: AIConfig{
			Providers: aiDefaults.Providers,
			Timeout:   aiDefaults.CallTimeout,
			Ollama: OllamaConfig{
				Host:       aiDefaults.OllamaHost,
				Model:      aiDefaults.OllamaModel,
				EmbedModel: aiDefaults.OllamaEmbedModel,
			},
			OpenAI: OpenAIConfig{
				BaseURL:    aiDefaults.OpenAIBaseURL,
				Model:      aiDefaults.OpenAIModel,
				EmbedModel: aiDefaults.OpenAIEmbedModel,
			},
			Gemini: GeminiConfig{
				Model:      aiDefaults.GeminiModel,
				EmbedModel: aiDefaults.GeminiEmbedModel,
			},
			Anthropic: AnthropicConfig{Model: aiDefaults.AnthropicModel},
		},
		Search: SearchConfig{
			Threshold: 0.3,
			TopK:      5,
		},
		Jobs: JobsConfig{PoolSize: 4},
		Executor: ExecutorConfig{
			Enabled:     true,
			Interval:    5 * time.Second,
			Workspace:   "workspace",
			StepTimeout: 2 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration.
//
// Variables from a .env file in the working directory are loaded first
// without overriding the environment. The YAML file at path (or
// GLYPH_CONFIG, or DefaultPath when both are empty) is applied over the
// defaults; a missing file is not an error. Environment variables win
// over both. The result is validated.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = getEnv("GLYPH_CONFIG", DefaultPath)
	}

	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		if strings.Contains(port, ":") {
			c.Server.Addr = port
		} else {
			c.Server.Addr = ":" + port
		}
	}

	c.Storage.Backend = getEnv("GLYPH_STORAGE", c.Storage.Backend)
	c.Storage.Path = getEnv("GLYPH_DATA_PATH", c.Storage.Path)

	if providers := os.Getenv("GLYPH_PROVIDERS"); providers != "" {
		c.AI.Providers = strings.Split(providers, ",")
	}
	collect(envDuration("GLYPH_PROVIDER_TIMEOUT", &c.AI.Timeout))
	c.AI.Ollama.Host = getEnv("OLLAMA_HOST", c.AI.Ollama.Host)
	c.AI.Ollama.Model = getEnv("OLLAMA_MODEL", c.AI.Ollama.Model)
	c.AI.Ollama.EmbedModel = getEnv("OLLAMA_EMBED_MODEL", c.AI.Ollama.EmbedModel)
	c.AI.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.AI.OpenAI.APIKey)
	c.AI.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.AI.OpenAI.BaseURL)
	c.AI.OpenAI.Model = getEnv("OPENAI_MODEL", c.AI.OpenAI.Model)
	c.AI.OpenAI.EmbedModel = getEnv("OPENAI_EMBED_MODEL", c.AI.OpenAI.EmbedModel)
	c.AI.Gemini.APIKey = getEnv("GEMINI_API_KEY", getEnv("GOOGLE_GEMINI_API_KEY", c.AI.Gemini.APIKey))
	c.AI.Gemini.Model = getEnv("GEMINI_MODEL", c.AI.Gemini.Model)
	c.AI.Gemini.EmbedModel = getEnv("GEMINI_EMBED_MODEL", c.AI.Gemini.EmbedModel)
	c.AI.Anthropic.APIKey = getEnv("ANTHROPIC_API_KEY", c.AI.Anthropic.APIKey)
	c.AI.Anthropic.Model = getEnv("ANTHROPIC_MODEL", c.AI.Anthropic.Model)

	collect(envFloat("GLYPH_SEARCH_THRESHOLD", &c.Search.Threshold))
	collect(envInt("GLYPH_SEARCH_TOP_K", &c.Search.TopK))
	collect(envDuration("GLYPH_BACKFILL_DELAY", &c.Search.BackfillDelay))

	collect(envInt("GLYPH_JOB_WORKERS", &c.Jobs.PoolSize))

	collect(envBool("GLYPH_EXECUTOR", &c.Executor.Enabled))
	collect(envDuration("GLYPH_EXECUTOR_INTERVAL", &c.Executor.Interval))
	c.Executor.Workspace = getEnv("GLYPH_WORKSPACE", c.Executor.Workspace)
	collect(envBool("GLYPH_ALLOW_COMMANDS", &c.Executor.AllowCommands))
	collect(envDuration("GLYPH_STEP_TIMEOUT", &c.Executor.StepTimeout))

	c.Log.Level = getEnv("GLYPH_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("GLYPH_LOG_FILE", c.Log.File)

	return errors.Join(errs...)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("config: server address is required")
	}
	switch c.Storage.Backend {
	case StorageBadger, StorageSQLite:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Search.Threshold < -1 || c.Search.Threshold >= 1 {
		return fmt.Errorf("config: search threshold %v must be in [-1, 1)", c.Search.Threshold)
	}
	if c.Search.TopK < 1 {
		return errors.New("config: search top_k must be at least 1")
	}
	if c.Search.BackfillDelay < 0 {
		return errors.New("config: backfill delay must not be negative")
	}
	if c.Jobs.PoolSize < 1 {
		return errors.New("config: jobs pool_size must be at least 1")
	}
	if c.Executor.Interval <= 0 {
		return errors.New("config: executor interval must be positive")
	}
	if c.Executor.StepTimeout <= 0 {
		return errors.New("config: executor step_timeout must be positive")
	}
	if c.Executor.Workspace == "" {
		return errors.New("config: executor workspace is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return c.ProviderConfig().Validate()
}

// StoragePath returns the configured storage location or the backend default.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	if c.Storage.Backend == StorageSQLite {
		return "glyph.db"
	}
	return "glyph-data"
}

// ProviderConfig converts the AI section to an ai.Config.
func (c *Config) ProviderConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithProviders(append([]string(nil), c.AI.Providers...)...),
		ai.WithOllama(c.AI.Ollama.Host, c.AI.Ollama.Model, c.AI.Ollama.EmbedModel),
		ai.WithOpenAI(c.AI.OpenAI.APIKey, c.AI.OpenAI.BaseURL, c.AI.OpenAI.Model, c.AI.OpenAI.EmbedModel),
		ai.WithGemini(c.AI.Gemini.APIKey, c.AI.Gemini.Model, c.AI.Gemini.EmbedModel),
		ai.WithAnthropic(c.AI.Anthropic.APIKey, c.AI.Anthropic.Model),
		ai.WithProviderTimeout(c.AI.Timeout),
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envInt(key string, dst *int) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

// envDuration accepts Go durations ("90s") or a bare number of seconds.
func envDuration(key string, dst *time.Duration) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	if secs, err := strconv.Atoi(val); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
