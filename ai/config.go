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


package ai

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backend names accepted in Config.Providers.
const (
	BackendOllama    = "ollama"
	BackendOpenAI    = "openai"
	BackendGemini    = "gemini"
	BackendAnthropic = "anthropic"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Providers lists backends in fallback order.
	// Default: ollama, gemini
	Providers []string

	// OllamaHost is the base URL of the Ollama server.
	// Example: "http://localhost:11434"
	OllamaHost       string
	OllamaModel      string
	OllamaEmbedModel string

	// OpenAIBaseURL points at any OpenAI-compatible API.
	// Example: "https://api.openai.com/v1"
	OpenAIBaseURL    string
	OpenAIKey        string
	OpenAIModel      string
	OpenAIEmbedModel string

	GeminiKey        string
	GeminiModel      string
	GeminiEmbedModel string

	AnthropicKey   string
	AnthropicModel string

	// CallTimeout bounds each individual provider call.
	// Default: 60s
	CallTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProviders sets the fallback order.
func WithProviders(names ...string) ConfigOption {
	return func(c *Config) {
		c.Providers = names
	}
}

// WithOllama configures the Ollama backend. Empty values keep defaults.
func WithOllama(host, model, embedModel string) ConfigOption {
	return func(c *Config) {
		setIf(&c.OllamaHost, host)
		setIf(&c.OllamaModel, model)
		setIf(&c.OllamaEmbedModel, embedModel)
	}
}

// WithOpenAI configures an OpenAI-compatible backend. Empty values keep defaults.
func WithOpenAI(key, baseURL, model, embedModel string) ConfigOption {
	return func(c *Config) {
		setIf(&c.OpenAIKey, key)
		setIf(&c.OpenAIBaseURL, baseURL)
		setIf(&c.OpenAIModel, model)
		setIf(&c.OpenAIEmbedModel, embedModel)
	}
}

// WithGemini configures the Gemini backend. Empty values keep defaults.
func WithGemini(key, model, embedModel string) ConfigOption {
	return func(c *Config) {
		setIf(&c.GeminiKey, key)
		setIf(&c.GeminiModel, model)
		setIf(&c.GeminiEmbedModel, embedModel)
	}
}

// WithAnthropic configures the Anthropic backend. Empty values keep defaults.
func WithAnthropic(key, model string) ConfigOption {
	return func(c *Config) {
		setIf(&c.AnthropicKey, key)
		setIf(&c.AnthropicModel, model)
	}
}

// WithProviderTimeout sets the per-call timeout.
func WithProviderTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.CallTimeout = d
	}
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// DefaultConfig returns a Config that prefers a local Ollama server and
// falls back to Gemini when a key is present.
func DefaultConfig() *Config {
	return &Config{
		Providers:        []string{BackendOllama, BackendGemini},
		OllamaHost:       "http://localhost:11434",
		OllamaModel:      "llama3",
		OllamaEmbedModel: "nomic-embed-text",
		OpenAIBaseURL:    "https://api.openai.com/v1",
		OpenAIModel:      "gpt-4o-mini",
		OpenAIEmbedModel: "text-embedding-3-small",
		GeminiModel:      "gemini-1.5-flash",
		GeminiEmbedModel: "text-embedding-004",
		AnthropicModel:   "claude-3-5-haiku-latest",
		CallTimeout:      DefaultCallTimeout,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithProviders("ollama", "openai"),
//	    WithOpenAI(os.Getenv("OPENAI_API_KEY"), "", "", ""),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// Provider names are lower-cased and de-duplicated, the Ollama host loses
// any trailing slash and the OpenAI base URL gains the /v1 suffix.
func (c *Config) Normalize() {
	seen := make(map[string]bool, len(c.Providers))
	names := make([]string, 0, len(c.Providers))
	for _, n := range c.Providers {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	c.Providers = names

	c.OllamaHost = strings.TrimSuffix(c.OllamaHost, "/")
	if c.OpenAIBaseURL != "" && !strings.HasSuffix(c.OpenAIBaseURL, "/v1") {
		c.OpenAIBaseURL = strings.TrimSuffix(c.OpenAIBaseURL, "/") + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if len(c.Providers) == 0 {
		return errors.New("ai config: at least one provider is required")
	}
	for _, n := range c.Providers {
		switch n {
		case BackendOllama, BackendOpenAI, BackendGemini, BackendAnthropic:
		default:
			return fmt.Errorf("ai config: unknown provider %q", n)
		}
	}
	if c.CallTimeout <= 0 {
		return errors.New("ai config: CallTimeout must be positive")
	}
	return nil
}

// Configured reports whether backend has the credentials it needs.
// Ollama only needs a host; the hosted backends need an API key.
func (c *Config) Configured(backend string) bool {
	switch backend {
	case BackendOllama:
		return c.OllamaHost != ""
	case BackendOpenAI:
		return c.OpenAIKey != ""
	case BackendGemini:
		return c.GeminiKey != ""
	case BackendAnthropic:
		return c.AnthropicKey != ""
	}
	return false
}
