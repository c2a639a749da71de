package langchain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/glyph/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewOllama creates a provider backed by an Ollama server.
// Chat and embeddings use separate models on the same host.
func NewOllama(cfg *ai.Config) (*Provider, error) {
	chat, err := ollama.New(
		ollama.WithServerURL(cfg.OllamaHost),
		ollama.WithModel(cfg.OllamaModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	embedClient, err := ollama.New(
		ollama.WithServerURL(cfg.OllamaHost),
		ollama.WithModel(cfg.OllamaEmbedModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(embedClient, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return New(ai.ProviderInfo{
		Name:           ai.BackendOllama,
		Model:          cfg.OllamaModel,
		EmbeddingModel: cfg.OllamaEmbedModel,
	}, chat, embedder), nil
}

// NewOpenAI creates a provider for an OpenAI-compatible API.
func NewOpenAI(cfg *ai.Config) (*Provider, error) {
	client, err := openai.New(
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithToken(cfg.OpenAIKey),
		openai.WithModel(cfg.OpenAIModel),
		openai.WithEmbeddingModel(cfg.OpenAIEmbedModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return New(ai.ProviderInfo{
		Name:           ai.BackendOpenAI,
		Model:          cfg.OpenAIModel,
		EmbeddingModel: cfg.OpenAIEmbedModel,
	}, client, embedder), nil
}

// NewGemini creates a provider backed by Google Gemini.
// The returned provider must be closed to release the gRPC connection.
func NewGemini(ctx context.Context, cfg *ai.Config) (*Provider, error) {
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.GeminiKey),
		googleai.WithDefaultModel(cfg.GeminiModel),
		googleai.WithDefaultEmbeddingModel(cfg.GeminiEmbedModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		client.Close()
		return nil, err
	}

	p := New(ai.ProviderInfo{
		Name:           ai.BackendGemini,
		Model:          cfg.GeminiModel,
		EmbeddingModel: cfg.GeminiEmbedModel,
	}, client, embedder)
	p.closer = client.Close
	return p, nil
}

// NewAnthropic creates a chat-only provider backed by Anthropic.
func NewAnthropic(cfg *ai.Config) (*Provider, error) {
	client, err := anthropic.New(
		anthropic.WithToken(cfg.AnthropicKey),
		anthropic.WithModel(cfg.AnthropicModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic client: %w", err)
	}

	return New(ai.ProviderInfo{
		Name:  ai.BackendAnthropic,
		Model: cfg.AnthropicModel,
	}, client, nil), nil
}

// NewProviders builds every configured backend in cfg.Providers order.
// Backends missing credentials are skipped with a log line; an empty
// result is valid and makes every chain call fail with ai.ErrNoProviderAvailable.
func NewProviders(ctx context.Context, cfg *ai.Config) ([]*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "ai")
	var providers []*Provider
	for _, name := range cfg.Providers {
		if !cfg.Configured(name) {
			logger.Info("provider not configured, skipping", "provider", name)
			continue
		}

		var (
			p   *Provider
			err error
		)
		switch name {
		case ai.BackendOllama:
			p, err = NewOllama(cfg)
		case ai.BackendOpenAI:
			p, err = NewOpenAI(cfg)
		case ai.BackendGemini:
			p, err = NewGemini(ctx, cfg)
		case ai.BackendAnthropic:
			p, err = NewAnthropic(cfg)
		}
		if err != nil {
			CloseAll(providers)
			return nil, err
		}
		logger.Info("provider enabled", "provider", name, "model", p.info.Model)
		providers = append(providers, p)
	}
	return providers, nil
}

// AsProviders converts concrete providers to the ai.Provider interface.
func AsProviders(ps []*Provider) []ai.Provider {
	out := make([]ai.Provider, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

// CloseAll closes every provider, ignoring errors.
func CloseAll(ps []*Provider) {
	for _, p := range ps {
		_ = p.Close()
	}
}
