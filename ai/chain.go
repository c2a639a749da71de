package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultCallTimeout bounds every single provider call made by a Chain.
const DefaultCallTimeout = 60 * time.Second

const configureHint = "set OLLAMA_HOST, OPENAI_API_KEY or GEMINI_API_KEY"

// Chain is a Provider that tries an ordered list of providers and returns
// the first success. Every attempt runs under its own timeout.
type Chain struct {
	providers   []Provider
	callTimeout time.Duration
	logger      *slog.Logger
}

var _ Provider = (*Chain)(nil)

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithCallTimeout sets the per-attempt timeout.
func WithCallTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChain creates a Chain over providers, tried in the given order.
func NewChain(providers []Provider, opts ...ChainOption) *Chain {
	c := &Chain{
		providers:   append([]Provider(nil), providers...),
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default().With("component", "ai-chain"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns "chain".
func (c *Chain) Name() string {
	return "chain"
}

// Providers returns the configured providers in order.
func (c *Chain) Providers() []Provider {
	return append([]Provider(nil), c.providers...)
}

// Info describes every configured provider that can describe itself.
func (c *Chain) Info() []ProviderInfo {
	infos := make([]ProviderInfo, 0, len(c.providers))
	for _, p := range c.providers {
		if d, ok := p.(Describer); ok {
			infos = append(infos, d.Info())
		} else {
			infos = append(infos, ProviderInfo{Name: p.Name()})
		}
	}
	return infos
}

func (c *Chain) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return callChain(ctx, c, CapabilityGenerate, func(ctx context.Context, p Provider) (string, error) {
		return p.GenerateContent(ctx, prompt)
	})
}

func (c *Chain) Chat(ctx context.Context, messages []Message) (string, error) {
	return callChain(ctx, c, CapabilityChat, func(ctx context.Context, p Provider) (string, error) {
		return p.Chat(ctx, messages)
	})
}

func (c *Chain) Summarize(ctx context.Context, text string) (string, error) {
	return callChain(ctx, c, CapabilitySummarize, func(ctx context.Context, p Provider) (string, error) {
		return p.Summarize(ctx, text)
	})
}

func (c *Chain) GenerateTags(ctx context.Context, text string) ([]string, error) {
	return callChain(ctx, c, CapabilityTags, func(ctx context.Context, p Provider) ([]string, error) {
		return p.GenerateTags(ctx, text)
	})
}

func (c *Chain) Embed(ctx context.Context, text string) ([]float32, error) {
	return callChain(ctx, c, CapabilityEmbed, func(ctx context.Context, p Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// callChain runs fn against each provider in order until one succeeds.
// A cancelled parent context stops the chain and its error is returned as is.
func callChain[T any](ctx context.Context, c *Chain, capability Capability, fn func(context.Context, Provider) (T, error)) (T, error) {
	var zero T

	if len(c.providers) == 0 {
		return zero, &NoProviderError{
			Capability: capability,
			Hint:       fmt.Sprintf("no %s provider configured: %s", capability, configureHint),
		}
	}

	var attempts []ProviderFailure
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		result, err := fn(callCtx, p)
		cancel()
		if err == nil {
			c.logger.Debug("provider call succeeded",
				"capability", capability,
				"provider", p.Name(),
				"duration", time.Since(start))
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		c.logger.Warn("provider call failed, trying next",
			"capability", capability,
			"provider", p.Name(),
			"error", err)
		attempts = append(attempts, ProviderFailure{Provider: p.Name(), Err: err})
	}

	return zero, &NoProviderError{
		Capability: capability,
		Attempts:   attempts,
		Hint:       fmt.Sprintf("all %s providers failed", capability),
	}
}
