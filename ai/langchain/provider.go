package langchain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/glyph/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
)

// Provider adapts a langchaingo model and embedder to ai.Provider.
type Provider struct {
	info     ai.ProviderInfo
	llm      llms.Model
	embedder embeddings.Embedder
	closer   func() error
	logger   *slog.Logger
}

var (
	_ ai.Provider  = (*Provider)(nil)
	_ ai.Describer = (*Provider)(nil)
)

// New wraps llm and embedder as an ai.Provider. embedder may be nil, in
// which case Embed returns ai.ErrUnsupported.
func New(info ai.ProviderInfo, llm llms.Model, embedder embeddings.Embedder) *Provider {
	return &Provider{
		info:     info,
		llm:      llm,
		embedder: embedder,
		logger:   slog.Default().With("component", info.Name+"-provider"),
	}
}

// Name returns the backend name.
func (p *Provider) Name() string {
	return p.info.Name
}

// Info reports the configured models.
func (p *Provider) Info() ai.ProviderInfo {
	return p.info
}

// Close releases client resources held by the backend.
func (p *Provider) Close() error {
	if p.closer != nil {
		return p.closer()
	}
	return nil
}

// GenerateContent completes a single prompt.
func (p *Provider) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return p.generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
}

// Chat sends the conversation to the model.
func (p *Provider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role, err := chatRole(m.Role)
		if err != nil {
			return "", err
		}
		content = append(content, llms.TextParts(role, m.Content))
	}
	return p.generate(ctx, content)
}

// Summarize asks the model for a concise summary.
func (p *Provider) Summarize(ctx context.Context, text string) (string, error) {
	return p.GenerateContent(ctx, ai.SummarizePrompt(text))
}

// GenerateTags asks the model for a comma-separated tag list.
func (p *Provider) GenerateTags(ctx context.Context, text string) ([]string, error) {
	response, err := p.GenerateContent(ctx, ai.TagsPrompt(text))
	if err != nil {
		return nil, err
	}
	return ai.ParseTags(response), nil
}

// Embed returns the embedding of text, truncated to ai.MaxInputChars.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.embedder == nil {
		return nil, fmt.Errorf("%s embeddings: %w", p.info.Name, ai.ErrUnsupported)
	}

	p.logger.Debug("generating embedding", "length", len(text))
	vec, err := p.embedder.EmbedQuery(ctx, ai.Truncate(text, ai.MaxInputChars))
	if err != nil {
		return nil, fmt.Errorf("%s embeddings: %w", p.info.Name, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%s embeddings: %w", p.info.Name, ai.ErrEmptyResponse)
	}
	return vec, nil
}

func (p *Provider) generate(ctx context.Context, content []llms.MessageContent) (string, error) {
	response, err := p.llm.GenerateContent(ctx, content)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.info.Name, err)
	}
	if len(response.Choices) < 1 {
		return "", fmt.Errorf("%s: %w", p.info.Name, ai.ErrEmptyResponse)
	}
	text := strings.TrimSpace(response.Choices[0].Content)
	if text == "" {
		return "", fmt.Errorf("%s: %w", p.info.Name, ai.ErrEmptyResponse)
	}
	return text, nil
}

func chatRole(role string) (llms.ChatMessageType, error) {
	switch role {
	case ai.RoleSystem:
		return llms.ChatMessageTypeSystem, nil
	case ai.RoleUser:
		return llms.ChatMessageTypeHuman, nil
	case ai.RoleAssistant:
		return llms.ChatMessageTypeAI, nil
	}
	return "", fmt.Errorf("unsupported chat role %q", role)
}
