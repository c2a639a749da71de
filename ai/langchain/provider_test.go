package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/glyph/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/fake"
)

func newFakeProvider(t *testing.T, responses []string, embed embeddings.EmbedderClientFunc) *Provider {
	t.Helper()
	var embedder embeddings.Embedder
	if embed != nil {
		e, err := embeddings.NewEmbedder(embed)
		require.NoError(t, err)
		embedder = e
	}
	return New(ai.ProviderInfo{Name: "fake", Model: "fake-model"}, fake.NewFakeLLM(responses), embedder)
}

func TestProvider_GenerateContent(t *testing.T) {
	p := newFakeProvider(t, []string{"  hello there \n"}, nil)

	out, err := p.GenerateContent(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
	assert.Equal(t, "fake", p.Name())
	assert.Equal(t, "fake-model", p.Info().Model)
}

func TestProvider_EmptyResponse(t *testing.T) {
	p := newFakeProvider(t, []string{"   "}, nil)

	_, err := p.GenerateContent(context.Background(), "hi")
	assert.ErrorIs(t, err, ai.ErrEmptyResponse)
}

func TestProvider_NoResponsesConfigured(t *testing.T) {
	p := newFakeProvider(t, nil, nil)

	_, err := p.Summarize(context.Background(), "text")
	assert.Error(t, err)
}

func TestProvider_GenerateTags(t *testing.T) {
	p := newFakeProvider(t, []string{"golang, databases , ,search"}, nil)

	tags, err := p.GenerateTags(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []string{"golang", "databases", "search"}, tags)
}

func TestProvider_Chat(t *testing.T) {
	p := newFakeProvider(t, []string{"answer"}, nil)

	out, err := p.Chat(context.Background(), []ai.Message{
		{Role: ai.RoleSystem, Content: "be brief"},
		{Role: ai.RoleUser, Content: "q"},
		{Role: ai.RoleAssistant, Content: "a"},
		{Role: ai.RoleUser, Content: "q2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)

	_, err = p.Chat(context.Background(), []ai.Message{{Role: "robot", Content: "x"}})
	assert.Error(t, err)
}

func TestProvider_Embed(t *testing.T) {
	var seen []string
	p := newFakeProvider(t, nil, func(ctx context.Context, texts []string) ([][]float32, error) {
		seen = append(seen, texts...)
		return [][]float32{{0.1, 0.2}}, nil
	})

	vec, err := p.Embed(context.Background(), "line one\nline two")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	require.Len(t, seen, 1)
}

func TestProvider_EmbedUnsupported(t *testing.T) {
	p := newFakeProvider(t, []string{"x"}, nil)

	_, err := p.Embed(context.Background(), "text")
	assert.True(t, errors.Is(err, ai.ErrUnsupported))
}

func TestProvider_InChain(t *testing.T) {
	broken := newFakeProvider(t, nil, nil)
	working := newFakeProvider(t, []string{"summary text"}, nil)

	chain := ai.NewChain(AsProviders([]*Provider{broken, working}))
	out, err := chain.Summarize(context.Background(), "long text")
	require.NoError(t, err)
	assert.Equal(t, "summary text", out)
}

func TestNewProviders_SkipsUnconfigured(t *testing.T) {
	cfg := ai.NewConfig(ai.WithProviders("gemini", "openai", "anthropic"))

	providers, err := NewProviders(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, providers)
}

func TestNewProviders_BuildsInOrder(t *testing.T) {
	cfg := ai.NewConfig(
		ai.WithProviders("anthropic", "ollama", "openai"),
		ai.WithAnthropic("test-key", ""),
		ai.WithOpenAI("test-key", "", "", ""),
	)

	providers, err := NewProviders(context.Background(), cfg)
	require.NoError(t, err)
	defer CloseAll(providers)

	require.Len(t, providers, 3)
	assert.Equal(t, "anthropic", providers[0].Name())
	assert.Equal(t, "ollama", providers[1].Name())
	assert.Equal(t, "openai", providers[2].Name())
	assert.Equal(t, "nomic-embed-text", providers[1].Info().EmbeddingModel)
}

func TestNewProviders_InvalidConfig(t *testing.T) {
	cfg := ai.NewConfig(ai.WithProviders("bard"))

	_, err := NewProviders(context.Background(), cfg)
	assert.Error(t, err)
}
