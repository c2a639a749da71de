package ai

import "context"

// Chat roles understood by every Provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the capability surface of a language model backend.
// Implementations must be thread-safe for concurrent use.
type Provider interface {
	// Name identifies the backend in logs and error reports, e.g. "ollama".
	Name() string

	// GenerateContent completes a single prompt.
	GenerateContent(ctx context.Context, prompt string) (string, error)

	// Chat answers the last message given the whole conversation.
	// Messages use the RoleSystem, RoleUser and RoleAssistant roles.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Summarize returns a concise summary of text.
	Summarize(ctx context.Context, text string) (string, error)

	// GenerateTags returns a short list of topical tags for text.
	GenerateTags(ctx context.Context, text string) ([]string, error)

	// Embed returns the vector embedding of text. The dimension is fixed
	// per backend and model. Backends without embeddings return ErrUnsupported.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ProviderInfo describes the models a provider is configured with.
type ProviderInfo struct {
	Name           string `json:"name"`
	Model          string `json:"model"`
	EmbeddingModel string `json:"embeddingModel,omitempty"`
}

// Describer is implemented by providers that can report their models.
type Describer interface {
	Info() ProviderInfo
}
