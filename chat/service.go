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


// Package chat answers questions with retrieval-augmented generation: the
// most similar documents are retrieved, formatted as cited context and sent
// to the language model together with the conversation history.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/poiesic/glyph/ai"
	"github.com/poiesic/glyph/core"
)

// DefaultTopK is the number of documents retrieved per question.
const DefaultTopK = 5

var (
	// ErrEmptyQuery is returned when the question is blank.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrInvalidRole is returned when a history message has an unknown role.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")
)

// Retriever finds the documents most similar to a query.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]*core.SearchResult, error)
}

// Source is a document the answer was grounded on.
type Source struct {
	ID       core.ID `json:"id"`
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
}

// Answer is the model's reply and the sources retrieved for it.
type Answer struct {
	Text    string   `json:"response"`
	Sources []Source `json:"sources"`
}

// Service answers questions against the document index.
type Service struct {
	retriever Retriever
	provider  ai.Provider
	topK      int
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithTopK sets how many documents are retrieved. Default is 5.
func WithTopK(k int) Option {
	return func(s *Service) error {
		if k < 1 {
			return fmt.Errorf("top-k must be positive, got %d", k)
		}
		s.topK = k
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a chat service.
func NewService(retriever Retriever, provider ai.Provider, opts ...Option) (*Service, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Service{
		retriever: retriever,
		provider:  provider,
		topK:      DefaultTopK,
		logger:    slog.Default().With("component", "chat"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Answer retrieves context for query and asks the model to answer it.
// Nothing partial is returned: a retrieval or generation failure is an error.
func (s *Service) Answer(ctx context.Context, query string, history []ai.Message) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	normalized, err := NormalizeHistory(history)
	if err != nil {
		return nil, err
	}

	results, err := s.retriever.Search(ctx, query, s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	messages := make([]ai.Message, 0, len(normalized)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: SystemPrompt(BuildContext(results))})
	messages = append(messages, normalized...)
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: query})

	text, err := s.provider.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{ID: r.Document.ID, Filename: r.Document.Filename(), Score: r.Score}
	}

	s.logger.Debug("question answered", "sources", len(sources), "history", len(normalized))
	return &Answer{Text: text, Sources: sources}, nil
}

// BuildContext formats retrieved documents as "[Source: name]" blocks
// separated by blank lines. Documents without a filename use their ID.
func BuildContext(results []*core.SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		name := r.Document.Filename()
		if name == "" {
			name = strconv.FormatUint(uint64(r.Document.ID), 10)
		}
		blocks = append(blocks, "[Source: "+name+"]\n"+r.Document.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// SystemPrompt wraps the retrieved context in the assistant instructions.
func SystemPrompt(context string) string {
	if context == "" {
		context = "(no matching documents)"
	}
	return `You are an intelligent assistant with access to the user's knowledge base.
Use the following context to answer the user's question.
If the answer is not in the context, say so, but you can use your general knowledge to help if appropriate.
Always cite your sources using [Source: filename].

Context:
` + context
}

// NormalizeRole maps the role spellings used by different clients onto the
// ai package roles.
func NormalizeRole(role string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "human":
		return ai.RoleUser, nil
	case "assistant", "ai", "model":
		return ai.RoleAssistant, nil
	case "system":
		return ai.RoleSystem, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
}

// NormalizeHistory returns a copy of history with normalized roles.
func NormalizeHistory(history []ai.Message) ([]ai.Message, error) {
	out := make([]ai.Message, len(history))
	for i, m := range history {
		role, err := NormalizeRole(m.Role)
		if err != nil {
			return nil, fmt.Errorf("history message %d: %w", i, err)
		}
		out[i] = ai.Message{Role: role, Content: m.Content}
	}
	return out, nil
}
