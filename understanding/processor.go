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


// Package understanding enriches stored documents with a summary and tags
// produced by the language model chain.
package understanding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/glyph/ai"
	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/storage"
)

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")
)

// Processor summarizes and tags documents.
type Processor struct {
	repo     storage.DocumentRepository
	provider ai.Provider
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithClock overrides the time source used for processedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		p.now = now
		return nil
	}
}

// NewProcessor creates a new understanding processor.
func NewProcessor(repo storage.DocumentRepository, provider ai.Provider, opts ...Option) (*Processor, error) {
	if repo == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	p := &Processor{
		repo:     repo,
		provider: provider,
		now:      time.Now,
		logger:   slog.Default().With("component", "understanding"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ProcessDocument summarizes and tags the document identified by id and
// merges summary, tags and processedAt into its metadata. Nothing is written
// unless both calls succeed. Running it again overwrites the same keys.
func (p *Processor) ProcessDocument(ctx context.Context, id core.ID) error {
	doc, err := p.repo.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load document %d: %w", id, err)
	}

	summary, err := p.provider.Summarize(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("failed to summarize document %d: %w", id, err)
	}

	tags, err := p.provider.GenerateTags(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("failed to tag document %d: %w", id, err)
	}
	if tags == nil {
		tags = []string{}
	}

	_, err = p.repo.MergeMetadata(ctx, id, core.Metadata{
		core.MetaSummary:     summary,
		core.MetaTags:        tags,
		core.MetaProcessedAt: p.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to store understanding for document %d: %w", id, err)
	}

	p.logger.Debug("document understood", "document_id", id, "filename", doc.Filename(), "tags", len(tags))
	return nil
}
