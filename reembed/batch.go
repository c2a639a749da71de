package reembed

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

// BatchProcessor generates and stores embeddings for batches of documents.
type BatchProcessor struct {
	repo           storage.DocumentRepository
	embedder       ai.Provider
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts per embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.DocumentRepository, embedder ai.Provider, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         slog.Default().With("component", "reembed"),
	}
}

// Process embeds each document, normalizes the vector and writes it back.
// A document whose embedding keeps failing is logged and counted in failed.
// err is non-nil only for storage failures or a cancelled context.
func (bp *BatchProcessor) Process(ctx context.Context, docs []*core.Document) (done, failed int, err error) {
	for _, doc := range docs {
		var vector []float32
		embedErr := RetryWithBackoff(ctx, bp.maxRetries, bp.retryBaseDelay, func(ctx context.Context) error {
			v, err := bp.embedder.Embed(ctx, doc.Content)
			if err != nil {
				return err
			}
			if len(v) == 0 {
				return errors.New("provider returned an empty embedding")
			}
			vector = v
			return nil
		})
		if embedErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return done, failed, ctxErr
			}
			bp.logger.Warn("failed to embed document", "document_id", doc.ID, "err", embedErr)
			failed++
			continue
		}

		vector = NormalizeVector(vector)
		if err := bp.repo.SetEmbedding(ctx, doc.ID, vector); err != nil {
			return done, failed, fmt.Errorf("failed to store embedding for document %d: %w", doc.ID, err)
		}
		doc.Embedding = vector
		done++
	}

	return done, failed, nil
}
