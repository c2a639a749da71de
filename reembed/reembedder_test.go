package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/glyph/ai/mock"
	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/storage"
	"github.com/poiesic/glyph/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) storage.DocumentRepository {
	t.Helper()
	docRepo, taskRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		taskRepo.Close()
		docRepo.Close()
		backend.Close()
	})
	return docRepo
}

func seedDocuments(t *testing.T, repo storage.DocumentRepository, n int) []*core.Document {
	t.Helper()
	docs := make([]*core.Document, 0, n)
	for i := range n {
		doc, err := repo.CreateDocument(context.Background(), &core.Document{
			Content:  fmt.Sprintf("document number %d", i),
			Metadata: core.Metadata{core.MetaFilename: fmt.Sprintf("doc%d.txt", i)},
		})
		require.NoError(t, err)
		docs = append(docs, doc)
	}
	return docs
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNewReembedder_RequiresDependencies(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := NewReembedder(nil, mock.NewMockProvider(), nil, nil)
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)

	_, err = NewReembedder(repo, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	r, err := NewReembedder(repo, mock.NewMockProvider(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, r.iterator.batchSize)
}

func TestReembedder_Run(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	docs := seedDocuments(t, repo, 7)

	provider := mock.NewMockProvider()
	provider.EmbedFunc = func(_ context.Context, text string) ([]float32, error) {
		return []float32{3, 4, float32(len(text))}, nil
	}

	var out bytes.Buffer
	config := DefaultConfig()
	config.BatchSize = 3
	config.ReportInterval = 2
	r, err := NewReembedder(repo, provider, config, &out)
	require.NoError(t, err)

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, report.Total)
	assert.Equal(t, 7, report.Embedded)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 7, provider.EmbedCallCount())

	for _, d := range docs {
		stored, err := repo.GetDocument(ctx, d.ID)
		require.NoError(t, err)
		require.Len(t, stored.Embedding, 3)
		assert.InDelta(t, 1.0, vectorNorm(stored.Embedding), 1e-5)
		assert.Equal(t, d.Content, stored.Content)
	}

	assert.Contains(t, out.String(), "Starting reembedding of 7 documents (batch size: 3)")
	assert.Contains(t, out.String(), "Reembedding complete")
}

func TestReembedder_EmptyRepository(t *testing.T) {
	var out bytes.Buffer
	provider := mock.NewMockProvider()
	r, err := NewReembedder(setupTestRepo(t), provider, nil, &out)
	require.NoError(t, err)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Zero(t, provider.EmbedCallCount())
	assert.Contains(t, out.String(), "No documents found")
}

func TestReembedder_OnlyMissing(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	docs := seedDocuments(t, repo, 4)
	require.NoError(t, repo.SetEmbedding(ctx, docs[1].ID, []float32{1, 0}))
	require.NoError(t, repo.SetEmbedding(ctx, docs[3].ID, []float32{0, 1}))

	provider := mock.NewMockProvider()
	config := DefaultConfig()
	config.OnlyMissing = true
	r, err := NewReembedder(repo, provider, config, nil)
	require.NoError(t, err)

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Embedded)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 2, provider.EmbedCallCount())

	kept, err := repo.GetDocument(ctx, docs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, kept.Embedding)
}

func TestReembedder_FailedDocumentsAreSkipped(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	docs := seedDocuments(t, repo, 3)

	provider := mock.NewMockProvider()
	provider.EmbedFunc = func(_ context.Context, text string) ([]float32, error) {
		if strings.HasSuffix(text, " 1") {
			return nil, errors.New("model overloaded")
		}
		return []float32{1, 1}, nil
	}

	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = time.Millisecond
	r, err := NewReembedder(repo, provider, config, nil)
	require.NoError(t, err)

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Embedded)
	assert.Equal(t, 1, report.Failed)
	// two attempts for the failing document, one for each of the others
	assert.Equal(t, 4, provider.EmbedCallCount())

	failed, err := repo.GetDocument(ctx, docs[1].ID)
	require.NoError(t, err)
	assert.False(t, failed.HasEmbedding())
}

func TestReembedder_Cancelled(t *testing.T) {
	repo := setupTestRepo(t)
	seedDocuments(t, repo, 5)

	ctx, cancel := context.WithCancel(context.Background())
	provider := mock.NewMockProvider()
	provider.EmbedFunc = func(context.Context, string) ([]float32, error) {
		cancel()
		return []float32{1}, nil
	}

	config := DefaultConfig()
	config.BatchSize = 1
	r, err := NewReembedder(repo, provider, config, nil)
	require.NoError(t, err)

	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, provider.EmbedCallCount(), 5)
}
