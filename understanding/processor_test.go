package understanding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/glyph/ai"
	"github.com/poiesic/glyph/ai/mock"
	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/storage"
	"github.com/poiesic/glyph/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) storage.DocumentRepository {
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

var fixedTime = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func TestNewProcessor(t *testing.T) {
	repo := newTestRepo(t)

	_, err := NewProcessor(nil, mock.NewMockProvider())
	assert.Equal(t, ErrDocumentRepositoryRequired, err)

	_, err = NewProcessor(repo, nil)
	assert.Equal(t, ErrAIProviderRequired, err)

	_, err = NewProcessor(repo, mock.NewMockProvider(), WithClock(nil))
	assert.Error(t, err)
}

func TestProcessDocument(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	doc, err := repo.CreateDocument(ctx, &core.Document{
		Content:  "hello world",
		Metadata: core.Metadata{core.MetaFilename: "notes.txt"},
	})
	require.NoError(t, err)
	require.NoError(t, repo.SetEmbedding(ctx, doc.ID, []float32{0.5, 0.5}))

	p, err := NewProcessor(repo, mock.NewMockProvider(), WithClock(fixedClock))
	require.NoError(t, err)
	require.NoError(t, p.ProcessDocument(ctx, doc.ID))

	got, err := repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "summary: hello world", got.Metadata.String(core.MetaSummary))
	assert.Equal(t, []any{"mock", "test"}, got.Metadata[core.MetaTags])
	assert.Equal(t, "2025-03-14T15:09:26Z", got.Metadata.String(core.MetaProcessedAt))
	assert.Equal(t, "notes.txt", got.Filename())
	assert.Equal(t, []float32{0.5, 0.5}, got.Embedding)
}

func TestProcessDocument_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	doc, err := repo.CreateDocument(ctx, &core.Document{Content: "same input"})
	require.NoError(t, err)

	p, err := NewProcessor(repo, mock.NewMockProvider(), WithClock(fixedClock))
	require.NoError(t, err)

	require.NoError(t, p.ProcessDocument(ctx, doc.ID))
	first, err := repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)

	require.NoError(t, p.ProcessDocument(ctx, doc.ID))
	second, err := repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Metadata, second.Metadata)
}

func TestProcessDocument_NotFound(t *testing.T) {
	p, err := NewProcessor(newTestRepo(t), mock.NewMockProvider())
	require.NoError(t, err)

	err = p.ProcessDocument(context.Background(), 12345)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestProcessDocument_NoPartialWrites(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("tagging offline")

	tests := []struct {
		name     string
		provider *mock.MockProvider
	}{
		{
			name: "summary fails",
			provider: &mock.MockProvider{
				SummarizeFunc: func(context.Context, string) (string, error) { return "", boom },
			},
		},
		{
			name: "tags fail",
			provider: &mock.MockProvider{
				GenerateTagsFunc: func(context.Context, string) ([]string, error) { return nil, boom },
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(t)
			doc, err := repo.CreateDocument(ctx, &core.Document{
				Content:  "text",
				Metadata: core.Metadata{core.MetaFilename: "f.txt"},
			})
			require.NoError(t, err)

			p, err := NewProcessor(repo, tt.provider)
			require.NoError(t, err)

			err = p.ProcessDocument(ctx, doc.ID)
			assert.ErrorIs(t, err, boom)

			got, err := repo.GetDocument(ctx, doc.ID)
			require.NoError(t, err)
			assert.Equal(t, core.Metadata{core.MetaFilename: "f.txt"}, got.Metadata)
		})
	}
}

func TestProcessDocument_NoProviders(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	doc, err := repo.CreateDocument(ctx, &core.Document{Content: "text"})
	require.NoError(t, err)

	p, err := NewProcessor(repo, ai.NewChain(nil))
	require.NoError(t, err)

	err = p.ProcessDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, ai.ErrNoProviderAvailable)
}
