package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/glyph/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentIterator_Batches(t *testing.T) {
	repo := setupTestRepo(t)
	docs := seedDocuments(t, repo, 5)

	var sizes []int
	var seen []core.ID
	it := NewDocumentIterator(repo, 2)
	err := it.ForEach(context.Background(), func(batch []*core.Document) error {
		sizes = append(sizes, len(batch))
		for _, d := range batch {
			seen = append(seen, d.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	for i, d := range docs {
		assert.Equal(t, d.ID, seen[i])
	}
}

func TestDocumentIterator_StopsOnError(t *testing.T) {
	repo := setupTestRepo(t)
	seedDocuments(t, repo, 5)

	boom := errors.New("boom")
	calls := 0
	err := NewDocumentIterator(repo, 2).ForEach(context.Background(), func([]*core.Document) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDocumentIterator_Cancelled(t *testing.T) {
	repo := setupTestRepo(t)
	seedDocuments(t, repo, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewDocumentIterator(repo, 0).ForEach(ctx, func([]*core.Document) error {
		t.Fatal("fn should not be called")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
