package glyph

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/glyph/ai/mock"
	"github.com/poiesic/glyph/config"
	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/reembed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Executor.Workspace = filepath.Join(t.TempDir(), "workspace")
	cfg.Executor.Interval = 20 * time.Millisecond
	cfg.Storage.Path = filepath.Join(t.TempDir(), "data")
	return cfg
}

func wordProvider() *mock.MockProvider {
	p := mock.NewMockProvider()
	p.EmbedFunc = mock.NewVocabulary(256).Embed
	return p
}

func TestNewEngine(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		e, err := NewEngine(context.Background(), testConfig(t),
			WithInMemoryStorage(), WithProviders(mock.NewMockProvider()))
		require.NoError(t, err)
		defer e.Close()

		assert.NotNil(t, e.DocumentRepository())
		assert.NotNil(t, e.Pipeline())
		assert.NotNil(t, e.Store())
		assert.NotNil(t, e.Chat())
		assert.NotNil(t, e.Workflow())
		assert.NotNil(t, e.Executor())
		assert.NotNil(t, e.Jobs())
		assert.Len(t, e.Providers().Providers(), 1)
		assert.Nil(t, e.Logs())
	})

	t.Run("badger on disk", func(t *testing.T) {
		cfg := testConfig(t)
		e, err := NewEngine(context.Background(), cfg, WithProviders())
		require.NoError(t, err)
		require.NoError(t, e.Close())
		assert.DirExists(t, cfg.Storage.Path)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Storage.Backend = config.StorageSQLite
		cfg.Storage.Path = filepath.Join(t.TempDir(), "glyph.db")
		e, err := NewEngine(context.Background(), cfg, WithProviders())
		require.NoError(t, err)
		require.NoError(t, e.Close())
		assert.FileExists(t, cfg.Storage.Path)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		cfg := testConfig(t)
		cfg.Storage.Path = tmpFile
		e, err := NewEngine(context.Background(), cfg, WithProviders())
		assert.Error(t, err)
		assert.Nil(t, e)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Search.TopK = 0
		_, err := NewEngine(context.Background(), cfg, WithInMemoryStorage(), WithProviders())
		assert.Error(t, err)
	})
}

func TestEngine_CloseTwice(t *testing.T) {
	e, err := NewEngine(context.Background(), testConfig(t), WithInMemoryStorage(), WithProviders())
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.NoError(t, e.Close())
}

func TestEngine_IngestSearchChat(t *testing.T) {
	ctx := context.Background()
	provider := wordProvider()
	e, err := NewEngine(ctx, testConfig(t), WithInMemoryStorage(), WithProviders(provider))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Start(ctx)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("The capital of France is Paris"), 0644))

	doc, err := e.Pipeline().IngestFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, e.Jobs().Wait(ctx))

	stored, err := e.DocumentRepository().GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasEmbedding())
	assert.NotEmpty(t, stored.Metadata.String(core.MetaSummary))

	results, err := e.Store().Search(ctx, "capital of France", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, doc.ID, results[0].Document.ID)

	answer, err := e.Chat().Answer(ctx, "What is the capital of France?", nil)
	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "notes.txt", answer.Sources[0].Filename)
}

func TestEngine_StartBackfillsAndRunsTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := wordProvider()
	provider.GenerateContentFunc = func(context.Context, string) (string, error) {
		return `[{"id": 1, "description": "greet", "tool": "write_file", "arguments": {"path": "hello.txt", "content": "hi"}}]`, nil
	}

	cfg := testConfig(t)
	e, err := NewEngine(ctx, cfg, WithInMemoryStorage(), WithProviders(provider))
	require.NoError(t, err)
	defer e.Close()

	// stored before Start, without an embedding
	_, err = e.DocumentRepository().CreateDocument(ctx, &core.Document{Content: "bananas are yellow"})
	require.NoError(t, err)

	report, err := e.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Embedded)
	assert.Equal(t, 1, e.Store().Len())

	task, err := e.Workflow().CreateTask(ctx, "greet", "write a greeting", 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := e.Workflow().GetTask(ctx, task.ID)
		return err == nil && got.Status == core.TaskCompleted
	}, 5*time.Second, 20*time.Millisecond)

	data, err := os.ReadFile(filepath.Join(cfg.Executor.Workspace, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestEngine_Reembed(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Executor.Enabled = false

	e, err := NewEngine(ctx, cfg, WithInMemoryStorage(), WithProviders(wordProvider()))
	require.NoError(t, err)
	defer e.Close()

	doc, err := e.DocumentRepository().CreateDocument(ctx, &core.Document{Content: "capital of France"})
	require.NoError(t, err)
	require.NoError(t, e.DocumentRepository().SetEmbedding(ctx, doc.ID, []float32{1, 0}))

	_, err = e.Start(ctx)
	require.NoError(t, err)

	// the stale two-dimensional vector cannot match a query
	results, err := e.Store().Search(ctx, "capital of France", 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	var out bytes.Buffer
	report, err := e.Reembed(ctx, reembed.DefaultConfig(), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Embedded)

	results, err = e.Store().Search(ctx, "capital of France", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, doc.ID, results[0].Document.ID)
}
