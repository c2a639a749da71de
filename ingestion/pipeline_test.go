package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/poiesic/glyph/ai/mock"
	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/jobs"
	"github.com/poiesic/glyph/search"
	"github.com/poiesic/glyph/storage"
	"github.com/poiesic/glyph/storage/badger"
	"github.com/poiesic/glyph/understanding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	repo     storage.DocumentRepository
	queue    *jobs.Queue
	store    *search.Store
	provider *mock.MockProvider
	pipeline *Pipeline
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	docRepo, taskRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)

	queue, err := jobs.NewQueue(jobs.WithPoolSize(2))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = queue.Release(5 * time.Second)
		taskRepo.Close()
		docRepo.Close()
		backend.Close()
	})

	provider := mock.NewMockProvider()
	store, err := search.NewStore(docRepo, provider)
	require.NoError(t, err)
	understander, err := understanding.NewProcessor(docRepo, provider)
	require.NoError(t, err)

	pipeline, err := NewPipeline(docRepo, queue, understander, store, opts...)
	require.NoError(t, err)

	return &testEnv{repo: docRepo, queue: queue, store: store, provider: provider, pipeline: pipeline}
}

func (e *testEnv) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.queue.Wait(ctx))
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func TestNewPipeline(t *testing.T) {
	env := newTestEnv(t)
	queue := env.queue

	_, err := NewPipeline(nil, queue, &stubUnderstander{}, &stubIndexer{})
	assert.Equal(t, ErrDocumentRepositoryRequired, err)

	_, err = NewPipeline(env.repo, nil, &stubUnderstander{}, &stubIndexer{})
	assert.Equal(t, ErrJobQueueRequired, err)

	_, err = NewPipeline(env.repo, queue, nil, &stubIndexer{})
	assert.Equal(t, ErrUnderstanderRequired, err)

	_, err = NewPipeline(env.repo, queue, &stubUnderstander{}, nil)
	assert.Equal(t, ErrIndexerRequired, err)

	_, err = NewPipeline(env.repo, queue, &stubUnderstander{}, &stubIndexer{}, WithExtensions())
	assert.Error(t, err)
}

func TestIngestFile_NotesScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "notes.txt")
	writeFile(t, path, []byte("hello world"))

	doc, err := env.pipeline.IngestFile(ctx, path)
	require.NoError(t, err)
	assert.NotZero(t, doc.ID)
	assert.Equal(t, "notes.txt", doc.Filename())
	assert.Equal(t, "hello world", doc.Content)
	assert.Equal(t, ".txt", doc.Metadata.String(core.MetaExtension))
	assert.Equal(t, core.ContentHash("hello world"), doc.Metadata.String(core.MetaContentHash))

	absPath, _ := filepath.Abs(path)
	assert.Equal(t, absPath, doc.Metadata.String(core.MetaPath))

	env.wait(t)

	got, err := env.repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.Metadata.String(core.MetaSummary))
	assert.True(t, got.HasEmbedding())
	assert.True(t, env.store.Has(doc.ID))

	stats := env.queue.Stats()
	assert.Equal(t, 2, stats[jobs.StatusCompleted])
}

func TestIngestFile_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := env.pipeline.IngestFile(ctx, filepath.Join(dir, "nope.txt"))
		var ingestErr *core.IngestionError
		require.ErrorAs(t, err, &ingestErr)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		path := filepath.Join(dir, "binary.txt")
		writeFile(t, path, []byte{0xff, 0xfe, 0xfd})
		_, err := env.pipeline.IngestFile(ctx, path)
		assert.ErrorIs(t, err, core.ErrUnsupportedEncoding)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.md")
		writeFile(t, path, nil)
		_, err := env.pipeline.IngestFile(ctx, path)
		assert.ErrorIs(t, err, core.ErrEmptyContent)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := env.pipeline.IngestFile(ctx, dir)
		var ingestErr *core.IngestionError
		assert.ErrorAs(t, err, &ingestErr)
		assert.ErrorIs(t, err, core.ErrIsDirectory)
	})

	count, err := env.repo.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestFile_StripsBOM(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "bom.md")
	writeFile(t, path, append([]byte{0xEF, 0xBB, 0xBF}, []byte("# Title")...))

	doc, err := env.pipeline.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# Title", doc.Content)
}

func TestIngestFile_Dedup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "doc.md")

	writeFile(t, path, []byte("first version"))
	first, err := env.pipeline.IngestFile(ctx, path)
	require.NoError(t, err)
	env.wait(t)
	assert.Len(t, env.queue.List(), 2)

	// Same content: same document, nothing scheduled
	again, err := env.pipeline.IngestFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, env.queue.List(), 2)

	// Changed content: updated in place and re-enriched
	writeFile(t, path, []byte("second version"))
	changed, err := env.pipeline.IngestFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, first.ID, changed.ID)
	assert.Equal(t, "second version", changed.Content)
	assert.Nil(t, changed.Embedding)
	env.wait(t)
	assert.Len(t, env.queue.List(), 4)

	got, err := env.repo.GetDocument(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "second version", got.Content)
	assert.Equal(t, mock.DeterministicVector("second version", mock.DefaultDimension), got.Embedding)
	assert.Equal(t, core.ContentHash("second version"), got.Metadata.String(core.MetaContentHash))

	count, err := env.repo.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestFile_ChangedContentEvictsOldVector(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "doc.md")

	writeFile(t, path, []byte("first version"))
	doc, err := env.pipeline.IngestFile(ctx, path)
	require.NoError(t, err)
	env.wait(t)
	require.True(t, env.store.Has(doc.ID))

	env.provider.EmbedFunc = func(_ context.Context, text string) ([]float32, error) {
		if text == "second version" {
			return nil, errors.New("embedder offline")
		}
		return mock.DeterministicVector(text, mock.DefaultDimension), nil
	}

	writeFile(t, path, []byte("second version"))
	_, err = env.pipeline.IngestFile(ctx, path)
	require.NoError(t, err)
	env.wait(t)

	got, err := env.repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Embedding)
	assert.False(t, env.store.Has(doc.ID))

	results, err := env.store.Search(ctx, "first version", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIngestFile_StaleEmbedJobIsDropped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "doc.md")

	release := make(chan struct{})
	env.provider.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == "first version" {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return mock.DeterministicVector(text, mock.DefaultDimension), nil
	}

	writeFile(t, path, []byte("first version"))
	doc, err := env.pipeline.IngestFile(ctx, path)
	require.NoError(t, err)

	writeFile(t, path, []byte("second version"))
	_, err = env.pipeline.IngestFile(ctx, path)
	require.NoError(t, err)

	// The second embedding lands while the first is still in flight
	require.Eventually(t, func() bool { return env.store.Has(doc.ID) }, 5*time.Second, 10*time.Millisecond)
	close(release)
	env.wait(t)

	got, err := env.repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, mock.DeterministicVector("second version", mock.DefaultDimension), got.Embedding)

	results, err := env.store.Search(ctx, "second version", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestIngestFile_UnchangedRetriesFailedUnderstanding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.txt")
	writeFile(t, path, []byte("retry me"))

	env.provider.SummarizeFunc = func(context.Context, string) (string, error) {
		return "", errors.New("model offline")
	}
	doc, err := env.pipeline.IngestFile(ctx, path)
	require.NoError(t, err)
	env.wait(t)

	got, err := env.repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.NotContains(t, got.Metadata, core.MetaProcessedAt)

	env.provider.SummarizeFunc = nil
	again, err := env.pipeline.IngestFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID)
	env.wait(t)

	got, err = env.repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Metadata, core.MetaProcessedAt)
	assert.NotEmpty(t, got.Metadata.String(core.MetaSummary))

	// Only understanding was retried; the embedding was already stored
	var understands, embeds int
	for _, j := range env.queue.List() {
		switch j.Type {
		case JobUnderstand:
			understands++
		case JobEmbed:
			embeds++
		}
	}
	assert.Equal(t, 2, understands)
	assert.Equal(t, 1, embeds)
}

func TestIngestFile_EnrichmentFailureIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	env.provider.SummarizeFunc = func(context.Context, string) (string, error) {
		return "", errors.New("model offline")
	}

	path := filepath.Join(t.TempDir(), "notes.txt")
	writeFile(t, path, []byte("still stored"))

	doc, err := env.pipeline.IngestFile(context.Background(), path)
	require.NoError(t, err)
	env.wait(t)

	var understand jobs.Job
	for _, j := range env.queue.List() {
		if j.Type == JobUnderstand {
			understand = j
		}
	}
	assert.Equal(t, jobs.StatusFailed, understand.Status)
	assert.Contains(t, understand.Error, "model offline")
	assert.True(t, env.store.Has(doc.ID))
}

func TestIngestDirectory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "readme.md"), []byte("# Readme"))
	writeFile(t, filepath.Join(root, "main.go"), []byte("package main"))
	writeFile(t, filepath.Join(root, "nested", "deep", "notes.TXT"), []byte("deep notes"))
	writeFile(t, filepath.Join(root, "image.png"), []byte("not text"))
	writeFile(t, filepath.Join(root, "bad.txt"), []byte{0xff, 0xfe})
	writeFile(t, filepath.Join(root, ".git", "config.yaml"), []byte("hidden: true"))
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.js"), []byte("module.exports = 1"))
	writeFile(t, filepath.Join(root, "vendor", "lib.go"), []byte("package lib"))
	writeFile(t, filepath.Join(root, "dist", "app.js"), []byte("bundle"))

	docs, err := env.pipeline.IngestDirectory(ctx, root)
	require.NoError(t, err)

	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Filename())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"main.go", "notes.TXT", "readme.md"}, names)

	env.wait(t)
	assert.Equal(t, 3, env.store.Len())
}

func TestIngestDirectory_CustomExtensions(t *testing.T) {
	env := newTestEnv(t, WithExtensions("RST"), WithSkipDirs())
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "guide.rst"), []byte("Guide"))
	writeFile(t, filepath.Join(root, "readme.md"), []byte("# Readme"))
	writeFile(t, filepath.Join(root, "vendor", "more.rst"), []byte("Vendored"))

	docs, err := env.pipeline.IngestDirectory(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.True(t, env.pipeline.Supports("x.rst"))
	assert.False(t, env.pipeline.Supports("x.md"))
}

func TestIngestDirectory_NotADirectory(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, path, []byte("content"))

	_, err := env.pipeline.IngestDirectory(context.Background(), path)
	var ingestErr *core.IngestionError
	assert.ErrorAs(t, err, &ingestErr)
	assert.ErrorIs(t, err, core.ErrNotDirectory)
}

func TestIngestDirectory_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	docs, err := env.pipeline.IngestDirectory(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, docs)
}

func TestIngestFile_PDF(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	writeFile(t, path, []byte("%PDF-1.4 fake"))

	t.Run("function form", func(t *testing.T) {
		env := newTestEnv(t, WithPDFExtractor(&PDFExtractor{
			Parse: func(data []byte) (string, error) { return "parsed by function", nil },
		}))
		doc, err := env.pipeline.IngestFile(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "parsed by function", doc.Content)
		assert.Equal(t, ".pdf", doc.Metadata.String(core.MetaExtension))
	})

	t.Run("no backend", func(t *testing.T) {
		env := newTestEnv(t, WithPDFExtractor(&PDFExtractor{}))
		_, err := env.pipeline.IngestFile(ctx, path)
		assert.ErrorIs(t, err, ErrNoPDFBackend)
	})

	t.Run("default backend rejects garbage", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.pipeline.IngestFile(ctx, path)
		var ingestErr *core.IngestionError
		assert.ErrorAs(t, err, &ingestErr)
		assert.ErrorIs(t, err, core.ErrExtractionFailed)
	})
}

func TestPDFExtractor(t *testing.T) {
	parser := &stubParser{text: "from parser"}
	both := &PDFExtractor{
		NewParser: func([]byte) (PDFParser, error) { return parser, nil },
		Parse:     func([]byte) (string, error) { return "from function", nil },
	}
	text, err := both.Extract([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "from parser", text)

	failing := &PDFExtractor{
		NewParser: func([]byte) (PDFParser, error) { return nil, errors.New("corrupt") },
	}
	_, err = failing.Extract([]byte("x"))
	assert.ErrorContains(t, err, "corrupt")

	panicky := &PDFExtractor{Parse: func([]byte) (string, error) { panic("bad xref") }}
	_, err = panicky.Extract([]byte("x"))
	assert.ErrorContains(t, err, "bad xref")

	var none *PDFExtractor
	_, err = none.Extract(nil)
	assert.ErrorIs(t, err, ErrNoPDFBackend)
}

type stubParser struct{ text string }

func (s *stubParser) Text() (string, error) { return s.text, nil }

type stubUnderstander struct{}

func (s *stubUnderstander) ProcessDocument(context.Context, core.ID) error { return nil }

type stubIndexer struct{}

func (s *stubIndexer) AddDocument(context.Context, core.ID, string) error { return nil }

func (s *stubIndexer) RemoveDocument(core.ID) {}
