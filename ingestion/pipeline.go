package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/jobs"
	"github.com/poiesic/glyph/storage"
)

// Job types scheduled after a document is stored.
const (
	JobUnderstand = "understand"
	JobEmbed      = "embed"
)

// DefaultExtensions is the allow-list used when WithExtensions is not given.
var DefaultExtensions = []string{
	".md", ".txt", ".ts", ".tsx", ".js", ".jsx", ".json", ".pdf",
	".go", ".yaml", ".yml", ".csv", ".html",
}

// DefaultSkipDirs are directory names never descended into. Hidden
// directories are skipped as well.
var DefaultSkipDirs = []string{"node_modules", "vendor", "dist", "build", "__pycache__"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Understander produces summary and tags for a stored document.
type Understander interface {
	ProcessDocument(ctx context.Context, id core.ID) error
}

// Indexer embeds a stored document and adds it to the vector index.
// RemoveDocument evicts a vector whose content has been replaced.
type Indexer interface {
	AddDocument(ctx context.Context, id core.ID, content string) error
	RemoveDocument(id core.ID)
}

// Pipeline orchestrates the ingestion of files into documents.
// Enrichment of every stored document runs on the job queue.
type Pipeline struct {
	repo         storage.DocumentRepository
	queue        *jobs.Queue
	understander Understander
	indexer      Indexer
	extensions   map[string]bool
	skipDirs     map[string]bool
	pdf          *PDFExtractor
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithExtensions replaces the extension allow-list used by IngestDirectory.
// Extensions are matched case-insensitively; the leading dot is optional.
func WithExtensions(exts ...string) Option {
	return func(p *Pipeline) error {
		if len(exts) == 0 {
			return errors.New("at least one extension is required")
		}
		p.extensions = extensionSet(exts)
		return nil
	}
}

// WithSkipDirs replaces the directory names skipped by IngestDirectory.
func WithSkipDirs(names ...string) Option {
	return func(p *Pipeline) error {
		p.skipDirs = make(map[string]bool, len(names))
		for _, n := range names {
			p.skipDirs[n] = true
		}
		return nil
	}
}

// WithPDFExtractor sets the PDF backend.
// Default is DefaultPDFExtractor().
func WithPDFExtractor(extractor *PDFExtractor) Option {
	return func(p *Pipeline) error {
		p.pdf = extractor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	repo storage.DocumentRepository,
	queue *jobs.Queue,
	understander Understander,
	indexer Indexer,
	opts ...Option,
) (*Pipeline, error) {
	if repo == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if queue == nil {
		return nil, ErrJobQueueRequired
	}
	if understander == nil {
		return nil, ErrUnderstanderRequired
	}
	if indexer == nil {
		return nil, ErrIndexerRequired
	}

	p := &Pipeline{
		repo:         repo,
		queue:        queue,
		understander: understander,
		indexer:      indexer,
		extensions:   extensionSet(DefaultExtensions),
		pdf:          DefaultPDFExtractor(),
		logger:       slog.Default().With("component", "ingestion"),
	}
	if err := WithSkipDirs(DefaultSkipDirs...)(p); err != nil {
		return nil, err
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}

// Supports reports whether IngestDirectory would pick up path.
func (p *Pipeline) Supports(path string) bool {
	return p.extensions[strings.ToLower(filepath.Ext(path))]
}

// IngestFile reads a single file and stores it as a document.
//
// A file already ingested from the same path with the same content is
// returned unchanged; only enrichment an earlier run left unfinished is
// scheduled again. Changed content updates the existing document in place,
// clears its embedding and evicts the cached vector. In both other cases
// understanding and embedding jobs are enqueued.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*core.Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &core.IngestionError{Path: path, Err: err}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, &core.IngestionError{Path: absPath, Err: err}
	}
	if info.IsDir() {
		return nil, &core.IngestionError{Path: absPath, Err: core.ErrIsDirectory}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &core.IngestionError{Path: absPath, Err: err}
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	content, err := p.extract(ext, data)
	if err != nil {
		return nil, &core.IngestionError{Path: absPath, Err: err}
	}

	hash := core.ContentHash(content)
	meta := core.Metadata{
		core.MetaFilename:    filepath.Base(absPath),
		core.MetaPath:        absPath,
		core.MetaSize:        info.Size(),
		core.MetaExtension:   ext,
		core.MetaContentHash: hash,
	}

	doc, changed, err := p.upsert(ctx, absPath, content, hash, meta)
	if err != nil {
		return nil, &core.IngestionError{Path: absPath, Err: err}
	}
	if !changed {
		p.logger.Debug("file unchanged, skipping", "path", absPath, "document_id", doc.ID)
		p.resume(doc)
		return doc, nil
	}

	p.scheduleUnderstand(doc)
	p.scheduleEmbed(doc)
	p.logger.Info("ingested file", "path", absPath, "document_id", doc.ID)
	return doc, nil
}

func (p *Pipeline) extract(ext string, data []byte) (string, error) {
	var content string
	if ext == ".pdf" {
		text, err := p.pdf.Extract(data)
		if err != nil {
			return "", fmt.Errorf("%w: %w", core.ErrExtractionFailed, err)
		}
		content = text
	} else {
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", core.ErrUnsupportedEncoding
		}
		content = string(data)
	}

	if strings.TrimSpace(content) == "" {
		return "", core.ErrEmptyContent
	}
	return content, nil
}

func (p *Pipeline) upsert(ctx context.Context, absPath, content, hash string, meta core.Metadata) (*core.Document, bool, error) {
	existing, err := p.repo.FindDocumentByPath(ctx, absPath)
	switch {
	case err == nil:
		if existing.Metadata.String(core.MetaContentHash) == hash {
			return existing, false, nil
		}
		existing.Content = content
		existing.Metadata = existing.Metadata.Clone().Merge(meta)
		existing.Embedding = nil
		updated, err := p.repo.UpdateDocument(ctx, existing)
		if err != nil {
			return nil, false, fmt.Errorf("failed to update document: %w", err)
		}
		p.indexer.RemoveDocument(updated.ID)
		return updated, true, nil

	case errors.Is(err, storage.ErrNotFound):
		created, err := p.repo.CreateDocument(ctx, &core.Document{Content: content, Metadata: meta})
		if err != nil {
			return nil, false, fmt.Errorf("failed to store document: %w", err)
		}
		return created, true, nil

	default:
		return nil, false, fmt.Errorf("failed to look up path: %w", err)
	}
}

// resume re-enqueues the enrichment of an unchanged document that never
// completed, such as a failed understanding or embedding job.
func (p *Pipeline) resume(doc *core.Document) {
	if _, ok := doc.Metadata[core.MetaProcessedAt]; !ok {
		p.logger.Info("retrying understanding", "document_id", doc.ID)
		p.scheduleUnderstand(doc)
	}
	if !doc.HasEmbedding() {
		p.logger.Info("retrying embedding", "document_id", doc.ID)
		p.scheduleEmbed(doc)
	}
}

// scheduleUnderstand and scheduleEmbed enqueue independent jobs that may
// finish in either order.
func (p *Pipeline) scheduleUnderstand(doc *core.Document) {
	id := doc.ID
	if _, err := p.queue.Submit(JobUnderstand, jobTarget(id), func(ctx context.Context) error {
		return p.understander.ProcessDocument(ctx, id)
	}); err != nil {
		p.logger.Error("error scheduling understanding", "document_id", id, "err", err)
	}
}

func (p *Pipeline) scheduleEmbed(doc *core.Document) {
	id, content := doc.ID, doc.Content
	if _, err := p.queue.Submit(JobEmbed, jobTarget(id), func(ctx context.Context) error {
		return p.indexer.AddDocument(ctx, id, content)
	}); err != nil {
		p.logger.Error("error scheduling embedding", "document_id", id, "err", err)
	}
}

func jobTarget(id core.ID) string {
	return strconv.FormatUint(uint64(id), 10)
}
