package storage

import (
	"context"

	"github.com/poiesic/glyph/core"
)

// DocumentRepository provides operations for managing documents.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// CreateDocument stores a new document and assigns its ID and CreatedAt.
	// Returns the document with generated fields populated.
	CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// UpdateDocument replaces content, metadata and embedding of an existing document.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist, in the order requested.
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// ListDocuments returns every document ordered by creation.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// FindDocumentByPath looks up a document by its absolute source path.
	// Returns ErrNotFound if no document was ingested from path.
	FindDocumentByPath(ctx context.Context, path string) (*core.Document, error)

	// SetEmbedding writes only the embedding of a document.
	// Returns ErrNotFound if the document doesn't exist.
	SetEmbedding(ctx context.Context, id core.ID, embedding []float32) error

	// SetEmbeddingIfContent writes the embedding only while the stored
	// content still equals content, and reports whether it was written.
	// Returns ErrNotFound if the document doesn't exist.
	SetEmbeddingIfContent(ctx context.Context, id core.ID, content string, embedding []float32) (bool, error)

	// MergeMetadata merges patch into the stored metadata inside one transaction.
	// Keys absent from patch, and the embedding, are left untouched.
	MergeMetadata(ctx context.Context, id core.ID, patch core.Metadata) (*core.Document, error)

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)

	// Close releases resources held by the repository.
	Close() error
}

// TaskRepository provides operations for managing tasks.
type TaskRepository interface {
	// CreateTask stores a new task and assigns its ID and timestamps.
	CreateTask(ctx context.Context, task *core.Task) (*core.Task, error)

	// GetTask retrieves a single task by ID.
	// Returns ErrNotFound if the task doesn't exist.
	GetTask(ctx context.Context, id core.ID) (*core.Task, error)

	// ListTasks returns every task ordered by creation.
	ListTasks(ctx context.Context) ([]*core.Task, error)

	// ListTasksByStatus returns the tasks in status, ordered by creation.
	ListTasksByStatus(ctx context.Context, status core.TaskStatus) ([]*core.Task, error)

	// NextPendingTask returns the pending task with the highest priority,
	// oldest first among equals. Returns ErrNotFound if none is pending.
	NextPendingTask(ctx context.Context) (*core.Task, error)

	// ClaimNextPendingTask atomically selects the next pending task and
	// moves it to in_progress. Returns ErrNotFound if none is pending.
	ClaimNextPendingTask(ctx context.Context) (*core.Task, error)

	// UpdateTask applies fn to the stored task inside one transaction and
	// persists the result. If fn returns an error nothing is written.
	// UpdatedAt is set automatically.
	UpdateTask(ctx context.Context, id core.ID, fn func(*core.Task) error) (*core.Task, error)

	// Close releases resources held by the repository.
	Close() error
}
