package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}

	return &DocumentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *DocumentRepository) Close() error {
	return r.idSeq.Release()
}

// CreateDocument stores a new document.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	id, err := nextID(r.idSeq)
	if err != nil {
		return nil, err
	}
	doc.ID = core.ID(id)
	doc.CreatedAt = time.Now().UTC()
	if doc.Metadata == nil {
		doc.Metadata = core.Metadata{}
	}

	err = r.backend.Update(func(tx *badger.Txn) error {
		if err := writeJSON(tx, makeDocumentKey(doc.ID), toDocumentRecord(doc)); err != nil {
			return err
		}
		return r.setPathIndex(tx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDocument replaces content, metadata and embedding of an existing document.
func (r *DocumentRepository) UpdateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	err := r.backend.Update(func(tx *badger.Txn) error {
		old, err := r.readDocument(tx, doc.ID)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		doc.CreatedAt = old.CreatedAt
		if doc.Metadata == nil {
			doc.Metadata = core.Metadata{}
		}
		if err := writeJSON(tx, makeDocumentKey(doc.ID), toDocumentRecord(doc)); err != nil {
			return err
		}

		// Drop the old path index entry if the document moved
		oldPath := old.Metadata.String(core.MetaPath)
		if oldPath != "" && oldPath != doc.Metadata.String(core.MetaPath) {
			if err := tx.Delete(makePathKey(oldPath)); err != nil {
				return err
			}
		}
		return r.setPathIndex(tx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = r.readDocument(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// GetDocuments retrieves multiple documents by their IDs.
func (r *DocumentRepository) GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error) {
	var result []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := r.readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc != nil {
				result = append(result, doc)
			}
		}
		return nil
	})
	return result, err
}

// ListDocuments returns every document in creation order.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec documentRecord
			if err := decodeItem(iter.Item(), &rec); err != nil {
				return err
			}
			results = append(results, rec.toDocument())
		}
		return nil
	})
	return results, err
}

// CountDocuments returns the number of stored documents.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// FindDocumentByPath looks up a document through the path index.
func (r *DocumentRepository) FindDocumentByPath(ctx context.Context, path string) (*core.Document, error) {
	var result *core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makePathKey(path))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var entry storage.PathIndexEntry
		if err := item.Value(func(val []byte) error {
			var err error
			entry, err = storage.UnmarshalPathIndexEntry(val)
			return err
		}); err != nil {
			return err
		}

		result, err = r.readDocument(tx, entry.DocumentID)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// SetEmbedding writes only the embedding of a document.
func (r *DocumentRepository) SetEmbedding(ctx context.Context, id core.ID, embedding []float32) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		doc, err := r.readDocument(tx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		doc.Embedding = embedding
		return writeJSON(tx, makeDocumentKey(id), toDocumentRecord(doc))
	})
}

// SetEmbeddingIfContent writes the embedding when the stored content matches.
func (r *DocumentRepository) SetEmbeddingIfContent(ctx context.Context, id core.ID, content string, embedding []float32) (bool, error) {
	var written bool
	err := r.backend.Update(func(tx *badger.Txn) error {
		written = false
		doc, err := r.readDocument(tx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		if doc.Content != content {
			return nil
		}
		doc.Embedding = embedding
		written = true
		return writeJSON(tx, makeDocumentKey(id), toDocumentRecord(doc))
	})
	return written, err
}

// MergeMetadata merges patch into the stored metadata in one transaction.
func (r *DocumentRepository) MergeMetadata(ctx context.Context, id core.ID, patch core.Metadata) (*core.Document, error) {
	var result *core.Document
	err := r.backend.Update(func(tx *badger.Txn) error {
		doc, err := r.readDocument(tx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		doc.Metadata = doc.Metadata.Merge(patch)
		result = doc
		return writeJSON(tx, makeDocumentKey(id), toDocumentRecord(doc))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// readDocument reads a document within a transaction.
// Returns nil, nil if the document doesn't exist.
func (r *DocumentRepository) readDocument(tx *badger.Txn, id core.ID) (*core.Document, error) {
	var rec documentRecord
	found, err := readJSON(tx, makeDocumentKey(id), &rec)
	if err != nil || !found {
		return nil, err
	}
	return rec.toDocument(), nil
}

// setPathIndex records path -> (id, content hash) when the document has a source path.
func (r *DocumentRepository) setPathIndex(tx *badger.Txn, doc *core.Document) error {
	path := doc.Metadata.String(core.MetaPath)
	if path == "" {
		return nil
	}
	entry := storage.PathIndexEntry{
		DocumentID:  doc.ID,
		ContentHash: doc.Metadata.String(core.MetaContentHash),
	}
	return tx.Set(makePathKey(path), storage.MarshalPathIndexEntry(entry))
}
