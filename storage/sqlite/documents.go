package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/storage"
)

// DocumentRepository implements storage.DocumentRepository on SQLite.
type DocumentRepository struct {
	db *DB
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a DocumentRepository on an open DB.
func NewDocumentRepository(db *DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Close is a no-op; the shared DB is closed by its owner.
func (r *DocumentRepository) Close() error {
	return nil
}

const documentColumns = `id, content, metadata, embedding, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*core.Document, error) {
	var (
		id        int64
		content   string
		metadata  string
		embedding sql.NullString
		createdAt string
	)
	if err := row.Scan(&id, &content, &metadata, &embedding, &createdAt); err != nil {
		return nil, err
	}

	md, err := storage.UnmarshalMetadata([]byte(metadata))
	if err != nil {
		return nil, err
	}
	var vec []float32
	if embedding.Valid {
		vec, err = storage.UnmarshalEmbedding([]byte(embedding.String))
		if err != nil {
			return nil, err
		}
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &core.Document{
		ID:        core.ID(id),
		Content:   content,
		Metadata:  md,
		Embedding: vec,
		CreatedAt: created,
	}, nil
}

func encodeDocument(doc *core.Document) (metadata string, embedding sql.NullString, err error) {
	md, err := storage.MarshalMetadata(doc.Metadata)
	if err != nil {
		return "", embedding, err
	}
	vec, err := storage.MarshalEmbedding(doc.Embedding)
	if err != nil {
		return "", embedding, err
	}
	if vec != nil {
		embedding = sql.NullString{String: string(vec), Valid: true}
	}
	return string(md), embedding, nil
}

func nullablePath(doc *core.Document) sql.NullString {
	p := doc.Metadata.String(core.MetaPath)
	return sql.NullString{String: p, Valid: p != ""}
}

// CreateDocument inserts a new document row.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if doc.Metadata == nil {
		doc.Metadata = core.Metadata{}
	}
	doc.CreatedAt = time.Now().UTC()

	metadata, embedding, err := encodeDocument(doc)
	if err != nil {
		return nil, err
	}

	res, err := r.db.db.ExecContext(ctx,
		`INSERT INTO documents(content, metadata, embedding, path, created_at) VALUES(?, ?, ?, ?, ?)`,
		doc.Content, metadata, embedding, nullablePath(doc), formatTime(doc.CreatedAt))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	doc.ID = core.ID(id)
	return doc, nil
}

// UpdateDocument replaces content, metadata and embedding of an existing row.
func (r *DocumentRepository) UpdateDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if doc.Metadata == nil {
		doc.Metadata = core.Metadata{}
	}
	metadata, embedding, err := encodeDocument(doc)
	if err != nil {
		return nil, err
	}

	var createdAt string
	err = r.db.db.QueryRowContext(ctx,
		`UPDATE documents SET content = ?, metadata = ?, embedding = ?, path = ? WHERE id = ? RETURNING created_at`,
		doc.Content, metadata, embedding, nullablePath(doc), int64(doc.ID)).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	doc, err := scanDocument(r.db.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return doc, err
}

// GetDocuments retrieves the documents that exist among ids, in request order.
func (r *DocumentRepository) GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error) {
	var result []*core.Document
	for _, id := range ids {
		doc, err := r.GetDocument(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, nil
}

// ListDocuments returns every document in creation order.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	rows, err := r.db.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// CountDocuments returns the number of stored documents.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	var n int
	err := r.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// FindDocumentByPath returns the most recent document ingested from path.
func (r *DocumentRepository) FindDocumentByPath(ctx context.Context, path string) (*core.Document, error) {
	doc, err := scanDocument(r.db.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE path = ? ORDER BY id DESC LIMIT 1`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return doc, err
}

// SetEmbedding writes only the embedding column.
func (r *DocumentRepository) SetEmbedding(ctx context.Context, id core.ID, embedding []float32) error {
	vec, err := storage.MarshalEmbedding(embedding)
	if err != nil {
		return err
	}
	var value sql.NullString
	if vec != nil {
		value = sql.NullString{String: string(vec), Valid: true}
	}

	res, err := r.db.db.ExecContext(ctx, `UPDATE documents SET embedding = ? WHERE id = ?`, value, int64(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetEmbeddingIfContent writes the embedding column only while the stored
// content equals content.
func (r *DocumentRepository) SetEmbeddingIfContent(ctx context.Context, id core.ID, content string, embedding []float32) (bool, error) {
	vec, err := storage.MarshalEmbedding(embedding)
	if err != nil {
		return false, err
	}
	var value sql.NullString
	if vec != nil {
		value = sql.NullString{String: string(vec), Valid: true}
	}

	var written bool
	err = r.db.withTx(ctx, func(tx *sql.Tx) error {
		var stored string
		err := tx.QueryRowContext(ctx, `SELECT content FROM documents WHERE id = ?`, int64(id)).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		if stored != content {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE documents SET embedding = ? WHERE id = ?`, value, int64(id)); err != nil {
			return err
		}
		written = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return written, nil
}

// MergeMetadata merges patch into the stored metadata inside one transaction.
// Only the metadata column is written.
func (r *DocumentRepository) MergeMetadata(ctx context.Context, id core.ID, patch core.Metadata) (*core.Document, error) {
	var result *core.Document
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		doc, err := scanDocument(tx.QueryRowContext(ctx,
			`SELECT `+documentColumns+` FROM documents WHERE id = ?`, int64(id)))
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}

		doc.Metadata = doc.Metadata.Merge(patch)
		md, err := storage.MarshalMetadata(doc.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE documents SET metadata = ? WHERE id = ?`, string(md), int64(id)); err != nil {
			return err
		}
		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
