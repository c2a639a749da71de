package badger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/storage"
)

// documentRecord is the JSON value stored under a document key.
type documentRecord struct {
	ID        core.ID       `json:"id"`
	Content   string        `json:"content"`
	Metadata  core.Metadata `json:"metadata"`
	Embedding []float32     `json:"embedding,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

func toDocumentRecord(doc *core.Document) documentRecord {
	return documentRecord{
		ID:        doc.ID,
		Content:   doc.Content,
		Metadata:  doc.Metadata,
		Embedding: doc.Embedding,
		CreatedAt: doc.CreatedAt,
	}
}

func (r documentRecord) toDocument() *core.Document {
	md := r.Metadata
	if md == nil {
		md = core.Metadata{}
	}
	return &core.Document{
		ID:        r.ID,
		Content:   r.Content,
		Metadata:  md,
		Embedding: r.Embedding,
		CreatedAt: r.CreatedAt,
	}
}

// taskRecord is the JSON value stored under a task key.
type taskRecord struct {
	ID          core.ID         `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    int             `json:"priority"`
	Status      core.TaskStatus `json:"status"`
	Result      string          `json:"result,omitempty"`
	Plan        string          `json:"plan,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func toTaskRecord(t *core.Task) taskRecord {
	return taskRecord(*t)
}

func (r taskRecord) toTask() *core.Task {
	t := core.Task(r)
	return &t
}

// readJSON loads the value at key into v.
// Returns false, nil when the key doesn't exist.
func readJSON(tx *badger.Txn, key []byte, v any) (bool, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}
	if err := decodeItem(item, v); err != nil {
		return false, err
	}
	return true, nil
}

// decodeItem unmarshals the JSON value of an item into v.
func decodeItem(item *badger.Item, v any) error {
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		return nil
	})
}

func writeJSON(tx *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return tx.Set(key, data)
}
