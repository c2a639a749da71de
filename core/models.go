package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for documents and tasks.
// It is allocated by the storage backend and is never 0 for a stored entity.
type ID uint64

// Well-known metadata keys.
const (
	MetaFilename    = "filename"
	MetaPath        = "path"
	MetaSize        = "size"
	MetaExtension   = "extension"
	MetaContentHash = "contentHash"
	MetaSummary     = "summary"
	MetaTags        = "tags"
	MetaProcessedAt = "processedAt"
)

// ContentHash returns the hex-encoded 256-bit BLAKE2b digest of text.
// Re-ingesting a file whose content hash is unchanged is a no-op.
func ContentHash(text string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Metadata is an open key/value map attached to a Document.
type Metadata map[string]any

// String returns the value stored under key if it is a string.
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Clone returns a shallow copy of the map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge copies every entry of patch into m, overwriting existing keys.
// Keys absent from patch are left untouched.
func (m Metadata) Merge(patch Metadata) Metadata {
	if m == nil {
		m = make(Metadata, len(patch))
	}
	for k, v := range patch {
		m[k] = v
	}
	return m
}

// Document is a persisted unit of ingested text.
type Document struct {
	ID        ID
	Content   string
	Metadata  Metadata
	Embedding []float32 // nil until a provider has produced a vector
	CreatedAt time.Time
}

// Filename returns the metadata filename, falling back to the empty string.
func (d *Document) Filename() string {
	return d.Metadata.String(MetaFilename)
}

// HasEmbedding reports whether the document carries a vector.
func (d *Document) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// CanTransitionTo reports whether moving from s to next is a legal forward step.
// pending -> in_progress -> {completed | failed}; pending may also fail directly.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskPending:
		return next == TaskInProgress || next == TaskFailed
	case TaskInProgress:
		return next == TaskCompleted || next == TaskFailed
	default:
		return false
	}
}

// Task is a unit of autonomous work with a plan-then-execute lifecycle.
type Task struct {
	ID          ID
	Title       string
	Description string
	Priority    int
	Status      TaskStatus
	Result      string // JSON array of StepResult once completed
	Plan        string // JSON array of PlanStep once planned
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PlanStep is one action proposed by the planner.
type PlanStep struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Tool        string         `json:"tool"`
	Arguments   map[string]any `json:"arguments"`
}

// StepResult records the outcome of executing a PlanStep.
type StepResult struct {
	StepID string `json:"stepId"`
	Tool   string `json:"tool"`
	Output string `json:"output"`
}

// SearchResult is a document matched by similarity search.
type SearchResult struct {
	Document *Document
	Score    float64
}
