package ingestion

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrJobQueueRequired is returned when a job queue is not provided.
	ErrJobQueueRequired = errors.New("job queue required")

	// ErrUnderstanderRequired is returned when no understanding stage is provided.
	ErrUnderstanderRequired = errors.New("understanding processor required")

	// ErrIndexerRequired is returned when no vector index is provided.
	ErrIndexerRequired = errors.New("vector index required")

	// ErrNoPDFBackend is returned when a PDF is ingested without an extraction backend.
	ErrNoPDFBackend = errors.New("no PDF extraction backend configured: neither parser constructor nor parse function is set")
)
