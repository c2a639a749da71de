// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/glyph/ai"
	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of documents to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per document
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// OnlyMissing skips documents that already carry an embedding
	OnlyMissing bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Report summarizes a finished run.
type Report struct {
	Total    int
	Embedded int
	Failed   int
	Skipped  int
	Elapsed  time.Duration
}

// Reembedder orchestrates the reembedding of every document in a repository.
type Reembedder struct {
	repo      storage.DocumentRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *DocumentIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.DocumentRepository, embedder ai.Provider, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewDocumentIterator(repo, config.BatchSize),
	}, nil
}

// Run re-embeds stored documents with the configured provider.
// A document whose embedding fails after all retries is counted and
// skipped; the run only stops early on storage errors or cancellation.
// Vectors are written to the repository only; callers holding an
// in-memory index must reload it afterwards.
func (r *Reembedder) Run(ctx context.Context) (*Report, error) {
	total, err := r.repo.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	report := &Report{Total: total}
	if total == 0 {
		fmt.Fprintf(r.progress, "No documents found (0 documents)\n")
		return report, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d documents (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(docs []*core.Document) error {
		pending := docs
		if r.config.OnlyMissing {
			pending = pending[:0:0]
			for _, doc := range docs {
				if doc.HasEmbedding() {
					report.Skipped++
					continue
				}
				pending = append(pending, doc)
			}
		}

		done, failed, err := r.processor.Process(ctx, pending)
		report.Embedded += done
		report.Failed += failed
		tracker.Add(len(docs)-failed, failed)
		return err
	})
	report.Elapsed = tracker.Elapsed()
	if err != nil {
		return report, err
	}

	tracker.Finish()

	fmt.Fprintf(r.progress, "Reembedding complete. Embedded %d, skipped %d, failed %d of %d documents in %v\n",
		report.Embedded, report.Skipped, report.Failed, total, report.Elapsed.Round(time.Millisecond))

	return report, nil
}
