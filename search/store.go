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


package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/poiesic/glyph/ai"
	"github.com/poiesic/glyph/core"
	"github.com/poiesic/glyph/storage"
)

const (
	// DefaultThreshold is the similarity a document must exceed to be returned.
	DefaultThreshold = 0.3

	// DefaultLimit is the number of results returned when the caller passes no limit.
	DefaultLimit = 5
)

type entry struct {
	id     core.ID
	vector []float32
}

// InitFailure records a document whose embedding could not be backfilled.
type InitFailure struct {
	ID  core.ID
	Err error
}

// InitReport summarizes a call to Initialize.
type InitReport struct {
	Loaded   int // vectors read from the repository
	Embedded int // vectors produced by backfill
	Failed   []InitFailure
}

// Store is the embedding index. It owns an in-memory cache of document
// vectors and writes every new vector through to the repository.
type Store struct {
	repo          storage.DocumentRepository
	embedder      ai.Provider
	threshold     float64
	defaultLimit  int
	backfillDelay time.Duration
	monitor       SearchMonitor
	logger        *slog.Logger

	// writeMu orders conditional writes against RemoveDocument.
	writeMu sync.Mutex

	mu      sync.RWMutex
	entries []entry
	index   map[core.ID]int
}

// Option configures a Store.
type Option func(*Store) error

// WithThreshold sets the minimum similarity, exclusive. Default is 0.3.
func WithThreshold(threshold float64) Option {
	return func(s *Store) error {
		if threshold < -1 || threshold >= 1 {
			return fmt.Errorf("similarity threshold must be in [-1, 1), got %v", threshold)
		}
		s.threshold = threshold
		return nil
	}
}

// WithDefaultLimit sets the result count used when Search gets no limit.
// Default is 5.
func WithDefaultLimit(limit int) Option {
	return func(s *Store) error {
		if limit < 1 {
			return fmt.Errorf("default limit must be positive, got %d", limit)
		}
		s.defaultLimit = limit
		return nil
	}
}

// WithBackfillDelay sets a pause between provider calls during Initialize.
// Default is no delay.
func WithBackfillDelay(delay time.Duration) Option {
	return func(s *Store) error {
		if delay < 0 {
			return fmt.Errorf("backfill delay must not be negative, got %v", delay)
		}
		s.backfillDelay = delay
		return nil
	}
}

// WithMonitor sets the monitor notified by Search.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Store) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore creates an empty store. Call Initialize to load the cache.
func NewStore(repo storage.DocumentRepository, embedder ai.Provider, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Store{
		repo:         repo,
		embedder:     embedder,
		threshold:    DefaultThreshold,
		defaultLimit: DefaultLimit,
		monitor:      &noopMonitor{},
		logger:       slog.Default().With("component", "search"),
		index:        make(map[core.ID]int),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Initialize rebuilds the cache from the repository. Stored vectors are
// loaded as is; documents without one are embedded one at a time, persisted
// and cached. A failure on one document is recorded in the report and the
// rest continue. Only a failure to list documents, or ctx ending, returns
// an error.
func (s *Store) Initialize(ctx context.Context) (*InitReport, error) {
	docs, err := s.repo.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	s.mu.Lock()
	s.entries = make([]entry, 0, len(docs))
	s.index = make(map[core.ID]int, len(docs))
	s.mu.Unlock()

	report := &InitReport{}
	calls := 0
	for _, doc := range docs {
		if doc.HasEmbedding() {
			s.put(doc.ID, doc.Embedding)
			report.Loaded++
			continue
		}

		if calls > 0 && s.backfillDelay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(s.backfillDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		calls++

		stored, err := s.embedAndStore(ctx, doc.ID, doc.Content)
		if err != nil {
			s.logger.Warn("failed to backfill embedding", "document_id", doc.ID, "filename", doc.Filename(), "err", err)
			report.Failed = append(report.Failed, InitFailure{ID: doc.ID, Err: err})
			continue
		}
		if stored {
			report.Embedded++
		}
	}

	s.logger.Info("vector store initialized",
		"loaded", report.Loaded, "embedded", report.Embedded, "failed", len(report.Failed))
	return report, nil
}

// AddDocument embeds content, persists the vector and caches it.
// Re-adding an id replaces its vector and keeps its position. When the
// stored content no longer equals content the vector is dropped.
func (s *Store) AddDocument(ctx context.Context, id core.ID, content string) error {
	if _, err := s.embedAndStore(ctx, id, content); err != nil {
		return fmt.Errorf("failed to add document %d: %w", id, err)
	}
	return nil
}

// RemoveDocument evicts the cached vector for id. Callers persist the
// cleared embedding first.
func (s *Store) RemoveDocument(id core.ID) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.entries); j++ {
		s.index[s.entries[j].id] = j
	}
}

func (s *Store) embedAndStore(ctx context.Context, id core.ID, content string) (bool, error) {
	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return false, err
	}
	if len(vector) == 0 {
		return false, ErrEmptyEmbedding
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	stored, err := s.repo.SetEmbeddingIfContent(ctx, id, content, vector)
	if err != nil {
		return false, fmt.Errorf("failed to persist embedding: %w", err)
	}
	if !stored {
		s.logger.Debug("content changed while embedding, vector dropped", "document_id", id)
		return false, nil
	}
	s.put(id, vector)
	return true, nil
}

func (s *Store) put(id core.ID, vector []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[id]; ok {
		s.entries[i].vector = vector
		return
	}
	s.index[id] = len(s.entries)
	s.entries = append(s.entries, entry{id: id, vector: vector})
}

// Search returns up to limit documents most similar to query.
// A limit of zero or less uses the default limit.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, limit, s.monitor)
}

// SearchWithMonitor is Search with a monitor for this call only.
func (s *Store) SearchWithMonitor(ctx context.Context, query string, limit int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	monitor.OnSearchStart(query, limit)

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	monitor.OnQueryEmbedded(len(queryVector))

	type candidate struct {
		id    core.ID
		score float64
	}

	s.mu.RLock()
	scanned := len(s.entries)
	candidates := make([]candidate, 0)
	for _, e := range s.entries {
		score := CosineSimilarity(queryVector, e.vector)
		if score > s.threshold {
			candidates = append(candidates, candidate{id: e.id, score: score})
		}
	}
	s.mu.RUnlock()
	monitor.OnCandidatesScored(scanned, len(candidates))

	// Stable so equal scores keep insertion order
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	if len(candidates) == 0 {
		results := []*core.SearchResult{}
		monitor.OnSearchComplete(results)
		return results, nil
	}

	ids := make([]core.ID, len(candidates))
	scores := make(map[core.ID]float64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
		scores[c.id] = c.score
	}

	docs, err := s.repo.GetDocuments(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving documents", "count", len(ids), "err", err)
		return nil, fmt.Errorf("failed to hydrate search results: %w", err)
	}

	// Documents deleted since scoring are simply missing here
	results := make([]*core.SearchResult, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		results = append(results, &core.SearchResult{Document: doc, Score: scores[doc.ID]})
	}
	monitor.OnSearchComplete(results)

	return results, nil
}

// Len returns the number of cached vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Has reports whether a vector for id is cached.
func (s *Store) Has(id core.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}
