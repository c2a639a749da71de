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


package glyph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/glyph/ai"
	"github.com/poiesic/glyph/ai/langchain"
	"github.com/poiesic/glyph/chat"
	"github.com/poiesic/glyph/config"
	"github.com/poiesic/glyph/ingestion"
	"github.com/poiesic/glyph/jobs"
	"github.com/poiesic/glyph/logging"
	"github.com/poiesic/glyph/reembed"
	"github.com/poiesic/glyph/search"
	"github.com/poiesic/glyph/storage"
	"github.com/poiesic/glyph/storage/badger"
	"github.com/poiesic/glyph/storage/sqlite"
	"github.com/poiesic/glyph/understanding"
	"github.com/poiesic/glyph/workflow"
)

// jobDrainTimeout bounds how long Close waits for queued enrichment.
const jobDrainTimeout = 10 * time.Second

// Engine owns every glyph component and their lifetimes.
type Engine struct {
	cfg *config.Config

	docRepo    storage.DocumentRepository
	taskRepo   storage.TaskRepository
	closeStore func() error

	chain          *ai.Chain
	closeProviders func()

	queue     *jobs.Queue
	store     *search.Store
	processor *understanding.Processor
	pipeline  *ingestion.Pipeline
	chat      *chat.Service
	manager   *workflow.Manager
	executor  *workflow.Executor

	ring   *logging.Ring
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	providers    []ai.Provider
	providersSet bool
	inMemory     bool
	logger       *slog.Logger
	ring         *logging.Ring
}

// WithProviders uses the given providers instead of building them from
// the configuration. Passing none leaves every AI capability unavailable.
func WithProviders(providers ...ai.Provider) EngineOption {
	return func(o *engineOptions) {
		o.providers = providers
		o.providersSet = true
	}
}

// WithInMemoryStorage keeps all data in memory, ignoring the storage section of the configuration.
func WithInMemoryStorage() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the root logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithLogRing exposes an in-memory log ring through Logs.
func WithLogRing(ring *logging.Ring) EngineOption {
	return func(o *engineOptions) {
		o.ring = ring
	}
}

// NewEngine builds every component from cfg. A nil cfg uses config.Default().
// Components are created leaves first: providers, storage, job queue,
// vector store, understanding, ingestion, chat, workflow and executor.
// Nothing runs in the background until Start is called.
func NewEngine(ctx context.Context, cfg *config.Config, opts ...EngineOption) (engine *Engine, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:            cfg,
		ring:           options.ring,
		logger:         logger.With("component", "engine"),
		closeStore:     func() error { return nil },
		closeProviders: func() {},
	}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	// Providers
	providers := options.providers
	if !options.providersSet {
		built, err := langchain.NewProviders(ctx, cfg.ProviderConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create providers: %w", err)
		}
		providers = langchain.AsProviders(built)
		e.closeProviders = func() { langchain.CloseAll(built) }
	}
	if len(providers) == 0 {
		e.logger.Warn("no AI provider configured; chat, search and planning will fail")
	}
	e.chain = ai.NewChain(providers,
		ai.WithCallTimeout(cfg.AI.Timeout),
		ai.WithLogger(logger.With("component", "ai-chain")),
	)

	// Storage
	if err := e.openStorage(options.inMemory); err != nil {
		return nil, err
	}

	// Job queue
	e.queue, err = jobs.NewQueue(
		jobs.WithPoolSize(cfg.Jobs.PoolSize),
		jobs.WithLogger(logger.With("component", "jobs")),
	)
	if err != nil {
		return nil, err
	}

	// Vector store
	e.store, err = search.NewStore(e.docRepo, e.chain,
		search.WithThreshold(cfg.Search.Threshold),
		search.WithDefaultLimit(cfg.Search.TopK),
		search.WithBackfillDelay(cfg.Search.BackfillDelay),
		search.WithLogger(logger.With("component", "search")),
	)
	if err != nil {
		return nil, err
	}

	// Understanding and ingestion
	e.processor, err = understanding.NewProcessor(e.docRepo, e.chain,
		understanding.WithLogger(logger.With("component", "understanding")),
	)
	if err != nil {
		return nil, err
	}
	e.pipeline, err = ingestion.NewPipeline(e.docRepo, e.queue, e.processor, e.store,
		ingestion.WithLogger(logger.With("component", "ingestion")),
	)
	if err != nil {
		return nil, err
	}

	// Chat
	e.chat, err = chat.NewService(e.store, e.chain,
		chat.WithTopK(cfg.Search.TopK),
		chat.WithLogger(logger.With("component", "chat")),
	)
	if err != nil {
		return nil, err
	}

	// Workflow and executor
	e.manager, err = workflow.NewManager(e.taskRepo,
		workflow.WithManagerLogger(logger.With("component", "workflow")),
	)
	if err != nil {
		return nil, err
	}
	planner, err := workflow.NewPlanner(e.chain,
		workflow.WithPlannerLogger(logger.With("component", "planner")),
	)
	if err != nil {
		return nil, err
	}
	toolbox, err := workflow.NewLocalToolbox(cfg.Executor.Workspace,
		workflow.WithAllowCommands(cfg.Executor.AllowCommands),
		workflow.WithCommandTimeout(cfg.Executor.StepTimeout),
	)
	if err != nil {
		return nil, err
	}
	e.executor, err = workflow.NewExecutor(e.manager, planner, toolbox,
		workflow.WithInterval(cfg.Executor.Interval),
		workflow.WithStepTimeout(cfg.Executor.StepTimeout),
		workflow.WithLogger(logger.With("component", "executor")),
	)
	if err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) openStorage(inMemory bool) error {
	var err error
	switch {
	case inMemory:
		var backend *badger.Backend
		e.docRepo, e.taskRepo, backend, err = badger.NewMemoryRepositories()
		if err == nil {
			e.closeStore = backend.Close
		}
	case e.cfg.Storage.Backend == config.StorageSQLite:
		var db *sqlite.DB
		e.docRepo, e.taskRepo, db, err = sqlite.OpenRepositories(e.cfg.StoragePath())
		if err == nil {
			e.closeStore = db.Close
		}
	default:
		var backend *badger.Backend
		e.docRepo, e.taskRepo, backend, err = badger.OpenRepositories(e.cfg.StoragePath())
		if err == nil {
			e.closeStore = backend.Close
		}
	}
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	return nil
}

// Warm loads every stored vector into the search cache and embeds the
// documents that have none.
func (e *Engine) Warm(ctx context.Context) (*search.InitReport, error) {
	report, err := e.store.Initialize(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	e.logger.Info("vector store ready",
		"loaded", report.Loaded, "embedded", report.Embedded, "failed", len(report.Failed))
	return report, nil
}

// Start warms the vector cache and then starts the task executor when it
// is enabled. The executor runs until ctx is done or Close is called.
func (e *Engine) Start(ctx context.Context) (*search.InitReport, error) {
	report, err := e.Warm(ctx)
	if err != nil {
		return report, err
	}
	if e.cfg.Executor.Enabled {
		e.executor.Start(ctx)
	}
	return report, nil
}

// Close stops background work and releases resources in reverse
// construction order. It is safe to call on a partially built Engine.
func (e *Engine) Close() error {
	var errs []error

	if e.executor != nil {
		e.executor.Stop()
	}
	if e.queue != nil {
		if err := e.queue.Release(jobDrainTimeout); err != nil {
			e.logger.Error("error releasing job queue", "err", err)
			errs = append(errs, err)
		}
	}

	e.closeProviders()

	if e.taskRepo != nil {
		if err := e.taskRepo.Close(); err != nil {
			e.logger.Error("error closing task repository", "err", err)
			errs = append(errs, err)
		}
		e.taskRepo = nil
	}
	if e.docRepo != nil {
		if err := e.docRepo.Close(); err != nil {
			e.logger.Error("error closing document repository", "err", err)
			errs = append(errs, err)
		}
		e.docRepo = nil
	}
	if err := e.closeStore(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	e.closeStore = func() error { return nil }
	e.closeProviders = func() {}

	return errors.Join(errs...)
}

// Reembed recomputes every stored embedding with the current providers
// and reloads the vector cache.
func (e *Engine) Reembed(ctx context.Context, cfg *reembed.Config, progress io.Writer) (*reembed.Report, error) {
	r, err := reembed.NewReembedder(e.docRepo, e.chain, cfg, progress)
	if err != nil {
		return nil, err
	}
	report, err := r.Run(ctx)
	if err != nil {
		return report, err
	}
	if _, err := e.Warm(ctx); err != nil {
		return report, err
	}
	return report, nil
}

func (e *Engine) Config() *config.Config {
	return e.cfg
}

func (e *Engine) DocumentRepository() storage.DocumentRepository {
	return e.docRepo
}

func (e *Engine) Providers() *ai.Chain {
	return e.chain
}

func (e *Engine) Jobs() *jobs.Queue {
	return e.queue
}

func (e *Engine) Store() *search.Store {
	return e.store
}

func (e *Engine) Pipeline() *ingestion.Pipeline {
	return e.pipeline
}

func (e *Engine) Chat() *chat.Service {
	return e.chat
}

func (e *Engine) Workflow() *workflow.Manager {
	return e.manager
}

func (e *Engine) Executor() *workflow.Executor {
	return e.executor
}

// Logs returns the in-memory log ring, or nil when none was configured.
func (e *Engine) Logs() *logging.Ring {
	return e.ring
}
