package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/glyph"
	"github.com/poiesic/glyph/config"
	"github.com/poiesic/glyph/jobs"
	"github.com/poiesic/glyph/logging"
	"github.com/poiesic/glyph/reembed"
	"github.com/poiesic/glyph/server"
)

type runner struct {
	engineOpts []glyph.EngineOption
	ring       *logging.Ring
	cleanup    func() error
}

func (r *runner) setupLogger(c *cli.Context) error {
	level, err := logging.ParseLevel(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	logger, ring, cleanup := logging.Setup(logging.Options{
		Level:  level,
		File:   c.String("log-file"),
		Writer: c.App.ErrWriter,
	})
	slog.SetDefault(logger)
	r.ring = ring
	r.cleanup = cleanup
	return nil
}

func (r *runner) closeLogger(c *cli.Context) error {
	if r.cleanup == nil {
		return nil
	}
	return r.cleanup()
}

func (r *runner) openEngine(c *cli.Context, modify func(*config.Config)) (*glyph.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if modify != nil {
		modify(cfg)
	}

	opts := append([]glyph.EngineOption{glyph.WithLogRing(r.ring)}, r.engineOpts...)
	return glyph.NewEngine(c.Context, cfg, opts...)
}

func (r *runner) serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := r.openEngine(c, func(cfg *config.Config) {
		if addr := c.String("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		if c.Bool("no-executor") {
			cfg.Executor.Enabled = false
		}
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	srv, err := server.New(engine, server.WithLogger(slog.Default().With("component", "server")))
	if err != nil {
		return err
	}

	// Backfill can take a while with a remote embedder; serve meanwhile.
	started := make(chan struct{})
	go func() {
		defer close(started)
		if _, err := engine.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("engine start failed", "err", err)
		}
	}()

	err = srv.ListenAndServe(ctx, engine.Config().Server.Addr)
	stop()
	<-started
	return err
}

func (r *runner) ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one path is required")
	}

	engine, err := r.openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := c.Context
	pipeline := engine.Pipeline()
	total := 0
	var failed []string
	for _, path := range c.Args().Slice() {
		info, err := os.Stat(path)
		if err != nil {
			failed = append(failed, path)
			slog.Error("cannot ingest", "path", path, "err", err)
			continue
		}

		if info.IsDir() {
			docs, err := pipeline.IngestDirectory(ctx, path)
			if err != nil {
				failed = append(failed, path)
				slog.Error("directory ingestion failed", "path", path, "err", err)
			}
			total += len(docs)
			continue
		}

		if _, err := pipeline.IngestFile(ctx, path); err != nil {
			failed = append(failed, path)
			slog.Error("file ingestion failed", "path", path, "err", err)
			continue
		}
		total++
	}

	if err := engine.Jobs().Wait(ctx); err != nil {
		return err
	}
	stats := engine.Jobs().Stats()
	fmt.Fprintf(c.App.Writer, "Ingested %d documents (%d enrichment jobs completed, %d failed)\n",
		total, stats[jobs.StatusCompleted], stats[jobs.StatusFailed])

	if len(failed) > 0 {
		return fmt.Errorf("failed to ingest: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (r *runner) searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("query is required")
	}

	engine, err := r.openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	if _, err := engine.Warm(c.Context); err != nil {
		return err
	}
	results, err := engine.Store().Search(c.Context, query, c.Int("limit"))
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "No matching documents")
		return nil
	}
	for _, res := range results {
		name := res.Document.Filename()
		if name == "" {
			name = fmt.Sprintf("document %d", res.Document.ID)
		}
		fmt.Fprintf(c.App.Writer, "%.3f  %s\n", res.Score, name)
	}
	return nil
}

func (r *runner) askCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")

	engine, err := r.openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	if _, err := engine.Warm(c.Context); err != nil {
		return err
	}
	answer, err := engine.Chat().Answer(c.Context, question, nil)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(c.App.Writer, "\nSources:")
		for _, src := range answer.Sources {
			fmt.Fprintf(c.App.Writer, "  [%d] %s (%.3f)\n", src.ID, src.Filename, src.Score)
		}
	}
	return nil
}

func (r *runner) taskAddCommand(c *cli.Context) error {
	engine, err := r.openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	task, err := engine.Workflow().CreateTask(c.Context,
		strings.Join(c.Args().Slice(), " "), c.String("description"), c.Int("priority"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Created task %d: %s\n", task.ID, task.Title)
	return nil
}

func (r *runner) taskListCommand(c *cli.Context) error {
	engine, err := r.openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	tasks, err := engine.Workflow().ListTasks(c.Context)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		fmt.Fprintf(c.App.Writer, "%d\t%s\t%d\t%s\n", t.ID, t.Status, t.Priority, t.Title)
		if t.Error != "" {
			fmt.Fprintf(c.App.Writer, "\terror: %s\n", t.Error)
		}
	}
	return nil
}

func (r *runner) reembedCommand(c *cli.Context) error {
	engine, err := r.openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	cfg := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		OnlyMissing:    c.Bool("only-missing"),
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if cfg.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	report, err := engine.Reembed(c.Context, cfg, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Reembedded %d of %d documents (%d skipped, %d failed)\n",
		report.Embedded, report.Total, report.Skipped, report.Failed)
	return nil
}
