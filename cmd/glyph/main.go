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


package main

import (
	"log"
	"os"
	"time"

	"github.com/poiesic/glyph"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the CLI. Engine options are applied to every engine a
// command opens.
func newApp(engineOpts ...glyph.EngineOption) *cli.App {
	r := &runner{engineOpts: engineOpts}

	return &cli.App{
		Name:  "glyph",
		Usage: "Personal knowledge engine: ingest documents, search them, chat with them and run tasks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"GLYPH_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Also write JSON logs to this file",
				EnvVars: []string{"GLYPH_LOG_FILE"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file (default glyph.yaml, or $GLYPH_CONFIG)",
			},
		},
		Before: r.setupLogger,
		After:  r.closeLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, the background enrichment jobs and the task executor",
				Action: r.serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address, overrides server.addr and PORT",
					},
					&cli.BoolFlag{
						Name:  "no-executor",
						Usage: "Do not run queued tasks",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest files or directories and wait for their enrichment",
				ArgsUsage: "PATH...",
				Action:    r.ingestCommand,
			},
			{
				Name:      "search",
				Usage:     "Find the documents most similar to a query",
				ArgsUsage: "QUERY",
				Action:    r.searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results (0 uses search.top_k)",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the knowledge base",
				ArgsUsage: "QUESTION",
				Action:    r.askCommand,
			},
			{
				Name:  "task",
				Usage: "Manage autonomous tasks",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Queue a new task",
						ArgsUsage: "TITLE",
						Action:    r.taskAddCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:    "description",
								Aliases: []string{"d"},
								Usage:   "What the task should accomplish",
							},
							&cli.IntFlag{
								Name:    "priority",
								Aliases: []string{"p"},
								Usage:   "Higher runs first",
							},
						},
					},
					{
						Name:   "list",
						Usage:  "List tasks in creation order",
						Action: r.taskListCommand,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all documents with the configured embedding provider",
				Action: r.reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per document",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "only-missing",
						Usage: "Only embed documents without a vector",
					},
				},
			},
		},
	}
}
