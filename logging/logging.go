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


package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Options configures Setup.
type Options struct {
	// Level is the minimum level for every handler.
	Level slog.Level
	// File, when set, receives JSON records appended to it.
	File string
	// Writer receives text records. Defaults to os.Stderr.
	Writer io.Writer
	// RingCapacity is the number of records kept in memory.
	RingCapacity int
}

// Setup creates a logger fanning out to a text handler, an in-memory
// Ring and, when opts.File is set, a JSON file. It returns the logger,
// the ring, and a cleanup function closing the file.
// A log file that cannot be opened is reported and skipped.
func Setup(opts Options) (*slog.Logger, *Ring, func() error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	textHandler := slog.NewTextHandler(w, handlerOpts)
	ring := NewRing(opts.RingCapacity, opts.Level)

	handlers := []slog.Handler{textHandler, ring}
	cleanup := func() error { return nil }

	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			slog.New(textHandler).Error("failed to open log file, skipping", "error", err, "file", opts.File)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(file, handlerOpts))
			cleanup = file.Close
		}
	}

	return slog.New(slogmulti.Fanout(handlers...)), ring, cleanup
}

// ParseLevel converts debug, info, warn or error (any case) to a slog.Level.
// The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
