package ingestion

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/glyph/core"
)

// IngestDirectory walks root recursively and ingests every file whose
// extension is on the allow-list. Hidden directories and the configured
// skip directories are not descended into. A file that fails is logged and
// left out of the result; the walk only stops early when ctx is done.
func (p *Pipeline) IngestDirectory(ctx context.Context, root string) ([]*core.Document, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &core.IngestionError{Path: root, Err: err}
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, &core.IngestionError{Path: absRoot, Err: err}
	}
	if !info.IsDir() {
		return nil, &core.IngestionError{Path: absRoot, Err: core.ErrNotDirectory}
	}

	p.logger.Info("scanning directory", "path", absRoot)

	var (
		docs    []*core.Document
		failed  int
		skipped int
	)
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			p.logger.Warn("error scanning path", "path", path, "err", err)
			return nil
		}

		if d.IsDir() {
			if path != absRoot && p.skipDir(d.Name()) {
				p.logger.Debug("skipping directory", "path", path)
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if !p.Supports(path) {
			skipped++
			return nil
		}

		doc, err := p.IngestFile(ctx, path)
		if err != nil {
			failed++
			p.logger.Warn("failed to ingest file", "path", path, "err", err)
			return nil
		}
		docs = append(docs, doc)
		return nil
	}

	if err := filepath.WalkDir(absRoot, walkFn); err != nil {
		return docs, err
	}

	p.logger.Info("directory ingested", "path", absRoot, "ingested", len(docs), "failed", failed, "skipped", skipped)
	return docs, nil
}

func (p *Pipeline) skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || p.skipDirs[name]
}
