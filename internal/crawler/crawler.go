package crawler

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"rulegraph/internal/extractor"

	"golang.org/x/sync/errgroup"
)

// Crawler scans a directory for rule source files.
type Crawler struct {
	extractor *extractor.Extractor
	ignored   []string
	workers   int
	logger    *slog.Logger
}

// NewCrawler creates a new crawler instance.
func NewCrawler(ext *extractor.Extractor, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		extractor: ext,
		ignored:   []string{".git", "__pycache__", "tests", "testdata", "node_modules", ".venv"},
		workers:   runtime.GOMAXPROCS(0),
		logger:    logger,
	}
}

// SetWorkers bounds the number of files parsed concurrently.
func (c *Crawler) SetWorkers(n int) {
	if n > 0 {
		c.workers = n
	}
}

// ScanProject walks the root directory, parses every Python file in
// parallel and streams one FileResult per file to onFile, in path order.
// Files that fail to parse are logged and skipped.
func (c *Crawler) ScanProject(ctx context.Context, root string, onFile func(*extractor.FileResult)) error {
	paths, err := c.collect(root)
	if err != nil {
		return err
	}

	results := make([]*extractor.FileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := c.extractor.ExtractFromFile(path)
			if err != nil {
				// Log and continue instead of failing the whole scan
				c.logger.Warn("skipping unparsable file", "path", path, "error", err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		if res != nil {
			onFile(res)
		}
	}
	return nil
}

func (c *Crawler) collect(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip ignored directories
		if d.IsDir() {
			if path == root {
				return nil
			}
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			return nil
		}

		// Only process Python modules, not tests
		name := d.Name()
		if !strings.HasSuffix(name, ".py") || strings.HasPrefix(name, "test_") || strings.HasSuffix(name, "_test.py") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}
