package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"rulegraph/internal/crawler"
	"rulegraph/internal/extractor"
)

// Indexer orchestrates corpus scanning and repository construction.
type Indexer struct {
	crawler *crawler.Crawler
	logger  *slog.Logger
}

// NewIndexer creates a new indexer.
func NewIndexer(c *crawler.Crawler, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		crawler: c,
		logger:  logger,
	}
}

// Scan parses every rule file under root.
func (i *Indexer) Scan(ctx context.Context, root string) ([]*extractor.FileResult, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("variables directory: %w", err)
	}
	var files []*extractor.FileResult
	err := i.crawler.ScanProject(ctx, root, func(res *extractor.FileResult) {
		files = append(files, res)
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return files, nil
}

// BuildRepository scans the variables directory and indexes the result.
func (i *Indexer) BuildRepository(ctx context.Context, root string) (*Repository, error) {
	files, err := i.Scan(ctx, root)
	if err != nil {
		return nil, err
	}
	return NewRepository(files, i.logger), nil
}

// export is the JSON shape written by SaveRepository.
type export struct {
	Version   string                          `json:"version"`
	Variables []*extractor.VariableDefinition `json:"variables"`
	Enums     []*extractor.EnumDefinition     `json:"enums"`
}

// SaveRepository writes the definitions (without sources) to a JSON file.
func SaveRepository(r *Repository, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export{Version: r.Version(), Variables: r.All(), Enums: r.Enums()}); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return nil
}
