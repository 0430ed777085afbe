package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rulegraph/internal/analysis"
	"rulegraph/internal/config"
	"rulegraph/internal/crawler"
	"rulegraph/internal/extractor"
	"rulegraph/internal/resolver"
	"rulegraph/internal/storage"
)

const (
	OriginSource   = "source"
	OriginSnapshot = "snapshot"
)

// Dataset is one country's loaded corpus. Everything reachable from it is
// read-only except the append-only extraction cache and the lazily built
// usage index, so it is safe for concurrent readers.
type Dataset struct {
	Country   string
	Label     string
	Origin    string
	LoadedAt  time.Time
	Repo      *Repository
	Params    *resolver.Chain
	Extractor *extractor.CachedExtractor

	paramFiles []storage.ParameterFile

	usageOnce sync.Once
	usage     *analysis.Analyzer
	usageErr  error
}

func (d *Dataset) Get(name string) (*extractor.VariableDefinition, bool) {
	return d.Repo.Get(name)
}

func (d *Dataset) Extract(def *extractor.VariableDefinition) *extractor.ReferenceSet {
	return d.Extractor.Extract(def)
}

func (d *Dataset) IsParameterPath(name string) bool {
	return d.Extractor.IsParameterPath(name)
}

func (d *Dataset) Resolve(path string, asOf time.Time) resolver.Value {
	return d.Params.Resolve(path, asOf)
}

// Usage returns the reverse reference index, building it on first use.
// Building it extracts every definition, which also warms the cache.
func (d *Dataset) Usage(ctx context.Context) (*analysis.Analyzer, error) {
	d.usageOnce.Do(func() {
		d.usage, d.usageErr = analysis.NewAnalyzer(context.WithoutCancel(ctx), d.Repo.All(), d.Extractor)
	})
	return d.usage, d.usageErr
}

// Snapshot captures the dataset for the snapshot store.
func (d *Dataset) Snapshot() *storage.Snapshot {
	return &storage.Snapshot{
		Country:        d.Country,
		Version:        d.Repo.Version(),
		CreatedAt:      time.Now().UTC(),
		Variables:      d.Repo.All(),
		Enums:          d.Repo.Enums(),
		ParameterFiles: d.paramFiles,
	}
}

// Loader builds datasets from source trees or snapshots.
type Loader struct {
	opts   extractor.Options
	logger *slog.Logger
}

func NewLoader(opts extractor.Options, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{opts: opts, logger: logger}
}

// Load reads one dataset. A configured snapshot takes precedence over the
// source directories.
func (l *Loader) Load(ctx context.Context, country string, cfg config.Dataset) (*Dataset, error) {
	ext, err := extractor.NewExtractor("python", l.opts)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{
		Country:   country,
		Label:     cfg.Label,
		Extractor: extractor.NewCachedExtractor(ext),
	}
	if ds.Label == "" {
		ds.Label = country
	}

	if cfg.Snapshot != "" {
		err = l.loadSnapshot(ctx, ds, cfg.Snapshot)
	} else {
		err = l.loadSource(ctx, ds, ext, cfg)
	}
	if err != nil {
		return nil, err
	}
	ds.LoadedAt = time.Now()
	return ds, nil
}

func (l *Loader) loadSource(ctx context.Context, ds *Dataset, ext *extractor.Extractor, cfg config.Dataset) error {
	if cfg.VariablesDir == "" {
		return fmt.Errorf("dataset %s: no variables_dir configured", ds.Country)
	}
	indexer := NewIndexer(crawler.NewCrawler(ext, l.logger), l.logger)
	repo, err := indexer.BuildRepository(ctx, cfg.VariablesDir)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", ds.Country, err)
	}

	var stages []resolver.Source
	for i, dir := range cfg.ParametersDirs {
		files, err := resolver.LoadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				l.logger.Warn("parameters directory missing", "country", ds.Country, "dir", dir)
				continue
			}
			return fmt.Errorf("dataset %s: %w", ds.Country, err)
		}
		stage := filepath.ToSlash(dir)
		stages = append(stages, l.buildStage(ds.Country, stage, files))
		for _, f := range files {
			ds.paramFiles = append(ds.paramFiles, storage.ParameterFile{Stage: stage, Order: i, RelPath: f.RelPath, Data: f.Data})
		}
	}

	ds.Origin = OriginSource
	ds.Repo = repo
	ds.Params = resolver.NewChain(stages...)
	return nil
}

func (l *Loader) loadSnapshot(ctx context.Context, ds *Dataset, path string) error {
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("dataset %s: open snapshot: %w", ds.Country, err)
	}
	defer store.Close()

	snap, err := store.LoadSnapshot(ctx, ds.Country)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", ds.Country, err)
	}

	// Definitions from one module share the module as a pseudo-file so that
	// duplicate handling and enum linking behave as for a source tree.
	byFile := make(map[string]*extractor.FileResult)
	var files []*extractor.FileResult
	fileOf := func(path string) *extractor.FileResult {
		if f, ok := byFile[path]; ok {
			return f
		}
		f := &extractor.FileResult{Filepath: path}
		byFile[path] = f
		files = append(files, f)
		return f
	}
	for _, def := range snap.Variables {
		f := fileOf(def.Filepath)
		f.Variables = append(f.Variables, def)
	}
	for _, en := range snap.Enums {
		f := fileOf(en.Filepath)
		f.Enums = append(f.Enums, en)
	}

	var stages []resolver.Source
	var current []resolver.File
	stage, order := "", -1
	flush := func() {
		if order >= 0 {
			stages = append(stages, l.buildStage(ds.Country, stage, current))
		}
	}
	for _, f := range snap.ParameterFiles {
		if f.Order != order || f.Stage != stage {
			flush()
			stage, order, current = f.Stage, f.Order, nil
		}
		current = append(current, resolver.File{RelPath: f.RelPath, Data: f.Data})
	}
	flush()

	ds.Origin = OriginSnapshot
	ds.Repo = NewRepository(files, l.logger)
	ds.Params = resolver.NewChain(stages...)
	ds.paramFiles = snap.ParameterFiles
	return nil
}

func (l *Loader) buildStage(country, name string, files []resolver.File) *resolver.Stage {
	tree, err := resolver.BuildTree(files)
	if err != nil {
		l.logger.Warn("skipped malformed parameter files", "country", country, "stage", name, "error", err)
	}
	return resolver.NewStage(name, tree)
}
