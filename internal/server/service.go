package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rulegraph/internal/analysis"
	"rulegraph/internal/config"
	"rulegraph/internal/extractor"
	"rulegraph/internal/generator"
	"rulegraph/internal/graph"
	"rulegraph/internal/index"
	"rulegraph/internal/resolver"
	"rulegraph/internal/retrieval"
)

// ErrParameterNotFound is returned when no parameter source has a path.
var ErrParameterNotFound = errors.New("parameter not found")

// Service answers API queries against the dataset registry. Every call
// resolves its dataset once and works on that dataset only, so a reload
// in the middle of a request is not observed by it.
type Service struct {
	registry *index.Registry
	cfg      *config.Config
	logger   *slog.Logger
}

func NewService(registry *index.Registry, cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Service{registry: registry, cfg: cfg, logger: logger}
}

// DefaultCountry is used when a request names no country: "us" when it is
// configured, otherwise the first configured id.
func (s *Service) DefaultCountry() string {
	countries := s.registry.Countries()
	for _, c := range countries {
		if c == "us" {
			return c
		}
	}
	if len(countries) > 0 {
		return countries[0]
	}
	return "us"
}

func (s *Service) dataset(ctx context.Context, country string) (*index.Dataset, error) {
	country = strings.ToLower(strings.TrimSpace(country))
	if country == "" {
		country = s.DefaultCountry()
	}
	return s.registry.Get(ctx, country)
}

// Datasets reports every configured country without loading any.
func (s *Service) Datasets() []DatasetInfo {
	out := make([]DatasetInfo, 0, len(s.registry.Countries()))
	for _, country := range s.registry.Countries() {
		cfg, _ := s.registry.Config(country)
		info := DatasetInfo{Country: country, Label: cfg.Label}
		if info.Label == "" {
			info.Label = country
		}
		if ds, ok := s.registry.Loaded(country); ok {
			info = datasetInfo(ds)
		}
		out = append(out, info)
	}
	return out
}

func datasetInfo(ds *index.Dataset) DatasetInfo {
	loadedAt := ds.LoadedAt
	return DatasetInfo{
		Country:   ds.Country,
		Label:     ds.Label,
		Loaded:    true,
		Origin:    ds.Origin,
		Variables: ds.Repo.Len(),
		Version:   ds.Repo.Version(),
		LoadedAt:  &loadedAt,
	}
}

func summaryOf(ds *index.Dataset, def *extractor.VariableDefinition) VariableSummary {
	return VariableSummary{
		Name:          def.Name,
		Label:         def.DisplayLabel(),
		HasParameters: len(ds.Extract(def).Parameters) > 0,
	}
}

// Variables lists every variable of a dataset sorted by name.
func (s *Service) Variables(ctx context.Context, country string) (*index.Dataset, []VariableSummary, error) {
	ds, err := s.dataset(ctx, country)
	if err != nil {
		return nil, nil, err
	}
	defs := ds.Repo.All()
	out := make([]VariableSummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, summaryOf(ds, def))
	}
	return ds, out, nil
}

// Search ranks variables against query. Queries shorter than two
// characters yield no results rather than an error.
func (s *Service) Search(ctx context.Context, country, query string) (*index.Dataset, []VariableSummary, error) {
	ds, err := s.dataset(ctx, country)
	if err != nil {
		return nil, nil, err
	}
	cfg := retrieval.DefaultConfig()
	if s.cfg.Graph.SearchLimit > 0 {
		cfg.Limit = s.cfg.Graph.SearchLimit
	}
	matches, err := ds.Repo.Search(query, cfg)
	if errors.Is(err, retrieval.ErrQueryTooShort) {
		return ds, []VariableSummary{}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	out := make([]VariableSummary, 0, len(matches))
	for _, m := range matches {
		out = append(out, summaryOf(ds, m.Definition))
	}
	return ds, out, nil
}

// Describe collects the details of one variable, including the variables
// that reference it.
func (s *Service) Describe(ctx context.Context, country, name string, level resolver.DetailLevel, asOf time.Time) (*index.Dataset, *generator.VariableDetails, error) {
	ds, err := s.dataset(ctx, country)
	if err != nil {
		return nil, nil, err
	}
	def, ok := ds.Get(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", graph.ErrVariableNotFound, name)
	}
	var usedBy []analysis.Usage
	if usage, err := ds.Usage(ctx); err != nil {
		s.logger.WarnContext(ctx, "usage index unavailable", "country", ds.Country, "error", err)
	} else {
		usedBy = usage.UsedBy(name)
	}
	return ds, generator.Describe(ds, def, level, asOf, usedBy), nil
}

// Graph builds the dependency graph of req.Variable. The request's
// country is filled in with the dataset actually used.
func (s *Service) Graph(ctx context.Context, req *graph.Request) (*index.Dataset, *graph.Graph, error) {
	ds, err := s.dataset(ctx, req.Country)
	if err != nil {
		return nil, nil, err
	}
	req.Country = ds.Country
	b := graph.NewBuilder(ds, graph.Options{
		DefaultStops: s.cfg.Graph.DefaultStopVariables,
		Logger:       s.logger,
	})
	g, err := b.Build(ctx, *req)
	if err != nil {
		return nil, nil, err
	}
	return ds, g, nil
}

// Parameter resolves one parameter path and reports which sources know
// it and which variables read it.
func (s *Service) Parameter(ctx context.Context, country, path string, level resolver.DetailLevel, asOf time.Time) (*index.Dataset, *ParameterInfo, error) {
	ds, err := s.dataset(ctx, country)
	if err != nil {
		return nil, nil, err
	}
	path = strings.ReplaceAll(strings.Trim(strings.TrimSpace(path), "/"), "/", ".")
	v := ds.Resolve(path, asOf)
	if !v.Available() {
		return nil, nil, fmt.Errorf("%w: %s", ErrParameterNotFound, path)
	}

	info := &ParameterInfo{
		Path:        path,
		Label:       v.Metadata.Label,
		Description: v.Metadata.Description,
		Unit:        v.Metadata.Unit,
		Value:       resolver.Format(v, level),
		Structure:   v,
		Stages:      []StageInfo{},
		UsedBy:      []string{},
		Metadata:    v.Metadata,
	}
	if info.Label == "" {
		info.Label = path[strings.LastIndex(path, ".")+1:]
	}
	for _, st := range ds.Params.Trace(path) {
		info.Stages = append(info.Stages, StageInfo{Source: st.Source, Kind: st.Kind})
	}
	if usage, err := ds.Usage(ctx); err == nil {
		info.UsedBy = append(info.UsedBy, usage.ParameterUsers(path)...)
	}
	return ds, info, nil
}

// Impact reports the variables affected by a change to name, up to
// maxHops reverse references away (0 is unbounded).
func (s *Service) Impact(ctx context.Context, country, name string, maxHops int) (*index.Dataset, *analysis.ImpactReport, error) {
	ds, err := s.dataset(ctx, country)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := ds.Get(name); !ok {
		return nil, nil, fmt.Errorf("%w: %s", graph.ErrVariableNotFound, name)
	}
	usage, err := ds.Usage(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ds, usage.AnalyzeImpact(name, maxHops), nil
}

// Reload rebuilds a dataset from its configured origin.
func (s *Service) Reload(ctx context.Context, country string) (*index.Dataset, error) {
	country = strings.ToLower(strings.TrimSpace(country))
	if country == "" {
		country = s.DefaultCountry()
	}
	return s.registry.Reload(ctx, country)
}
