package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"rulegraph/internal/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

// ErrUnknownDataset is returned for a country that is not configured.
var ErrUnknownDataset = errors.New("unknown dataset")

// Registry holds one dataset per configured country. Datasets load lazily
// on first use; concurrent first requests share a single load. A reload
// swaps the dataset pointer, so in-flight readers keep the dataset they
// started with.
type Registry struct {
	mu       sync.RWMutex
	configs  map[string]config.Dataset
	datasets map[string]*Dataset
	loader   *Loader
	flight   singleflight.Group
	logger   *slog.Logger
}

func NewRegistry(configs map[string]config.Dataset, loader *Loader, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	cfgs := make(map[string]config.Dataset, len(configs))
	for k, v := range configs {
		cfgs[k] = v
	}
	return &Registry{
		configs:  cfgs,
		datasets: make(map[string]*Dataset),
		loader:   loader,
		logger:   logger,
	}
}

// Countries returns the configured dataset ids in sorted order.
func (r *Registry) Countries() []string {
	out := make([]string, 0, len(r.configs))
	for id := range r.configs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Config returns the configuration of a dataset.
func (r *Registry) Config(country string) (config.Dataset, bool) {
	cfg, ok := r.configs[country]
	return cfg, ok
}

// Loaded returns a dataset only if it is already in memory.
func (r *Registry) Loaded(country string) (*Dataset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.datasets[country]
	return ds, ok
}

// Get returns a country's dataset, loading it on first use.
func (r *Registry) Get(ctx context.Context, country string) (*Dataset, error) {
	if ds, ok := r.Loaded(country); ok {
		return ds, nil
	}
	if _, ok := r.configs[country]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, country)
	}
	v, err, _ := r.flight.Do("load:"+country, func() (any, error) {
		if ds, ok := r.Loaded(country); ok {
			return ds, nil
		}
		// Shared by all waiters; detached from the first caller's cancellation.
		return r.load(context.WithoutCancel(ctx), country)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

// Reload rebuilds a dataset from its configured origin and swaps it in.
// On failure the previous dataset stays in place.
func (r *Registry) Reload(ctx context.Context, country string) (*Dataset, error) {
	if _, ok := r.configs[country]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, country)
	}
	v, err, _ := r.flight.Do("reload:"+country, func() (any, error) {
		// Shared by all waiters; detached from the first caller's cancellation.
		return r.load(context.WithoutCancel(ctx), country)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

func (r *Registry) load(ctx context.Context, country string) (*Dataset, error) {
	cfg := r.configs[country]
	ctx, span := tracer.Start(ctx, "index.LoadDataset")
	defer span.End()
	span.SetAttributes(attribute.String("country", country))

	start := time.Now()
	ds, err := r.loader.Load(ctx, country, cfg)
	elapsed := time.Since(start)
	datasetLoadDuration.WithLabelValues(country).Observe(elapsed.Seconds())

	origin := OriginSource
	if cfg.Snapshot != "" {
		origin = OriginSnapshot
	}
	if err != nil {
		datasetLoads.WithLabelValues(country, origin, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("dataset load failed", "country", country, "error", err)
		return nil, err
	}
	datasetLoads.WithLabelValues(country, origin, "ok").Inc()
	datasetVariables.WithLabelValues(country).Set(float64(ds.Repo.Len()))
	span.SetAttributes(
		attribute.Int("variables", ds.Repo.Len()),
		attribute.String("version", ds.Repo.Version()),
	)

	r.mu.Lock()
	r.datasets[country] = ds
	r.mu.Unlock()

	r.logger.Info("dataset loaded",
		"country", country,
		"origin", ds.Origin,
		"variables", ds.Repo.Len(),
		"parameter_sources", ds.Params.Len(),
		"version", ds.Repo.Version(),
		"duration", elapsed.Round(time.Millisecond),
	)
	return ds, nil
}
