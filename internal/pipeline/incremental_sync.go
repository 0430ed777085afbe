package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"rulegraph/internal/config"
	"rulegraph/internal/index"

	"github.com/fsnotify/fsnotify"
)

// Reloader rebuilds one dataset. index.Registry satisfies it.
type Reloader interface {
	Reload(ctx context.Context, country string) (*index.Dataset, error)
}

// IncrementalSync watches the source directories of every dataset and
// reloads a dataset once its files stop changing for the debounce window.
// Datasets served from a snapshot are not watched.
type IncrementalSync struct {
	reloader Reloader
	roots    map[string]string // absolute directory -> country
	debounce time.Duration
	ignored  []string
	logger   *slog.Logger

	mu       sync.Mutex
	onReload func(country string, ds *index.Dataset, err error)
}

func NewIncrementalSync(reloader Reloader, datasets map[string]config.Dataset, logger *slog.Logger) *IncrementalSync {
	if logger == nil {
		logger = slog.Default()
	}
	s := &IncrementalSync{
		reloader: reloader,
		roots:    make(map[string]string),
		debounce: 500 * time.Millisecond,
		ignored:  []string{".git", "__pycache__", "node_modules", ".venv"},
		logger:   logger,
	}
	for country, ds := range datasets {
		if ds.Snapshot != "" {
			continue
		}
		dirs := append([]string{ds.VariablesDir}, ds.ParametersDirs...)
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			if abs, err := filepath.Abs(dir); err == nil {
				s.roots[abs] = country
			}
		}
	}
	return s
}

// SetDebounce changes the quiet period before a reload.
func (s *IncrementalSync) SetDebounce(d time.Duration) {
	if d > 0 {
		s.debounce = d
	}
}

// OnReload registers a callback invoked after every reload attempt.
func (s *IncrementalSync) OnReload(fn func(country string, ds *index.Dataset, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = fn
}

// Run watches until ctx is cancelled.
func (s *IncrementalSync) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range s.sortedRoots() {
		if err := s.addRecursive(watcher, root); err != nil {
			s.logger.Warn("cannot watch directory", "dir", root, "error", err)
		}
	}
	s.logger.Info("watching dataset sources", "dirs", len(s.roots), "debounce", s.debounce)

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if s.shouldIgnore(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = s.addRecursive(watcher, event.Name)
				}
			}
			if !relevant(event) {
				continue
			}
			country, ok := s.countryFor(event.Name)
			if !ok {
				continue
			}
			pending[country] = true
			if timer == nil {
				timer = time.NewTimer(s.debounce)
				timerC = timer.C
			} else {
				timer.Reset(s.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", "error", err)

		case <-timerC:
			timer, timerC = nil, nil
			s.reload(ctx, pending)
			pending = make(map[string]bool)
		}
	}
}

func (s *IncrementalSync) reload(ctx context.Context, pending map[string]bool) {
	countries := make([]string, 0, len(pending))
	for c := range pending {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	for _, country := range countries {
		start := time.Now()
		ds, err := s.reloader.Reload(ctx, country)
		if err != nil {
			s.logger.Error("reload failed, keeping previous dataset", "country", country, "error", err)
		} else {
			s.logger.Info("dataset reloaded after source change",
				"country", country,
				"variables", ds.Repo.Len(),
				"version", ds.Repo.Version(),
				"duration", time.Since(start).Round(time.Millisecond),
			)
		}
		s.mu.Lock()
		fn := s.onReload
		s.mu.Unlock()
		if fn != nil {
			fn(country, ds, err)
		}
	}
}

func (s *IncrementalSync) sortedRoots() []string {
	roots := make([]string, 0, len(s.roots))
	for r := range s.roots {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	return roots
}

// countryFor maps a changed path to the dataset whose directory holds it.
// The longest matching root wins.
func (s *IncrementalSync) countryFor(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	best, country := "", ""
	for root, c := range s.roots {
		if (abs == root || strings.HasPrefix(abs, root+string(filepath.Separator))) && len(root) > len(best) {
			best, country = root, c
		}
	}
	return country, best != ""
}

func (s *IncrementalSync) addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && s.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func (s *IncrementalSync) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range s.ignored {
		if base == pattern {
			return true
		}
	}
	return strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, "~")
}

// relevant reports whether an event can change a dataset: rule sources,
// parameter files, or a removed or renamed directory.
func relevant(event fsnotify.Event) bool {
	switch strings.ToLower(filepath.Ext(event.Name)) {
	case ".py", ".yaml", ".yml":
		return true
	}
	return event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
