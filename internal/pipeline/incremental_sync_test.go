package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rulegraph/internal/config"
	"rulegraph/internal/index"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReloader struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeReloader) Reload(ctx context.Context, country string) (*index.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, country)
	return &index.Dataset{Country: country, Repo: index.NewRepository(nil, nil)}, nil
}

func (f *fakeReloader) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestIncrementalSync_CountryFor(t *testing.T) {
	root := t.TempDir()
	s := NewIncrementalSync(&fakeReloader{}, map[string]config.Dataset{
		"us": {VariablesDir: filepath.Join(root, "us"), ParametersDirs: []string{filepath.Join(root, "us", "parameters")}},
		"uk": {VariablesDir: filepath.Join(root, "uk")},
		"ca": {Snapshot: filepath.Join(root, "ca.db")},
	}, nil)

	tests := []struct {
		path    string
		country string
		ok      bool
	}{
		{filepath.Join(root, "us", "income.py"), "us", true},
		{filepath.Join(root, "us", "parameters", "gov", "a.yaml"), "us", true},
		{filepath.Join(root, "uk", "tax", "b.py"), "uk", true},
		{filepath.Join(root, "usa", "c.py"), "", false},
		{filepath.Join(root, "ca.db"), "", false},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			country, ok := s.countryFor(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.country, country)
		})
	}
}

func TestRelevant(t *testing.T) {
	assert.True(t, relevant(fsnotify.Event{Name: "a/b.py", Op: fsnotify.Write}))
	assert.True(t, relevant(fsnotify.Event{Name: "a/b.YAML", Op: fsnotify.Create}))
	assert.True(t, relevant(fsnotify.Event{Name: "a/dir", Op: fsnotify.Remove}))
	assert.False(t, relevant(fsnotify.Event{Name: "a/notes.txt", Op: fsnotify.Write}))
}

func TestIncrementalSync_ReloadsAfterChange(t *testing.T) {
	root := t.TempDir()
	vars := filepath.Join(root, "variables")
	require.NoError(t, os.MkdirAll(filepath.Join(vars, "income"), 0o755))

	reloader := &fakeReloader{}
	s := NewIncrementalSync(reloader, map[string]config.Dataset{
		"us": {VariablesDir: vars},
	}, nil)
	s.SetDebounce(50 * time.Millisecond)

	reloaded := make(chan string, 4)
	s.OnReload(func(country string, ds *index.Dataset, err error) {
		assert.NoError(t, err)
		reloaded <- country
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Give the watcher time to register directories
	time.Sleep(100 * time.Millisecond)

	// A burst of writes collapses into one reload
	path := filepath.Join(vars, "income", "wages.py")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("class wages(Variable):\n    pass\n"), 0o644))
	}

	select {
	case country := <-reloaded:
		assert.Equal(t, "us", country)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after source change")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"us"}, reloader.Calls())
}
