package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, ":5001", cfg.Server.Addr)
		assert.Equal(t, 10, cfg.Graph.DefaultMaxDepth)
		assert.Equal(t, 50, cfg.Graph.SearchLimit)
		assert.Contains(t, cfg.Graph.DefaultStopVariables, "employment_income")
		assert.Equal(t, []string{"gov."}, cfg.Extractor.ParameterPrefixes)
		assert.Equal(t, []string{"us"}, cfg.Countries())
	})

	t.Run("File overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		body := `
server:
  addr: ":8080"
graph:
  default_max_depth: 4
datasets:
  uk:
    label: United Kingdom
    variables_dir: uk/variables
    parameters_dirs: [uk/parameters]
  us:
    snapshot: us.db
`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, 4, cfg.Graph.DefaultMaxDepth)
		assert.Equal(t, []string{"uk", "us"}, cfg.Countries())
		assert.Equal(t, "us.db", cfg.Datasets["us"].Snapshot)
		assert.Equal(t, []string{"uk/parameters"}, cfg.Datasets["uk"].ParametersDirs)
	})

	t.Run("Environment wins over file", func(t *testing.T) {
		t.Setenv("RULEGRAPH_ADDR", ":9999")
		t.Setenv("RULEGRAPH_LOG_FORMAT", "JSON")

		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, ":9999", cfg.Server.Addr)
		assert.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("Malformed file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "country", "us")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"country":"us"`)
}
