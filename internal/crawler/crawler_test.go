package crawler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"rulegraph/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawler_ScanFixtures(t *testing.T) {
	ext, err := extractor.NewExtractor("python", extractor.DefaultOptions())
	require.NoError(t, err)

	c := NewCrawler(ext, nil)
	c.SetWorkers(2)

	// The extractor fixtures double as a small corpus
	root, _ := filepath.Abs("../extractor/testdata")

	var files []string
	variables := map[string]bool{}
	enums := 0
	err = c.ScanProject(context.Background(), root, func(res *extractor.FileResult) {
		files = append(files, filepath.Base(res.Filepath))
		for _, v := range res.Variables {
			variables[v.Name] = true
		}
		enums += len(res.Enums)
	})
	require.NoError(t, err)

	t.Run("Files in path order", func(t *testing.T) {
		assert.Equal(t, []string{"benefit.py", "eitc.py", "filing_status.py", "income.py"}, files)
	})

	t.Run("Declarations", func(t *testing.T) {
		assert.Len(t, variables, 10)
		assert.True(t, variables["gross_income"])
		assert.True(t, variables["benefit_eligible"])
		assert.Equal(t, 1, enums)
	})
}

func TestCrawler_SkipsTestsAndIgnoredDirs(t *testing.T) {
	ext, err := extractor.NewExtractor("python", extractor.DefaultOptions())
	require.NoError(t, err)

	root := t.TempDir()
	write := func(rel, body string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	variable := "class %s(Variable):\n    value_type = float\n"
	write("a/kept.py", fmt.Sprintf(variable, "kept"))
	write("a/test_skipped.py", fmt.Sprintf(variable, "skipped_one"))
	write("__pycache__/cached.py", fmt.Sprintf(variable, "skipped_two"))
	write("tests/fixture.py", fmt.Sprintf(variable, "skipped_three"))
	write("a/notes.txt", "not python")

	var names []string
	err = NewCrawler(ext, nil).ScanProject(context.Background(), root, func(res *extractor.FileResult) {
		for _, v := range res.Variables {
			names = append(names, v.Name)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, names)
}

func TestCrawler_CancelledContext(t *testing.T) {
	ext, err := extractor.NewExtractor("python", extractor.DefaultOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewCrawler(ext, nil).ScanProject(ctx, "../extractor/testdata", func(*extractor.FileResult) {})
	assert.ErrorIs(t, err, context.Canceled)
}
