package resolver

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLint_Fixtures(t *testing.T) {
	for _, dir := range []string{"testdata/parameters", "testdata/extra"} {
		files, err := LoadDir(dir)
		require.NoError(t, err)
		problems, err := Lint(files)
		require.NoError(t, err)
		assert.Empty(t, problems, dir)
	}
}

func TestLint_Problems(t *testing.T) {
	files := []File{
		{RelPath: "gov/ok.yaml", Data: []byte("values:\n  2020-01-01: 1\nmetadata:\n  unit: /1\n")},
		{RelPath: "gov/empty.yaml", Data: []byte("")},
		{RelPath: "gov/c_meta.yaml", Data: []byte("metadata: oops\nvalues:\n  2020-01-01: 1\n")},
		{RelPath: "gov/b_dates.yaml", Data: []byte("values:\n  soon: 1\n")},
		{RelPath: "gov/a_broken.yaml", Data: []byte("values: [1,\n")},
		{RelPath: "gov/d_brackets.yaml", Data: []byte("brackets:\n  - rate:\n      values:\n        2020-01-01: 0.1\n  - 3\n")},
	}
	problems, err := Lint(files)
	require.NoError(t, err)

	byFile := map[string][]Problem{}
	for _, p := range problems {
		byFile[p.File] = append(byFile[p.File], p)
	}

	t.Run("Valid documents", func(t *testing.T) {
		assert.Empty(t, byFile["gov/ok.yaml"])
		assert.Empty(t, byFile["gov/empty.yaml"])
	})

	t.Run("Unparseable YAML", func(t *testing.T) {
		require.Len(t, byFile["gov/a_broken.yaml"], 1)
		assert.Empty(t, byFile["gov/a_broken.yaml"][0].Location)
	})

	t.Run("Schema violations", func(t *testing.T) {
		require.NotEmpty(t, byFile["gov/c_meta.yaml"])
		assert.Equal(t, "/metadata", byFile["gov/c_meta.yaml"][0].Location)

		require.NotEmpty(t, byFile["gov/b_dates.yaml"])
		for _, p := range byFile["gov/b_dates.yaml"] {
			assert.True(t, strings.HasPrefix(p.Location, "/values"), p.String())
		}

		require.NotEmpty(t, byFile["gov/d_brackets.yaml"])
		for _, p := range byFile["gov/d_brackets.yaml"] {
			assert.True(t, strings.HasPrefix(p.Location, "/brackets/1"), p.String())
		}
	})

	t.Run("Sorted by file", func(t *testing.T) {
		assert.Equal(t, "gov/a_broken.yaml", problems[0].File)
		assert.Equal(t, "gov/d_brackets.yaml", problems[len(problems)-1].File)
	})
}

func TestLint_EmptyDocuments(t *testing.T) {
	files := []File{
		{RelPath: "gov/blank.yaml", Data: []byte("")},
		{RelPath: "gov/comment.yaml", Data: []byte("# nothing yet\n")},
		{RelPath: "gov/spaces.yaml", Data: []byte("\n\n")},
	}
	problems, err := Lint(files)
	require.NoError(t, err)
	assert.Empty(t, problems)

	tree, err := BuildTree(files)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Files())
	assert.False(t, tree.Resolve("gov.blank", time.Time{}).Available())
}
