package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rulegraph/internal/config"
	"rulegraph/internal/extractor"
	"rulegraph/internal/git"
	"rulegraph/internal/retrieval"
	"rulegraph/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfigs() map[string]config.Dataset {
	return map[string]config.Dataset{
		"us": {
			Label:          "United States",
			VariablesDir:   "testdata/us/variables",
			ParametersDirs: []string{"testdata/us/parameters", "testdata/us/missing"},
		},
		"uk": {
			Label:          "United Kingdom",
			VariablesDir:   "testdata/uk/variables",
			ParametersDirs: []string{"testdata/uk/parameters"},
		},
	}
}

func TestLoader_LoadSource(t *testing.T) {
	loader := NewLoader(extractor.DefaultOptions(), nil)
	ds, err := loader.Load(context.Background(), "us", testConfigs()["us"])
	require.NoError(t, err)

	assert.Equal(t, OriginSource, ds.Origin)
	assert.Equal(t, "United States", ds.Label)

	t.Run("Definitions", func(t *testing.T) {
		assert.Equal(t, 10, ds.Repo.Len())
		all := ds.Repo.All()
		assert.Equal(t, "benefit_eligible", all[0].Name)

		_, ok := ds.Get("tax_exempt_interest")
		assert.False(t, ok)
	})

	t.Run("First declaration wins", func(t *testing.T) {
		wages, ok := ds.Get("wages")
		require.True(t, ok)
		assert.Equal(t, "Wages and salaries", wages.Label)
		assert.Equal(t, "income.py", filepath.Base(wages.Filepath))
	})

	t.Run("Enums linked across files", func(t *testing.T) {
		fs, ok := ds.Get("filing_status")
		require.True(t, ok)
		assert.Equal(t, []extractor.EnumValue{
			{Constant: "SINGLE", Label: "Single"},
			{Constant: "JOINT", Label: "Joint"},
		}, fs.Enum)
	})

	t.Run("References", func(t *testing.T) {
		def, _ := ds.Get("gross_income")
		refs := ds.Extract(def)
		assert.Equal(t, []string{"wages", "self_employment_income"}, refs.Names(extractor.RoleAdds))
		assert.Equal(t, []extractor.ParameterReference{
			{Path: "gov.irs.gross_income.exclusions", Usage: extractor.UsageVariableList, Role: extractor.RoleSubtracts},
		}, refs.Parameters)
		assert.True(t, ds.IsParameterPath("gov.irs.gross_income.exclusions"))
	})

	t.Run("Parameters", func(t *testing.T) {
		v := ds.Resolve("gov.irs.gross_income.exclusions", time.Time{})
		require.True(t, v.Available())
		assert.Equal(t, []string{"tax_exempt_interest", "gifts"}, v.List())

		rate := ds.Resolve("gov.irs.income_tax.rate", time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC))
		e, ok := rate.Current()
		require.True(t, ok)
		assert.Equal(t, 0.2, e.Value)

		assert.False(t, ds.Resolve("gov.irs.nothing", time.Time{}).Available())
		assert.Equal(t, 1, ds.Params.Len())
	})

	t.Run("Usage", func(t *testing.T) {
		usage, err := ds.Usage(context.Background())
		require.NoError(t, err)

		var users []string
		for _, u := range usage.UsedBy("gross_income") {
			users = append(users, u.Variable)
		}
		assert.ElementsMatch(t, []string{"benefit_eligible", "household_net_income", "income_tax"}, users)
		assert.Equal(t, []string{"income_tax"}, usage.ParameterUsers("gov.irs.income_tax.rate"))
	})

	t.Run("Search", func(t *testing.T) {
		matches, err := ds.Repo.Search("income", retrieval.DefaultConfig())
		require.NoError(t, err)
		require.NotEmpty(t, matches)
		assert.Equal(t, "income_tax", matches[0].Definition.Name)
	})
}

func TestLoader_MissingVariablesDir(t *testing.T) {
	loader := NewLoader(extractor.DefaultOptions(), nil)
	_, err := loader.Load(context.Background(), "xx", config.Dataset{VariablesDir: "testdata/nowhere"})
	assert.Error(t, err)

	_, err = loader.Load(context.Background(), "xx", config.Dataset{})
	assert.Error(t, err)
}

func TestLoader_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(extractor.DefaultOptions(), nil)
	src, err := loader.Load(ctx, "us", testConfigs()["us"])
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	store, err := storage.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(ctx, src.Snapshot()))
	require.NoError(t, store.Close())

	snap, err := loader.Load(ctx, "us", config.Dataset{Label: "US snapshot", Snapshot: dbPath})
	require.NoError(t, err)

	assert.Equal(t, OriginSnapshot, snap.Origin)
	assert.Equal(t, src.Repo.Version(), snap.Repo.Version())
	assert.Equal(t, src.Repo.Len(), snap.Repo.Len())

	fs, ok := snap.Get("filing_status")
	require.True(t, ok)
	assert.Len(t, fs.Enum, 2)

	def, _ := snap.Get("income_tax")
	refs := snap.Extract(def)
	assert.Equal(t, []string{"gross_income"}, refs.Names(extractor.RoleDepends))

	v := snap.Resolve("gov.irs.income_tax.rate", time.Time{})
	e, ok := v.Current()
	require.True(t, ok)
	assert.Equal(t, 0.22, e.Value)

	t.Run("Unknown country in snapshot", func(t *testing.T) {
		_, err := loader.Load(ctx, "uk", config.Dataset{Snapshot: dbPath})
		assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
	})
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(testConfigs(), NewLoader(extractor.DefaultOptions(), nil), nil)

	assert.Equal(t, []string{"uk", "us"}, reg.Countries())

	t.Run("Unknown dataset", func(t *testing.T) {
		_, err := reg.Get(ctx, "fr")
		assert.ErrorIs(t, err, ErrUnknownDataset)
		_, err = reg.Reload(ctx, "fr")
		assert.ErrorIs(t, err, ErrUnknownDataset)
	})

	t.Run("Lazy load", func(t *testing.T) {
		_, ok := reg.Loaded("uk")
		assert.False(t, ok)

		ds, err := reg.Get(ctx, "uk")
		require.NoError(t, err)
		assert.Equal(t, 3, ds.Repo.Len())

		again, err := reg.Get(ctx, "uk")
		require.NoError(t, err)
		assert.Same(t, ds, again)
	})

	t.Run("Concurrent first use shares one dataset", func(t *testing.T) {
		var wg sync.WaitGroup
		got := make([]*Dataset, 8)
		for i := range got {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ds, err := reg.Get(ctx, "us")
				assert.NoError(t, err)
				got[i] = ds
			}()
		}
		wg.Wait()
		for _, ds := range got[1:] {
			assert.Same(t, got[0], ds)
		}
	})

	t.Run("Reload swaps the dataset", func(t *testing.T) {
		before, err := reg.Get(ctx, "us")
		require.NoError(t, err)

		after, err := reg.Reload(ctx, "us")
		require.NoError(t, err)
		assert.NotSame(t, before, after)
		assert.Equal(t, before.Repo.Version(), after.Repo.Version())

		current, ok := reg.Loaded("us")
		require.True(t, ok)
		assert.Same(t, after, current)

		// Datasets never share an extraction cache
		assert.NotSame(t, before.Extractor, after.Extractor)
	})
}

func TestRegistry_LoadOutlivesCaller(t *testing.T) {
	reg := NewRegistry(testConfigs(), NewLoader(extractor.DefaultOptions(), nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ds, err := reg.Get(ctx, "uk")
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Repo.Len())

	loaded, ok := reg.Loaded("uk")
	require.True(t, ok)
	assert.Same(t, ds, loaded)
}

func TestSaveRepository(t *testing.T) {
	ds, err := NewLoader(extractor.DefaultOptions(), nil).Load(context.Background(), "uk", testConfigs()["uk"])
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "uk.json")
	require.NoError(t, SaveRepository(ds.Repo, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var out struct {
		Version   string `json:"version"`
		Variables []struct {
			Name string `json:"name"`
		} `json:"variables"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, ds.Repo.Version(), out.Version)
	require.Len(t, out.Variables, 3)
	assert.Equal(t, "employment_income", out.Variables[0].Name)

	assert.Error(t, SaveRepository(ds.Repo, filepath.Join(t.TempDir(), "missing", "uk.json")))
}

func TestRepository_Changed(t *testing.T) {
	ds, err := NewLoader(extractor.DefaultOptions(), nil).Load(context.Background(), "us", testConfigs()["us"])
	require.NoError(t, err)

	income, err := filepath.Abs("testdata/us/variables/income.py")
	require.NoError(t, err)
	cycle, err := filepath.Abs("testdata/us/variables/cycle.py")
	require.NoError(t, err)

	t.Run("Lines inside definitions", func(t *testing.T) {
		changed := ds.Repo.Changed([]git.ChangedFile{{Path: income, ChangedLines: []int{5, 26}}})
		assert.Equal(t, []string{"gross_income", "wages"}, changed)
	})

	t.Run("Lines outside definitions", func(t *testing.T) {
		assert.Empty(t, ds.Repo.Changed([]git.ChangedFile{{Path: income, ChangedLines: []int{2}}}))
	})

	t.Run("Deleted and unknown files", func(t *testing.T) {
		changed := ds.Repo.Changed([]git.ChangedFile{
			{Path: cycle, ChangedLines: []int{4}, Deleted: true},
			{Path: filepath.Join(filepath.Dir(income), "nowhere.py"), ChangedLines: []int{1}},
		})
		assert.Empty(t, changed)
	})
}
