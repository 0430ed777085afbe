package retrieval

import (
	"testing"

	"rulegraph/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defs(pairs ...string) []*extractor.VariableDefinition {
	var out []*extractor.VariableDefinition
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, &extractor.VariableDefinition{Name: pairs[i], Label: pairs[i+1]})
	}
	return out
}

func names(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Definition.Name)
	}
	return out
}

func TestSearch_Ranking(t *testing.T) {
	corpus := defs(
		"adjusted_gross_income", "Adjusted gross income",
		"gross_income", "Gross income",
		"gross_income_head", "Gross income of the head",
		"agi", "Adjusted gross income (AGI)",
		"income_tax", "Federal income tax",
		"snap", "SNAP benefits",
	)

	t.Run("Exact, prefix, substring, label", func(t *testing.T) {
		got, err := Search(corpus, "gross_income", DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, []string{"gross_income", "gross_income_head", "adjusted_gross_income"}, names(got))
		assert.Equal(t, RankExact, got[0].Rank)
		assert.Equal(t, RankPrefix, got[1].Rank)
		assert.Equal(t, RankNameSubstring, got[2].Rank)

		got, err = Search(corpus, "Gross Income", DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, []string{"agi", "gross_income", "gross_income_head", "adjusted_gross_income"}, names(got))
	})

	t.Run("Token match", func(t *testing.T) {
		got, err := Search(corpus, "tax federal", DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, []string{"income_tax"}, names(got))
		assert.Equal(t, RankTokens, got[0].Rank)
	})

	t.Run("Snake case queries match by substring only", func(t *testing.T) {
		got, err := Search(append(defs("tax_on_income", "Tax", "income_tax_credit_rate", "Income tax credit rate"), corpus...), "income_tax", DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, []string{"income_tax", "income_tax_credit_rate"}, names(got))
	})

	t.Run("Limit", func(t *testing.T) {
		got, err := Search(corpus, "income", Config{Limit: 2, MinQueryLength: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"income_tax", "gross_income"}, names(got))
	})

	t.Run("Too short", func(t *testing.T) {
		_, err := Search(corpus, " a ", DefaultConfig())
		assert.ErrorIs(t, err, ErrQueryTooShort)
	})

	t.Run("No match", func(t *testing.T) {
		got, err := Search(corpus, "wic", DefaultConfig())
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
