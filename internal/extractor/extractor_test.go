package extractor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) (*Extractor, map[string]*VariableDefinition, *FileResult) {
	t.Helper()
	ext, err := NewExtractor("python", DefaultOptions())
	require.NoError(t, err)

	result, err := ext.ExtractFromFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	byName := make(map[string]*VariableDefinition)
	for _, v := range result.Variables {
		byName[v.Name] = v
	}
	return ext, byName, result
}

func TestNewExtractor_UnsupportedLanguage(t *testing.T) {
	_, err := NewExtractor("cobol", DefaultOptions())
	assert.Error(t, err)
}

func TestExtractor_Definitions(t *testing.T) {
	t.Run("Variable metadata", func(t *testing.T) {
		_, defs, _ := loadFixture(t, "eitc.py")
		require.Len(t, defs, 1)

		def := defs["eitc"]
		require.NotNil(t, def)
		assert.Equal(t, "Earned income tax credit", def.Label)
		assert.Equal(t, "Federal EITC, after phase-in and phase-out.", def.Documentation)
		assert.Equal(t, "tax_unit", def.Entity)
		assert.Equal(t, ValueNumeric, def.ValueType)
		assert.Equal(t, "year", def.DefinitionPeriod)
		assert.Equal(t, "currency-USD", def.Unit)
		assert.Equal(t, []string{"eitc_eligible"}, def.DefinedFor)
		assert.True(t, def.HasFormula)
		assert.Equal(t, 4, def.StartLine)
		assert.NotEmpty(t, def.ContentHash)
		assert.Contains(t, def.Source, "class eitc(Variable)")
	})

	t.Run("Enum attached in same file", func(t *testing.T) {
		_, defs, result := loadFixture(t, "filing_status.py")
		require.Len(t, result.Enums, 1)
		assert.Equal(t, "FilingStatus", result.Enums[0].Name)
		assert.Equal(t, []string{"Single", "Joint", "Head of household"}, result.Enums[0].Labels())

		def := defs["filing_status"]
		require.NotNil(t, def)
		assert.Equal(t, ValueEnumeration, def.ValueType)
		assert.Equal(t, "FilingStatus", def.PossibleValues)
		require.Len(t, def.Enum, 3)
		assert.Equal(t, EnumValue{Constant: "HEAD_OF_HOUSEHOLD", Label: "Head of household"}, def.Enum[2])
	})

	t.Run("Static lists", func(t *testing.T) {
		_, defs, _ := loadFixture(t, "income.py")
		assert.Len(t, defs, 7)
		assert.Equal(t, []string{"employment_income", "self_employment_income"}, defs["gross_income"].Adds)
		assert.Equal(t, []string{"gov.irs.gross_income.exclusions"}, defs["gross_income"].Subtracts)
		assert.Equal(t, []string{
			"social_security_retirement", "social_security_disability", "social_security_survivors",
		}, defs["social_security"].Adds)
		assert.Equal(t, "spm_unit", defs["household_benefits"].Entity)
		assert.True(t, defs["total_benefits"].HasFormula)
		assert.Equal(t, "household", defs["total_benefits"].Entity)
	})

	t.Run("Ignores classes that are not variables", func(t *testing.T) {
		_, defs, _ := loadFixture(t, "benefit.py")
		assert.Len(t, defs, 1)
		assert.Contains(t, defs, "benefit_eligible")
	})
}

func TestExtractor_References(t *testing.T) {
	t.Run("Entity lookups and parameters", func(t *testing.T) {
		ext, defs, _ := loadFixture(t, "eitc.py")
		refs := ext.Extract(defs["eitc"])

		assert.Equal(t, []string{"eitc_child_count", "filer_earned", "filing_status"}, refs.Names(RoleDepends))
		assert.Equal(t, []string{"eitc_eligible"}, refs.Names(RoleDefinedFor))
		assert.True(t, refs.Complete())

		require.Len(t, refs.Parameters, 5)
		assert.Equal(t, ParameterReference{
			Path: "gov.irs.credits.eitc.max", Usage: UsageValue, Lookup: LookupBracket, Key: "eitc_child_count",
		}, refs.Parameters[0])
		assert.Equal(t, "gov.irs.credits.eitc.phase_in_rate", refs.Parameters[1].Path)
		assert.Equal(t, ParameterReference{
			Path: "gov.irs.credits.eitc.phase_out.start", Usage: UsageValue, Lookup: LookupMap, Key: "filing_status",
		}, refs.Parameters[2])
		assert.Equal(t, "gov.irs.credits.eitc.phase_out.rate", refs.Parameters[3].Path)
		assert.Equal(t, LookupBracket, refs.Parameters[3].Lookup)
		assert.Equal(t, ParameterReference{
			Path: "gov.irs.credits.eitc.phase_out.max_investment_income", Usage: UsageValue,
		}, refs.Parameters[4])
	})

	t.Run("Navigation chains, map keys and enum constants", func(t *testing.T) {
		ext, defs, _ := loadFixture(t, "benefit.py")
		refs := ext.Extract(defs["benefit_eligible"])

		assert.Equal(t, []VariableReference{{Name: "StateCode.CA", Role: RoleDefinedFor, Constant: true}}, refs.ByRole(RoleDefinedFor))
		assert.Equal(t, []string{"household_income", "state_code_str", "spm_unit_size", "is_tax_unit_head"}, refs.Names(RoleDepends))

		paths := make([]string, 0, len(refs.Parameters))
		for _, p := range refs.Parameters {
			paths = append(paths, p.Path)
		}
		assert.Equal(t, []string{
			"gov.states.ca.benefit.amount",
			"gov.states.ca.benefit.income_limit",
			"gov.states.ca.benefit.age_limit.SENIOR",
		}, paths)
		assert.Equal(t, LookupMap, refs.Parameters[0].Lookup)
		assert.Equal(t, "state_code_str", refs.Parameters[0].Key)
	})

	t.Run("Enum constants are not references", func(t *testing.T) {
		ext, defs, _ := loadFixture(t, "filing_status.py")
		refs := ext.Extract(defs["filing_status"])
		assert.Equal(t, []string{"tax_unit_married"}, refs.Names(RoleDepends))
		assert.Empty(t, refs.Parameters)
	})

	t.Run("Adds and subtracts with parameter lists", func(t *testing.T) {
		ext, defs, _ := loadFixture(t, "income.py")

		refs := ext.Extract(defs["gross_income"])
		assert.Equal(t, []string{"employment_income", "self_employment_income"}, refs.Names(RoleAdds))
		assert.Empty(t, refs.Names(RoleSubtracts))
		assert.Equal(t, []ParameterReference{
			{Path: "gov.irs.gross_income.exclusions", Usage: UsageVariableList, Role: RoleSubtracts},
		}, refs.ListParameters(RoleSubtracts))
		assert.Empty(t, refs.ValueParameters())

		refs = ext.Extract(defs["household_benefits"])
		assert.Empty(t, refs.Variables)
		assert.Equal(t, []ParameterReference{
			{Path: "gov.household.household_benefits", Usage: UsageVariableList, Role: RoleAdds},
		}, refs.ListParameters(RoleAdds))
	})

	t.Run("Generated lists", func(t *testing.T) {
		ext, defs, _ := loadFixture(t, "income.py")

		refs := ext.Extract(defs["social_security"])
		assert.Equal(t, []string{
			"social_security_retirement", "social_security_disability", "social_security_survivors",
		}, refs.Names(RoleAdds))

		refs = ext.Extract(defs["state_income_tax"])
		assert.Equal(t, []string{
			"ca_income_tax", "ny_income_tax", "ca_credits", "ny_credits", "ma_credits", "a_refund",
		}, refs.Names(RoleAdds))
		assert.True(t, refs.Complete())

		refs = ext.Extract(defs["total_benefits"])
		assert.Equal(t, []string{"snap", "wic"}, refs.Names(RoleAdds))
	})

	t.Run("Partial resolution keeps what it can", func(t *testing.T) {
		ext, defs, _ := loadFixture(t, "income.py")
		refs := ext.Extract(defs["mixed_income"])

		assert.Equal(t, []string{"wages", "tips"}, refs.Names(RoleAdds))
		assert.Empty(t, refs.Names(RoleSubtracts))
		assert.False(t, refs.Complete())
		require.Len(t, refs.Unresolved, 2)
		assert.Equal(t, "adds", refs.Unresolved[0].Attribute)
		assert.Equal(t, "subtracts", refs.Unresolved[1].Attribute)
	})

	t.Run("Loops and dynamic names", func(t *testing.T) {
		ext, defs, _ := loadFixture(t, "income.py")
		refs := ext.Extract(defs["itemized_deductions"])

		assert.Equal(t, []string{"mortgage_interest", "charitable_deduction"}, refs.Names(RoleDepends))
		assert.Equal(t, []ParameterReference{
			{Path: "gov.irs.deductions.itemized.sources", Usage: UsageVariableList, Role: RoleAdds},
		}, refs.Parameters)
		require.Len(t, refs.Unresolved, 1)
		assert.Equal(t, "dynamic_name", refs.Unresolved[0].Expr)
		assert.Equal(t, "formula", refs.Unresolved[0].Attribute)
	})

	t.Run("Deterministic", func(t *testing.T) {
		ext, defs, _ := loadFixture(t, "eitc.py")
		assert.Equal(t, ext.Extract(defs["eitc"]), ext.Extract(defs["eitc"]))
	})

	t.Run("Missing class is reported, not fatal", func(t *testing.T) {
		ext, _, _ := loadFixture(t, "eitc.py")
		refs := ext.Extract(&VariableDefinition{Name: "ghost", Source: "x = 1\n"})
		assert.Empty(t, refs.Variables)
		assert.False(t, refs.Complete())
	})
}

func TestExtractor_ParameterPrefixes(t *testing.T) {
	ext, err := NewExtractor("python", Options{ParameterPrefixes: []string{"calibration."}})
	require.NoError(t, err)

	src := []byte(`
class total(Variable):
    adds = ["calibration.weights", "gov.not_a_parameter_here"]
`)
	result, err := ext.ExtractFromSource("total.py", src)
	require.NoError(t, err)
	require.Len(t, result.Variables, 1)

	refs := ext.Extract(result.Variables[0])
	assert.Equal(t, []string{"gov.not_a_parameter_here"}, refs.Names(RoleAdds))
	require.Len(t, refs.Parameters, 1)
	assert.Equal(t, "calibration.weights", refs.Parameters[0].Path)
}

func TestCachedExtractor(t *testing.T) {
	ext, defs, _ := loadFixture(t, "eitc.py")
	cache := NewCachedExtractor(ext)

	first := cache.Extract(defs["eitc"])
	second := cache.Extract(defs["eitc"])
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())

	changed := *defs["eitc"]
	changed.Source = changed.Source + "\n"
	changed.ContentHash = HashSource([]byte(changed.Source))
	assert.NotEqual(t, CacheKey(defs["eitc"]), CacheKey(&changed))
	cache.Extract(&changed)
	assert.Equal(t, 2, cache.Len())
}
