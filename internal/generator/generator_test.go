package generator

import (
	"strings"
	"testing"
	"time"

	"rulegraph/internal/analysis"
	"rulegraph/internal/extractor"
	"rulegraph/internal/graph"
	"rulegraph/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParams map[string]resolver.Value

func (f fakeParams) Resolve(path string, asOf time.Time) resolver.Value {
	if v, ok := f[path]; ok {
		v.AsOf = asOf
		return v
	}
	return resolver.Unavailable(path)
}

var params = fakeParams{
	"gov.irs.rate": {
		Path:     "gov.irs.rate",
		Kind:     resolver.KindScalar,
		Metadata: resolver.Metadata{Unit: "/1", Label: "Tax rate"},
		Series:   resolver.Series{{Date: "2020-01-01", Value: 0.2}, {Date: "2023-01-01", Value: 0.22}},
	},
	"gov.irs.amount": {
		Path:     "gov.irs.amount",
		Kind:     resolver.KindScalar,
		Metadata: resolver.Metadata{Unit: "currency-USD"},
		Series:   resolver.Series{{Date: "2021-01-01", Value: 1234.0}},
	},
}

func sampleGraph() *graph.Graph {
	g := graph.NewGraph("filing_status_credit_with_a_long_name")
	g.AddNode(&graph.Node{
		ID: "filing_status_credit_with_a_long_name", Name: "filing_status_credit_with_a_long_name",
		Role: graph.RoleTarget,
		Definition: &extractor.VariableDefinition{
			Name: "filing_status_credit_with_a_long_name", Label: "Filing credit",
			Entity: "tax_unit", ValueType: extractor.ValueEnumeration,
			Enum: []extractor.EnumValue{{Constant: "SINGLE", Label: "Single"}, {Constant: "JOINT", Label: "Joint"}},
		},
		Parameters: []extractor.ParameterReference{
			{Path: "gov.irs.rate", Usage: extractor.UsageValue},
			{Path: "gov.irs.amount", Usage: extractor.UsageValue, Lookup: extractor.LookupMap, Key: "state_code"},
			{Path: "gov.irs.gone", Usage: extractor.UsageValue},
		},
		Notes: []string{"adds: unknown name (names)"},
	})
	g.AddNode(&graph.Node{ID: "wages", Name: "wages", Level: 1, Role: graph.RoleStop,
		Definition: &extractor.VariableDefinition{Name: "wages", Entity: "person", ValueType: extractor.ValueNumeric, Unit: "currency-USD"}})
	g.AddNode(&graph.Node{ID: "ghost", Name: "ghost", Level: 1, Role: graph.RoleNormal, Missing: true})
	g.AddNode(&graph.Node{ID: "StateCode.CA", Name: "StateCode.CA", Level: 1, Role: graph.RoleDefinedFor, Constant: true})
	g.AddNode(&graph.Node{ID: "wages::subtracts", Name: "wages::subtracts", Label: "- 2 variables", Level: 1,
		Role: graph.RoleGroup, Members: []string{"a", "b"}})
	root := g.Root
	g.AddEdge(graph.Edge{From: root, To: "wages", Kind: extractor.RoleAdds})
	g.AddEdge(graph.Edge{From: root, To: "ghost", Kind: extractor.RoleDepends})
	g.AddEdge(graph.Edge{From: root, To: "StateCode.CA", Kind: extractor.RoleDefinedFor})
	g.AddEdge(graph.Edge{From: root, To: "wages::subtracts", Kind: extractor.RoleSubtracts})
	return g
}

func TestFormatter_Format(t *testing.T) {
	f := NewFormatter(params)
	req := graph.DefaultRequest()
	out := f.Format(sampleGraph(), req)

	require.Len(t, out.Nodes, 5)
	require.Len(t, out.Edges, 4)

	t.Run("Node styles", func(t *testing.T) {
		target := out.Nodes[0]
		assert.Equal(t, "#39C6C0", target.Color.Background)
		assert.True(t, target.Font.Bold)
		assert.Equal(t, "filing_status_credit_with_\na_long_name", target.Label)

		stop := out.Nodes[1]
		assert.Equal(t, "#b50d0d", stop.Color.Border)
		assert.Equal(t, "box", stop.Shape)

		assert.NotNil(t, out.Nodes[2].ShapeProperties)
		assert.Equal(t, "diamond", out.Nodes[3].Shape)
		assert.Equal(t, "ellipse", out.Nodes[4].Shape)
		assert.Equal(t, "- 2 variables", out.Nodes[4].Label)
	})

	t.Run("Edge styles", func(t *testing.T) {
		assert.Equal(t, "#29d40f", out.Edges[0].Color.Color)
		assert.Equal(t, "#808080", out.Edges[1].Color.Color)
		assert.True(t, out.Edges[2].Dashes)
		assert.Equal(t, "#b50d0d", out.Edges[3].Color.Color)
		assert.Equal(t, "to", out.Edges[0].Arrows)
	})

	t.Run("Hidden labels", func(t *testing.T) {
		req.ShowLabels = false
		hidden := f.Format(sampleGraph(), req)
		for _, n := range hidden.Nodes {
			assert.Empty(t, n.Label)
			assert.NotEmpty(t, n.Title)
		}
	})
}

func TestFormatter_Tooltip(t *testing.T) {
	f := NewFormatter(params)
	g := sampleGraph()
	root, _ := g.Node(g.Root)

	t.Run("Summary", func(t *testing.T) {
		tip := f.Tooltip(root, resolver.Summary, time.Time{})
		assert.Contains(t, tip, "Label: Filing credit")
		assert.Contains(t, tip, "Entity: tax_unit")
		assert.Contains(t, tip, "Possible values: Single, Joint")
		assert.NotContains(t, tip, "SINGLE")
		assert.Contains(t, tip, "gov.irs.rate (Tax rate): 22.0% (as of 2023-01-01)")
		assert.Contains(t, tip, "gov.irs.amount: varies by state_code: $1,234 (as of 2021-01-01)")
		assert.Contains(t, tip, "gov.irs.gone: unavailable")
		assert.Contains(t, tip, "adds: unknown name (names)")
	})

	t.Run("Minimal at a date", func(t *testing.T) {
		tip := f.Tooltip(root, resolver.Minimal, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
		assert.Contains(t, tip, "gov.irs.rate (Tax rate): 20.0%\n")
	})

	t.Run("Other roles", func(t *testing.T) {
		ghost, _ := g.Node("ghost")
		assert.Equal(t, "ghost\nNo definition found in the corpus", f.Tooltip(ghost, resolver.Summary, time.Time{}))

		group, _ := g.Node("wages::subtracts")
		assert.Equal(t, "wages::subtracts\nVariables: a, b", f.Tooltip(group, resolver.Summary, time.Time{}))

		wages, _ := g.Node("wages")
		assert.Equal(t, "wages\nEntity: person\nType: numeric\nUnit: currency-USD", f.Tooltip(wages, resolver.Summary, time.Time{}))
	})
}

func TestWrapLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"wages", "wages"},
		{"exactly_twenty_five_chars", "exactly_twenty_five_chars"},
		{"household_net_income_after_taxes", "household_net_income_\nafter_taxes"},
		{"a_really_long_variable_name_that_keeps_going_on", "a_really_long_variable_\nname_that_keeps_going_on"},
		{"nounderscoresatallinthisverylongname", "nounderscoresatallinthisverylongname"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := WrapLabel(tt.in, 25)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, strings.ReplaceAll(got, "\n", ""))
		})
	}
}

func TestMermaidGenerator(t *testing.T) {
	var m MermaidGenerator
	out := m.GenerateDependencyGraph(sampleGraph())

	assert.True(t, strings.HasPrefix(out, "flowchart TD\n"))
	assert.Contains(t, out, "classDef stop fill:#F7FAFD,stroke:#b50d0d")
	assert.Contains(t, out, `filing_status_credit_with_a_long_name["filing_status_credit_with_a_long_name"]:::target`)
	assert.Contains(t, out, `statecode_ca{"StateCode.CA"}:::defined_for`)
	assert.Contains(t, out, `wages__subtracts(["- 2 variables"]):::group`)
	assert.Contains(t, out, "filing_status_credit_with_a_long_name -->|adds| wages\n")
	assert.Contains(t, out, "filing_status_credit_with_a_long_name -.->|defined_for| statecode_ca\n")

	t.Run("Colliding ids", func(t *testing.T) {
		g := graph.NewGraph("a-b")
		g.AddNode(&graph.Node{ID: "a-b", Name: "a-b", Role: graph.RoleTarget})
		g.AddNode(&graph.Node{ID: "a_b", Name: "a_b", Role: graph.RoleNormal, Level: 1})
		g.AddNode(&graph.Node{ID: "end", Name: "end", Role: graph.RoleNormal, Level: 1})
		g.AddEdge(graph.Edge{From: "a-b", To: "a_b", Kind: extractor.RoleDepends})
		out := m.GenerateDependencyGraph(g)
		assert.Contains(t, out, "a_b -->|depends| a_b_2\n")
		assert.Contains(t, out, `v_end["end"]`)
	})
}

func TestDescribeAndMarkdown(t *testing.T) {
	def := &extractor.VariableDefinition{
		Name: "income_tax", Label: "Income tax", Documentation: "Flat tax.",
		Entity: "tax_unit", ValueType: extractor.ValueNumeric, Unit: "currency-USD",
		Filepath: "income.py", StartLine: 3, EndLine: 9,
	}
	src := &describeSource{
		fakeParams: params,
		refs: &extractor.ReferenceSet{
			Variable:  "income_tax",
			Variables: []extractor.VariableReference{{Name: "gross_income", Role: extractor.RoleDepends}},
			Parameters: []extractor.ParameterReference{
				{Path: "gov.irs.rate", Usage: extractor.UsageValue},
			},
		},
	}
	usedBy := []analysis.Usage{{Variable: "net_income", Role: extractor.RoleSubtracts}}

	d := Describe(src, def, resolver.Minimal, time.Time{}, usedBy)
	assert.Equal(t, []string{"gross_income"}, d.Variables)
	assert.Equal(t, []string{}, d.Adds)
	assert.True(t, d.Complete)
	require.Len(t, d.Parameters, 1)
	assert.Equal(t, "22.0%", d.Parameters[0].Value)
	assert.Equal(t, "Tax rate", d.Parameters[0].Label)
	assert.Equal(t, resolver.KindScalar, d.Parameters[0].Kind)

	g := graph.NewGraph("income_tax")
	g.AddNode(&graph.Node{ID: "income_tax", Name: "income_tax", Role: graph.RoleTarget})
	g.AddNode(&graph.Node{ID: "gross_income", Name: "gross_income", Role: graph.RoleNormal, Level: 1})
	g.AddEdge(graph.Edge{From: "income_tax", To: "gross_income", Kind: extractor.RoleDepends})

	doc := NewMarkdownGenerator().GenerateVariableDoc(d, g)
	assert.True(t, strings.HasPrefix(doc, "# Income tax\n\n`income_tax` defined in `income.py` (lines 3-9)"))
	assert.Contains(t, doc, "| Entity | tax_unit |")
	assert.Contains(t, doc, "## Variables\n\n- `gross_income`\n")
	assert.Contains(t, doc, "| `gov.irs.rate` | Tax rate | 22.0% |")
	assert.Contains(t, doc, "- `net_income` (subtracts)")
	assert.Contains(t, doc, "## Dependency graph\n\n```mermaid\nflowchart TD\n")
	assert.NotContains(t, doc, "## Adds")
}

type describeSource struct {
	fakeParams
	refs *extractor.ReferenceSet
}

func (s *describeSource) Get(name string) (*extractor.VariableDefinition, bool) { return nil, false }

func (s *describeSource) Extract(*extractor.VariableDefinition) *extractor.ReferenceSet {
	return s.refs
}

func (s *describeSource) IsParameterPath(name string) bool {
	return strings.HasPrefix(name, "gov.")
}
