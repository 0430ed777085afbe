package generator

import (
	"time"

	"rulegraph/internal/analysis"
	"rulegraph/internal/extractor"
	"rulegraph/internal/graph"
	"rulegraph/internal/resolver"
)

// VariableDetails is the full description of one variable: its metadata,
// what it references, the parameters it reads and who reads it.
type VariableDetails struct {
	Name             string              `json:"name"`
	Label            string              `json:"label"`
	Documentation    string              `json:"documentation,omitempty"`
	Entity           string              `json:"entity,omitempty"`
	ValueType        extractor.ValueType `json:"valueType,omitempty"`
	DefinitionPeriod string              `json:"definitionPeriod,omitempty"`
	Unit             string              `json:"unit,omitempty"`
	PossibleValues   []string            `json:"possibleValues,omitempty"`
	Filepath         string              `json:"filepath"`
	StartLine        int                 `json:"startLine"`
	EndLine          int                 `json:"endLine"`

	Variables  []string          `json:"variables"`
	Adds       []string          `json:"adds"`
	Subtracts  []string          `json:"subtracts"`
	DefinedFor []string          `json:"definedFor"`
	Parameters []ParameterDetail `json:"parameters"`
	UsedBy     []analysis.Usage  `json:"usedBy"`
	Unresolved []string          `json:"unresolved,omitempty"`
	Complete   bool              `json:"complete"`
}

// ParameterDetail is one parameter read by a variable, resolved and
// formatted.
type ParameterDetail struct {
	Path        string                   `json:"path"`
	Usage       extractor.ParameterUsage `json:"usage"`
	Role        extractor.VariableRole   `json:"role,omitempty"`
	Key         string                   `json:"key,omitempty"`
	Kind        resolver.Kind            `json:"kind"`
	Label       string                   `json:"label,omitempty"`
	Description string                   `json:"description,omitempty"`
	Unit        string                   `json:"unit,omitempty"`
	Source      string                   `json:"source,omitempty"`
	Value       string                   `json:"value"`
	Structure   resolver.Value           `json:"structure"`
}

// Describe collects the details of def. usedBy may be nil when the reverse
// index is not available.
func Describe(src graph.Source, def *extractor.VariableDefinition, level resolver.DetailLevel, asOf time.Time, usedBy []analysis.Usage) *VariableDetails {
	refs := src.Extract(def)
	d := &VariableDetails{
		Name:             def.Name,
		Label:            def.DisplayLabel(),
		Documentation:    def.Documentation,
		Entity:           def.Entity,
		ValueType:        def.ValueType,
		DefinitionPeriod: def.DefinitionPeriod,
		Unit:             def.Unit,
		Filepath:         def.Filepath,
		StartLine:        def.StartLine,
		EndLine:          def.EndLine,
		Variables:        nonNil(refs.Names(extractor.RoleDepends)),
		Adds:             nonNil(refs.Names(extractor.RoleAdds)),
		Subtracts:        nonNil(refs.Names(extractor.RoleSubtracts)),
		DefinedFor:       nonNil(refs.Names(extractor.RoleDefinedFor)),
		Parameters:       []ParameterDetail{},
		UsedBy:           usedBy,
		Complete:         refs.Complete(),
	}
	if d.UsedBy == nil {
		d.UsedBy = []analysis.Usage{}
	}
	for _, v := range def.Enum {
		d.PossibleValues = append(d.PossibleValues, v.Label)
	}
	for _, p := range refs.Parameters {
		v := src.Resolve(p.Path, asOf)
		d.Parameters = append(d.Parameters, ParameterDetail{
			Path:        p.Path,
			Usage:       p.Usage,
			Role:        p.Role,
			Key:         p.Key,
			Kind:        v.Kind,
			Label:       v.Metadata.Label,
			Description: v.Metadata.Description,
			Unit:        v.Metadata.Unit,
			Source:      v.Source,
			Value:       resolver.FormatKeyed(v, level, p.Key),
			Structure:   v,
		})
	}
	for _, u := range refs.Unresolved {
		d.Unresolved = append(d.Unresolved, u.Attribute+": "+u.Reason+" ("+u.Expr+")")
	}
	return d
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
