package extractor

// ValueType is the declared result type of a variable.
type ValueType string

const (
	ValueNumeric     ValueType = "numeric"
	ValueBoolean     ValueType = "boolean"
	ValueInteger     ValueType = "integer"
	ValueEnumeration ValueType = "enumeration"
	ValueString      ValueType = "string"
	ValueDate        ValueType = "date"
)

// VariableDefinition is one rule variable as declared in the corpus.
// It is immutable once the repository holding it has been built.
type VariableDefinition struct {
	Name             string      `json:"name"`               // Unique key (the class name)
	Label            string      `json:"label,omitempty"`    // Human-readable label
	Documentation    string      `json:"documentation,omitempty"`
	Entity           string      `json:"entity,omitempty"`   // e.g. "tax_unit"
	ValueType        ValueType   `json:"value_type,omitempty"`
	DefinitionPeriod string      `json:"definition_period,omitempty"`
	Unit             string      `json:"unit,omitempty"`
	Adds             []string    `json:"adds,omitempty"`      // Static adds list, variable names or parameter paths
	Subtracts        []string    `json:"subtracts,omitempty"` // Static subtracts list
	DefinedFor       []string    `json:"defined_for,omitempty"`
	PossibleValues   string      `json:"possible_values,omitempty"` // Enum class name
	Enum             []EnumValue `json:"enum,omitempty"`
	HasFormula       bool        `json:"has_formula"`
	Filepath         string      `json:"filepath"`
	StartLine        int         `json:"start_line"`
	EndLine          int         `json:"end_line"`
	Source           string      `json:"-"` // Full text of the module declaring the variable
	ContentHash      string      `json:"content_hash"`
}

// DisplayLabel falls back to the name when no label is declared.
func (d *VariableDefinition) DisplayLabel() string {
	if d == nil {
		return ""
	}
	if d.Label != "" {
		return d.Label
	}
	return d.Name
}

// EnumValue is one (constant, label) pair of an enumeration.
type EnumValue struct {
	Constant string `json:"constant"`
	Label    string `json:"label"`
}

// EnumDefinition is an enumeration class found in the corpus.
type EnumDefinition struct {
	Name     string      `json:"name"`
	Filepath string      `json:"filepath"`
	Values   []EnumValue `json:"values"`
}

// Labels returns the display labels in declaration order.
func (e *EnumDefinition) Labels() []string {
	out := make([]string, 0, len(e.Values))
	for _, v := range e.Values {
		out = append(out, v.Label)
	}
	return out
}

// FileResult holds everything declared in one source file.
type FileResult struct {
	Filepath  string
	Variables []*VariableDefinition
	Enums     []*EnumDefinition
}
