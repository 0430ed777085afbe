package extractor

// VariableRole is how a referenced variable contributes to its owner.
type VariableRole string

const (
	RoleDepends    VariableRole = "depends"
	RoleAdds       VariableRole = "adds"
	RoleSubtracts  VariableRole = "subtracts"
	RoleDefinedFor VariableRole = "defined_for"
)

// RoleOrder is the fixed traversal order of reference roles.
var RoleOrder = []VariableRole{RoleDepends, RoleAdds, RoleSubtracts, RoleDefinedFor}

// ParameterUsage tells whether a parameter is read as a value or as a list
// of variable names to aggregate.
type ParameterUsage string

const (
	UsageValue        ParameterUsage = "value"
	UsageVariableList ParameterUsage = "variable_list"
)

// LookupKind describes a runtime-keyed access into a parameter.
type LookupKind string

const (
	LookupNone    LookupKind = ""
	LookupBracket LookupKind = "bracket"
	LookupMap     LookupKind = "map"
)

type VariableReference struct {
	Name     string       `json:"name"`
	Role     VariableRole `json:"role"`
	Constant bool         `json:"constant,omitempty"` // enumerated constant such as StateCode.CA
}

type ParameterReference struct {
	Path   string         `json:"path"`
	Usage  ParameterUsage `json:"usage"`
	Role   VariableRole   `json:"role,omitempty"` // role of the names for variable_list usage
	Lookup LookupKind     `json:"lookup,omitempty"`
	Key    string         `json:"key,omitempty"` // runtime key for bracket/map lookups
}

// UnresolvedReference records a construct that could not be statically
// determined. Extraction still succeeds for everything else.
type UnresolvedReference struct {
	Attribute string `json:"attribute"`
	Expr      string `json:"expr"`
	Reason    string `json:"reason"`
}

// ReferenceSet is everything one variable's definition references. Values
// returned by an extractor are shared and must not be mutated.
type ReferenceSet struct {
	Variable   string                `json:"variable"`
	Variables  []VariableReference   `json:"variables"`
	Parameters []ParameterReference  `json:"parameters"`
	Unresolved []UnresolvedReference `json:"unresolved,omitempty"`
}

// Complete reports whether every construct was statically resolved.
func (r *ReferenceSet) Complete() bool {
	return len(r.Unresolved) == 0
}

// ByRole returns the variable references of one role in source order.
func (r *ReferenceSet) ByRole(role VariableRole) []VariableReference {
	var out []VariableReference
	for _, v := range r.Variables {
		if v.Role == role {
			out = append(out, v)
		}
	}
	return out
}

// Names returns the referenced variable names of one role.
func (r *ReferenceSet) Names(role VariableRole) []string {
	var out []string
	for _, v := range r.Variables {
		if v.Role == role {
			out = append(out, v.Name)
		}
	}
	return out
}

// ValueParameters returns the parameters read as values.
func (r *ReferenceSet) ValueParameters() []ParameterReference {
	var out []ParameterReference
	for _, p := range r.Parameters {
		if p.Usage == UsageValue {
			out = append(out, p)
		}
	}
	return out
}

// ListParameters returns the parameters whose value is a list of variable
// names contributing with the given role.
func (r *ReferenceSet) ListParameters(role VariableRole) []ParameterReference {
	var out []ParameterReference
	for _, p := range r.Parameters {
		if p.Usage == UsageVariableList && p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

func (r *ReferenceSet) HasParameters() bool {
	return len(r.Parameters) > 0
}

type refKey struct {
	name string
	role VariableRole
}

type paramKey struct {
	path  string
	usage ParameterUsage
	role  VariableRole
}

// refBuilder accumulates references in first-appearance order.
type refBuilder struct {
	set        ReferenceSet
	seenVars   map[refKey]bool
	seenParams map[paramKey]bool
	opts       *Options
}

func newRefBuilder(name string, opts *Options) *refBuilder {
	return &refBuilder{
		set:        ReferenceSet{Variable: name},
		seenVars:   make(map[refKey]bool),
		seenParams: make(map[paramKey]bool),
		opts:       opts,
	}
}

// addName classifies a referenced name: parameter paths become parameter
// references, everything else a variable.
func (b *refBuilder) addName(name string, role VariableRole) {
	if name == "" {
		return
	}
	if b.opts.IsParameterPath(name) {
		usage := UsageVariableList
		if role == RoleDepends || role == RoleDefinedFor {
			usage = UsageValue
		}
		b.addParam(ParameterReference{Path: name, Usage: usage, Role: role})
		return
	}
	b.addVariable(VariableReference{Name: name, Role: role})
}

func (b *refBuilder) addVariable(ref VariableReference) {
	k := refKey{ref.Name, ref.Role}
	if b.seenVars[k] {
		return
	}
	b.seenVars[k] = true
	b.set.Variables = append(b.set.Variables, ref)
}

func (b *refBuilder) addParam(ref ParameterReference) {
	if ref.Path == "" {
		return
	}
	if ref.Usage == UsageValue {
		ref.Role = ""
	}
	k := paramKey{ref.Path, ref.Usage, ref.Role}
	if b.seenParams[k] {
		return
	}
	b.seenParams[k] = true
	b.set.Parameters = append(b.set.Parameters, ref)
}

func (b *refBuilder) unresolved(attr, expr, reason string) {
	b.set.Unresolved = append(b.set.Unresolved, UnresolvedReference{Attribute: attr, Expr: expr, Reason: reason})
}

func (b *refBuilder) result() *ReferenceSet {
	out := b.set
	return &out
}
