package graph

import "rulegraph/internal/extractor"

// Role is the visual class of a node.
type Role string

const (
	RoleTarget     Role = "target"
	RoleNormal     Role = "normal"
	RoleStop       Role = "stop"
	RoleDefinedFor Role = "defined_for"
	RoleGroup      Role = "group"
)

// Kind is the relationship an edge stands for. It mirrors the reference
// role that produced it.
type Kind = extractor.VariableRole

// Node is one vertex of a dependency graph. A variable name maps to at
// most one node per graph.
type Node struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
	Level int    `json:"level"`
	Role  Role   `json:"role"`

	// Missing marks a referenced name without a definition in the corpus.
	Missing bool `json:"missing,omitempty"`
	// Constant marks an enumerated constant used as a defined_for condition.
	Constant bool `json:"constant,omitempty"`
	// Members lists the collapsed variables of a group node.
	Members []string `json:"members,omitempty"`
	// Parameters read as values by the variable, shown in its tooltip.
	Parameters []extractor.ParameterReference `json:"parameters,omitempty"`
	// Notes describe references that could not be statically resolved.
	Notes []string `json:"notes,omitempty"`

	Definition *extractor.VariableDefinition `json:"-"`
}

// Edge points from the variable whose definition holds the reference to
// the referenced variable.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind Kind   `json:"kind"`
}
