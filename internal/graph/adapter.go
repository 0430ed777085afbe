package graph

import (
	"fmt"

	"rulegraph/internal/extractor"
)

// newVariableNode converts a definition (or its absence) into a node.
func newVariableNode(name string, def *extractor.VariableDefinition, level int, role Role) *Node {
	n := &Node{
		ID:         name,
		Name:       name,
		Label:      name,
		Level:      level,
		Role:       role,
		Definition: def,
	}
	if def == nil {
		n.Missing = true
		return n
	}
	n.Label = def.DisplayLabel()
	return n
}

func newConstantNode(name string, level int) *Node {
	return &Node{ID: name, Name: name, Label: name, Level: level, Role: RoleDefinedFor, Constant: true}
}

// groupID names the synthetic node standing for all children of one kind.
func groupID(owner string, kind Kind) string {
	return owner + "::" + string(kind)
}

func newGroupNode(owner string, kind Kind, members []string, level int) *Node {
	noun := "variables"
	if len(members) == 1 {
		noun = "variable"
	}
	sign := "+"
	if kind == extractor.RoleSubtracts {
		sign = "-"
	}
	return &Node{
		ID:      groupID(owner, kind),
		Name:    groupID(owner, kind),
		Label:   fmt.Sprintf("%s %d %s", sign, len(members), noun),
		Level:   level,
		Role:    RoleGroup,
		Members: append([]string(nil), members...),
	}
}

// childRole is the role a node gets when first reached through kind.
func childRole(kind Kind, stop bool) Role {
	switch {
	case stop:
		return RoleStop
	case kind == extractor.RoleDefinedFor:
		return RoleDefinedFor
	default:
		return RoleNormal
	}
}

func noteOf(u extractor.UnresolvedReference) string {
	return fmt.Sprintf("%s: %s (%s)", u.Attribute, u.Reason, u.Expr)
}
