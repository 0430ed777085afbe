package generator

import (
	"fmt"
	"regexp"
	"strings"

	"rulegraph/internal/extractor"
	"rulegraph/internal/graph"
)

// MermaidGenerator renders dependency graphs as Mermaid flowcharts.
type MermaidGenerator struct{}

func NewMermaidGenerator() *MermaidGenerator {
	return &MermaidGenerator{}
}

var mermaidClasses = []struct {
	role  graph.Role
	style string
}{
	{graph.RoleTarget, "fill:#39C6C0,stroke:#227773,stroke-width:2px,font-weight:bold"},
	{graph.RoleNormal, "fill:#D8E6F3,stroke:#2C6496"},
	{graph.RoleStop, "fill:#F7FAFD,stroke:#b50d0d,stroke-width:2px"},
	{graph.RoleDefinedFor, "fill:#ffe0b2,stroke:#ff9900"},
	{graph.RoleGroup, "fill:#E2E2E2,stroke:#616161"},
}

// GenerateDependencyGraph returns a flowchart with one class per node role.
// Node and edge order follow the graph.
func (m *MermaidGenerator) GenerateDependencyGraph(g *graph.Graph) string {
	var sb strings.Builder
	sb.WriteString("flowchart TD\n")
	for _, c := range mermaidClasses {
		fmt.Fprintf(&sb, "    classDef %s %s\n", c.role, c.style)
	}

	ids := make(map[string]string, len(g.Nodes))
	used := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		id := sanitizeMermaidID(n.ID)
		for base, i := id, 2; used[id]; i++ {
			id = fmt.Sprintf("%s_%d", base, i)
		}
		used[id] = true
		ids[n.ID] = id

		label := n.Name
		if n.Role == graph.RoleGroup {
			label = n.Label
		}
		lb, rb := "[", "]"
		switch {
		case n.Role == graph.RoleDefinedFor:
			lb, rb = "{", "}"
		case n.Role == graph.RoleGroup:
			lb, rb = "([", "])"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s:::%s\n", id, lb, escapeMermaid(label), rb, n.Role)
	}

	for _, e := range g.Edges {
		arrow := "-->"
		if e.Kind == extractor.RoleDefinedFor {
			arrow = "-.->"
		}
		fmt.Fprintf(&sb, "    %s %s|%s| %s\n", ids[e.From], arrow, e.Kind, ids[e.To])
	}
	return sb.String()
}

// Fenced wraps a diagram in a markdown code block.
func Fenced(diagram string) string {
	return "```mermaid\n" + strings.TrimRight(diagram, "\n") + "\n```\n"
}

var nonIDChars = regexp.MustCompile(`[^a-z0-9_]`)

func sanitizeMermaidID(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "node"
	}
	v = nonIDChars.ReplaceAllString(strings.ReplaceAll(v, "-", "_"), "_")
	if v[0] >= '0' && v[0] <= '9' {
		v = "n_" + v
	}
	// end, graph and subgraph are flowchart keywords
	switch v {
	case "end", "graph", "subgraph", "flowchart":
		v = "v_" + v
	}
	return v
}

func escapeMermaid(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
