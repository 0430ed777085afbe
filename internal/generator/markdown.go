package generator

import (
	"fmt"
	"strings"

	"rulegraph/internal/graph"
)

// MarkdownGenerator writes a reference page for one variable.
type MarkdownGenerator struct {
	mermaid MermaidGenerator
}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

// GenerateVariableDoc renders d as markdown. When g is not nil its
// flowchart is embedded under a "Dependency graph" heading.
func (m *MarkdownGenerator) GenerateVariableDoc(d *VariableDetails, g *graph.Graph) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", d.Label)
	fmt.Fprintf(&sb, "`%s`", d.Name)
	if d.Filepath != "" {
		fmt.Fprintf(&sb, " defined in `%s` (lines %d-%d)", d.Filepath, d.StartLine, d.EndLine)
	}
	sb.WriteString("\n\n")
	if doc := strings.TrimSpace(d.Documentation); doc != "" {
		sb.WriteString(doc + "\n\n")
	}

	sb.WriteString("| Field | Value |\n")
	sb.WriteString("| :--- | :--- |\n")
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&sb, "| %s | %s |\n", k, tableCell(v))
		}
	}
	row("Entity", d.Entity)
	row("Value type", string(d.ValueType))
	row("Period", d.DefinitionPeriod)
	row("Unit", d.Unit)
	row("Possible values", strings.Join(d.PossibleValues, ", "))

	section := func(title string, names []string) {
		if len(names) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", title)
		for _, n := range names {
			fmt.Fprintf(&sb, "- `%s`\n", n)
		}
	}
	section("Variables", d.Variables)
	section("Adds", d.Adds)
	section("Subtracts", d.Subtracts)
	section("Defined for", d.DefinedFor)

	if len(d.Parameters) > 0 {
		sb.WriteString("\n## Parameters\n\n")
		sb.WriteString("| Path | Label | Value |\n")
		sb.WriteString("| :--- | :--- | :--- |\n")
		for _, p := range d.Parameters {
			fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", p.Path, tableCell(p.Label), tableCell(p.Value))
		}
	}

	if len(d.UsedBy) > 0 {
		sb.WriteString("\n## Used by\n\n")
		for _, u := range d.UsedBy {
			fmt.Fprintf(&sb, "- `%s` (%s)\n", u.Variable, u.Role)
		}
	}

	if len(d.Unresolved) > 0 {
		sb.WriteString("\n## Unresolved references\n\n")
		for _, u := range d.Unresolved {
			fmt.Fprintf(&sb, "- %s\n", u)
		}
	}

	content := sb.String()
	if g != nil {
		content = injectDiagram(content, "## Dependency graph", Fenced(m.mermaid.GenerateDependencyGraph(g)))
	}
	return strings.TrimSpace(content) + "\n"
}

func tableCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "<br>")
}

func injectDiagram(content, heading, diagram string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return heading + "\n\n" + strings.TrimSpace(diagram)
	}
	pos := strings.Index(trimmed, heading)
	if pos == -1 {
		return trimmed + "\n\n" + heading + "\n\n" + strings.TrimSpace(diagram)
	}
	headEnd := pos + len(heading)
	prefix := strings.TrimRight(trimmed[:headEnd], "\n")
	suffix := strings.TrimLeft(trimmed[headEnd:], "\n")
	if suffix == "" {
		return prefix + "\n\n" + strings.TrimSpace(diagram)
	}
	return prefix + "\n\n" + strings.TrimSpace(diagram) + "\n\n" + suffix
}
