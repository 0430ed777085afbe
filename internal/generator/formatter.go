package generator

import (
	"fmt"
	"strings"
	"time"

	"rulegraph/internal/extractor"
	"rulegraph/internal/graph"
	"rulegraph/internal/resolver"
)

// RenderableGraph is a graph in the shape vis-network consumes.
type RenderableGraph struct {
	Nodes []VisNode    `json:"nodes"`
	Edges []VisEdge    `json:"edges"`
	Stats *graph.Stats `json:"stats,omitempty"`
}

type VisColor struct {
	Background string    `json:"background"`
	Border     string    `json:"border"`
	Highlight  *VisColor `json:"highlight,omitempty"`
}

type VisFont struct {
	Size  int    `json:"size"`
	Color string `json:"color"`
	Face  string `json:"face"`
	Bold  bool   `json:"bold"`
	Multi bool   `json:"multi"`
	Align string `json:"align"`
}

type ShapeProperties struct {
	BorderDashes bool `json:"borderDashes"`
}

type VisNode struct {
	ID              string           `json:"id"`
	Label           string           `json:"label"`
	Title           string           `json:"title"`
	Level           int              `json:"level"`
	Role            graph.Role       `json:"role"`
	Shape           string           `json:"shape"`
	Color           VisColor         `json:"color"`
	Font            VisFont          `json:"font"`
	BorderWidth     int              `json:"borderWidth"`
	ShapeProperties *ShapeProperties `json:"shapeProperties,omitempty"`
}

type EdgeColor struct {
	Color     string `json:"color"`
	Highlight string `json:"highlight"`
}

type VisEdge struct {
	From   string     `json:"from"`
	To     string     `json:"to"`
	Kind   graph.Kind `json:"kind"`
	Title  string     `json:"title"`
	Color  EdgeColor  `json:"color"`
	Dashes bool       `json:"dashes"`
	Arrows string     `json:"arrows"`
	Width  int        `json:"width"`
}

type nodeStyle struct {
	shape string
	color VisColor
}

var nodeStyles = map[graph.Role]nodeStyle{
	graph.RoleTarget: {"box", VisColor{
		Background: "#39C6C0", Border: "#227773",
		Highlight: &VisColor{Background: "#39C6C0", Border: "#227773"},
	}},
	graph.RoleNormal: {"box", VisColor{
		Background: "#D8E6F3", Border: "#2C6496",
		Highlight: &VisColor{Background: "#F7FAFD", Border: "#2C6496"},
	}},
	graph.RoleStop: {"box", VisColor{
		Background: "#F7FAFD", Border: "#b50d0d",
		Highlight: &VisColor{Background: "#ffebeb", Border: "#b50d0d"},
	}},
	graph.RoleDefinedFor: {"diamond", VisColor{
		Background: "#ffe0b2", Border: "#ff9900",
		Highlight: &VisColor{Background: "#fff3e0", Border: "#ff9900"},
	}},
	graph.RoleGroup: {"ellipse", VisColor{
		Background: "#E2E2E2", Border: "#616161",
		Highlight: &VisColor{Background: "#F2F2F2", Border: "#616161"},
	}},
}

type edgeStyle struct {
	title  string
	color  EdgeColor
	dashes bool
}

var edgeStyles = map[graph.Kind]edgeStyle{
	extractor.RoleAdds:       {"Added to parent variable", EdgeColor{"#29d40f", "#29d40f"}, false},
	extractor.RoleSubtracts:  {"Subtracted from parent variable", EdgeColor{"#b50d0d", "#b50d0d"}, false},
	extractor.RoleDepends:    {"Variable reference", EdgeColor{"#808080", "#616161"}, false},
	extractor.RoleDefinedFor: {"Applies only where this holds", EdgeColor{"#ff9900", "#ff9900"}, true},
}

const labelWidth = 25

// Formatter turns built graphs into renderable records. Parameter values
// in tooltips are resolved through params.
type Formatter struct {
	params graph.Parameters
}

func NewFormatter(params graph.Parameters) *Formatter {
	return &Formatter{params: params}
}

// Format renders g for the options of req. It does not modify g.
func (f *Formatter) Format(g *graph.Graph, req graph.Request) *RenderableGraph {
	out := &RenderableGraph{
		Nodes: make([]VisNode, 0, len(g.Nodes)),
		Edges: make([]VisEdge, 0, len(g.Edges)),
	}
	level, asOf := req.DetailLevel(), req.AsOf()

	for _, n := range g.Nodes {
		style := nodeStyles[n.Role]
		vn := VisNode{
			ID:    n.ID,
			Title: f.Tooltip(n, level, asOf),
			Level: n.Level,
			Role:  n.Role,
			Shape: style.shape,
			Color: style.color,
			Font: VisFont{
				Size:  16,
				Color: "#333333",
				Face:  "Arial, sans-serif",
				Bold:  n.Role == graph.RoleTarget,
				Multi: true,
				Align: "center",
			},
			BorderWidth: 2,
		}
		if req.ShowLabels {
			if n.Role == graph.RoleGroup {
				vn.Label = n.Label
			} else {
				vn.Label = WrapLabel(n.Name, labelWidth)
			}
		}
		if n.Missing {
			vn.ShapeProperties = &ShapeProperties{BorderDashes: true}
		}
		out.Nodes = append(out.Nodes, vn)
	}

	for _, e := range g.Edges {
		style := edgeStyles[e.Kind]
		out.Edges = append(out.Edges, VisEdge{
			From:   e.From,
			To:     e.To,
			Kind:   e.Kind,
			Title:  style.title,
			Color:  style.color,
			Dashes: style.dashes,
			Arrows: "to",
			Width:  2,
		})
	}
	return out
}

// Tooltip describes a node in plain text.
func (f *Formatter) Tooltip(n *graph.Node, level resolver.DetailLevel, asOf time.Time) string {
	var sb strings.Builder
	sb.WriteString(n.Name)

	line := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "\n%s: %s", key, value)
		}
	}

	switch {
	case n.Role == graph.RoleGroup:
		line("Variables", strings.Join(n.Members, ", "))
	case n.Constant:
		line("Condition", "enumerated constant")
	case n.Missing:
		sb.WriteString("\nNo definition found in the corpus")
	}

	if def := n.Definition; def != nil {
		if def.Label != "" {
			line("Label", def.Label)
		}
		line("Entity", def.Entity)
		line("Type", string(def.ValueType))
		line("Unit", def.Unit)
		if len(def.Enum) > 0 {
			labels := make([]string, 0, len(def.Enum))
			for _, v := range def.Enum {
				labels = append(labels, v.Label)
			}
			line("Possible values", strings.Join(labels, ", "))
		}
	}

	if len(n.Parameters) > 0 && f.params != nil {
		sb.WriteString("\nParameters:")
		for _, p := range n.Parameters {
			v := f.params.Resolve(p.Path, asOf)
			name := p.Path
			if v.Metadata.Label != "" {
				name = fmt.Sprintf("%s (%s)", p.Path, v.Metadata.Label)
			}
			text := resolver.FormatKeyed(v, level, p.Key)
			fmt.Fprintf(&sb, "\n  %s: %s", name, indent(text, "    "))
		}
	}

	if len(n.Notes) > 0 {
		sb.WriteString("\nPartially resolved:")
		for _, note := range n.Notes {
			sb.WriteString("\n  " + note)
		}
	}
	return sb.String()
}

// WrapLabel breaks long snake_case names onto several lines at underscore
// boundaries, keeping each line near width characters. The underscore
// stays at the end of the broken line.
func WrapLabel(name string, width int) string {
	if len(name) <= width {
		return name
	}
	var lines []string
	var current []string
	length := 0
	for _, word := range strings.Split(name, "_") {
		if length > 0 && length+len(word) > width {
			lines = append(lines, strings.Join(current, "_"))
			current, length = nil, 0
		}
		current = append(current, word)
		length += len(word) + 1
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, "_"))
	}
	return strings.Join(lines, "_\n")
}

func indent(text, prefix string) string {
	return strings.ReplaceAll(text, "\n", "\n"+prefix)
}
