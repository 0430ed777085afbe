package graph

// Graph is the result of one build. Nodes and edges keep insertion order.
type Graph struct {
	Root  string  `json:"root"`
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`

	index map[string]*Node
	edges map[Edge]bool
}

// NewGraph creates an empty graph.
func NewGraph(root string) *Graph {
	return &Graph{
		Root:  root,
		Nodes: []*Node{},
		Edges: []Edge{},
		index: make(map[string]*Node),
		edges: make(map[Edge]bool),
	}
}

// Node looks a node up by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.index[id]
	return n, ok
}

// AddNode inserts n unless a node with the same id exists, and returns the
// node stored in the graph.
func (g *Graph) AddNode(n *Node) *Node {
	if existing, ok := g.index[n.ID]; ok {
		return existing
	}
	g.index[n.ID] = n
	g.Nodes = append(g.Nodes, n)
	return n
}

// AddEdge appends e unless the exact same edge is already present.
func (g *Graph) AddEdge(e Edge) bool {
	if g.edges[e] {
		return false
	}
	g.edges[e] = true
	g.Edges = append(g.Edges, e)
	return true
}

// Dependencies returns the nodes the given node points to.
func (g *Graph) Dependencies(id string) []*Node {
	var deps []*Node
	for _, edge := range g.Edges {
		if edge.From == id {
			if node, ok := g.index[edge.To]; ok {
				deps = append(deps, node)
			}
		}
	}
	return deps
}

// Dependents returns the nodes pointing to the given node.
func (g *Graph) Dependents(id string) []*Node {
	var deps []*Node
	for _, edge := range g.Edges {
		if edge.To == id {
			if node, ok := g.index[edge.From]; ok {
				deps = append(deps, node)
			}
		}
	}
	return deps
}

// OutEdges returns the edges leaving a node.
func (g *Graph) OutEdges(id string) []Edge {
	var out []Edge
	for _, edge := range g.Edges {
		if edge.From == id {
			out = append(out, edge)
		}
	}
	return out
}
