package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rulegraph/internal/extractor"
	"rulegraph/internal/resolver"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Definitions looks variables up by name.
type Definitions interface {
	Get(name string) (*extractor.VariableDefinition, bool)
}

// References yields the reference set of a definition.
type References interface {
	Extract(def *extractor.VariableDefinition) *extractor.ReferenceSet
	IsParameterPath(name string) bool
}

// Parameters resolves parameter paths.
type Parameters interface {
	Resolve(path string, asOf time.Time) resolver.Value
}

// Source is everything a build reads. A loaded dataset satisfies it.
type Source interface {
	Definitions
	References
	Parameters
}

type Options struct {
	// DefaultStops are merged into every request's stop variables unless
	// the request ignores them.
	DefaultStops []string
	Logger       *slog.Logger
}

// Builder turns a root variable into a bounded dependency graph. It holds
// no per-build state and is safe for concurrent use.
type Builder struct {
	src          Source
	defaultStops []string
	logger       *slog.Logger
}

func NewBuilder(src Source, opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		src:          src,
		defaultStops: append([]string(nil), opts.DefaultStops...),
		logger:       logger,
	}
}

// Build validates the request and traverses the corpus depth-first from
// the root. Invalid requests and unknown roots fail without a graph.
func (b *Builder) Build(ctx context.Context, req Request) (*Graph, error) {
	ctx, span := tracer.Start(ctx, "graph.Build")
	defer span.End()
	start := time.Now()

	g, err := b.build(ctx, req)
	graphBuildDuration.WithLabelValues(req.Country).Observe(time.Since(start).Seconds())
	if err != nil {
		graphBuilds.WithLabelValues(req.Country, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	graphBuilds.WithLabelValues(req.Country, "ok").Inc()
	graphNodes.WithLabelValues(req.Country).Observe(float64(len(g.Nodes)))
	span.SetAttributes(
		attribute.String("root", req.Variable),
		attribute.Int("max_depth", req.MaxDepth),
		attribute.Int("nodes", len(g.Nodes)),
		attribute.Int("edges", len(g.Edges)),
	)
	b.logger.DebugContext(ctx, "graph built",
		"root", req.Variable,
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"duration", time.Since(start),
	)
	return g, nil
}

func (b *Builder) build(ctx context.Context, req Request) (*Graph, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	def, ok := b.src.Get(req.Variable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVariableNotFound, req.Variable)
	}

	t := &traversal{
		src:      b.src,
		req:      req,
		stops:    req.StopSet(b.defaultStops),
		noParams: make(map[string]bool, len(req.NoParamsList)),
		asOf:     req.AsOf(),
		graph:    NewGraph(req.Variable),
		expanded: make(map[string]bool),
	}
	for _, name := range req.NoParamsList {
		t.noParams[name] = true
	}

	role := RoleTarget
	if req.StopsRoot() {
		role = RoleStop
	}
	root := t.graph.AddNode(newVariableNode(req.Variable, def, 0, role))
	t.visit(root, 0, nil)
	return t.graph, nil
}

// traversal is the state of one build.
type traversal struct {
	src      Source
	req      Request
	stops    map[string]bool
	noParams map[string]bool
	asOf     time.Time
	graph    *Graph
	// expanded holds every node whose references were already followed.
	expanded map[string]bool
}

// path is the immutable chain of ancestors of the node being visited.
type path struct {
	name   string
	parent *path
}

func (p *path) contains(name string) bool {
	for ; p != nil; p = p.parent {
		if p.name == name {
			return true
		}
	}
	return false
}

type child struct {
	name     string
	kind     Kind
	constant bool
}

// visit expands n at depth unless it is a stop variable, sits at the depth
// limit, has no definition, or was expanded before.
func (t *traversal) visit(n *Node, depth int, ancestors *path) {
	if depth < n.Level {
		n.Level = depth
	}
	if n.Role == RoleGroup || n.Constant || n.Missing {
		return
	}
	if n.Role != RoleTarget && t.stops[n.Name] {
		return
	}
	if depth >= t.req.MaxDepth || t.expanded[n.Name] {
		return
	}
	t.expanded[n.Name] = true
	here := &path{name: n.Name, parent: ancestors}

	refs := t.src.Extract(n.Definition)
	for _, u := range refs.Unresolved {
		n.Notes = append(n.Notes, noteOf(u))
	}
	showParams := t.req.ShowParameters && !t.noParams[n.Name]
	if showParams {
		n.Parameters = append(n.Parameters, refs.ValueParameters()...)
	}

	for _, kind := range extractor.RoleOrder {
		children := t.childrenOf(n, refs, kind, showParams)
		if len(children) == 0 {
			continue
		}
		if !t.req.ExpandAddsSubtracts && (kind == extractor.RoleAdds || kind == extractor.RoleSubtracts) {
			t.collapse(n, kind, children, depth)
			continue
		}
		for _, c := range children {
			t.link(n, c, depth, here)
		}
	}
}

// childrenOf lists the children of one role: direct references first, then
// the elements of parameter lists of that role.
func (t *traversal) childrenOf(n *Node, refs *extractor.ReferenceSet, kind Kind, showParams bool) []child {
	var out []child
	seen := make(map[string]bool)
	add := func(c child) {
		if c.name == "" || c.name == n.Name || seen[c.name] {
			return
		}
		seen[c.name] = true
		out = append(out, c)
	}
	for _, ref := range refs.ByRole(kind) {
		add(child{name: ref.Name, kind: kind, constant: ref.Constant})
	}
	if !showParams || kind == extractor.RoleDefinedFor {
		return out
	}
	for _, p := range refs.ListParameters(kind) {
		v := t.src.Resolve(p.Path, t.asOf)
		if v.Kind != resolver.KindList {
			n.Parameters = append(n.Parameters, p)
			continue
		}
		for _, name := range v.List() {
			if t.src.IsParameterPath(name) {
				continue
			}
			add(child{name: name, kind: kind})
		}
	}
	return out
}

func (t *traversal) link(parent *Node, c child, depth int, here *path) {
	n, ok := t.graph.Node(c.name)
	if !ok {
		if c.constant {
			n = t.graph.AddNode(newConstantNode(c.name, depth+1))
		} else {
			def, _ := t.src.Get(c.name)
			n = t.graph.AddNode(newVariableNode(c.name, def, depth+1, childRole(c.kind, t.stops[c.name])))
		}
	}
	t.graph.AddEdge(Edge{From: parent.ID, To: n.ID, Kind: c.kind})
	if here.contains(n.Name) {
		return
	}
	t.visit(n, depth+1, here)
}

func (t *traversal) collapse(parent *Node, kind Kind, children []child, depth int) {
	members := make([]string, 0, len(children))
	for _, c := range children {
		members = append(members, c.name)
	}
	group := t.graph.AddNode(newGroupNode(parent.Name, kind, members, depth+1))
	t.graph.AddEdge(Edge{From: parent.ID, To: group.ID, Kind: kind})
}
