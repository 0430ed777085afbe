package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("rulegraph.graph")

var (
	graphBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rulegraph_graph_builds_total",
		Help: "Graph builds by country and result",
	}, []string{"country", "result"})

	graphBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rulegraph_graph_build_duration_seconds",
		Help:    "Time to build a dependency graph",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"country"})

	graphNodes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rulegraph_graph_nodes",
		Help:    "Nodes per built graph",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"country"})
)

// Stats summarizes a built graph.
type Stats struct {
	Nodes    int          `json:"nodes"`
	Edges    int          `json:"edges"`
	MaxLevel int          `json:"maxLevel"`
	Missing  int          `json:"missing"`
	Roles    map[Role]int `json:"roles"`
	Kinds    map[Kind]int `json:"kinds"`
	Notes    int          `json:"unresolved"`
}

func (g *Graph) Stats() Stats {
	s := Stats{Roles: make(map[Role]int), Kinds: make(map[Kind]int)}
	if g == nil {
		return s
	}
	s.Nodes = len(g.Nodes)
	s.Edges = len(g.Edges)
	for _, n := range g.Nodes {
		s.Roles[n.Role]++
		if n.Missing {
			s.Missing++
		}
		if n.Level > s.MaxLevel {
			s.MaxLevel = n.Level
		}
		s.Notes += len(n.Notes)
	}
	for _, e := range g.Edges {
		s.Kinds[e.Kind]++
	}
	return s
}
