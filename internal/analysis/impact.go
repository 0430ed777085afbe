package analysis

import (
	"context"
	"runtime"
	"sort"

	"rulegraph/internal/extractor"

	"golang.org/x/sync/errgroup"
)

// ReferenceExtractor yields the reference set of a definition.
type ReferenceExtractor interface {
	Extract(def *extractor.VariableDefinition) *extractor.ReferenceSet
}

// Usage is one variable that references another.
type Usage struct {
	Variable string                 `json:"variable"`
	Role     extractor.VariableRole `json:"role"`
}

// ImpactReport lists the variables whose computation reads a variable,
// directly or through other variables.
type ImpactReport struct {
	Target             string         `json:"target"`
	DirectlyAffected   []Usage        `json:"directly_affected"`
	IndirectlyAffected []string       `json:"indirectly_affected"`
	Depth              map[string]int `json:"depth"`
}

// Analyzer holds the reverse reference index of one corpus.
type Analyzer struct {
	usedBy     map[string][]Usage
	paramUsers map[string][]string
}

// NewAnalyzer extracts every definition once and inverts the references.
// Definitions are processed in parallel; the index is built in input order.
func NewAnalyzer(ctx context.Context, defs []*extractor.VariableDefinition, ext ReferenceExtractor) (*Analyzer, error) {
	refs := make([]*extractor.ReferenceSet, len(defs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, def := range defs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			refs[i] = ext.Extract(def)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a := &Analyzer{
		usedBy:     make(map[string][]Usage),
		paramUsers: make(map[string][]string),
	}
	for i, def := range defs {
		for _, ref := range refs[i].Variables {
			if ref.Constant || ref.Name == def.Name {
				continue
			}
			a.usedBy[ref.Name] = append(a.usedBy[ref.Name], Usage{Variable: def.Name, Role: ref.Role})
		}
		seen := make(map[string]bool)
		for _, p := range refs[i].Parameters {
			if seen[p.Path] {
				continue
			}
			seen[p.Path] = true
			a.paramUsers[p.Path] = append(a.paramUsers[p.Path], def.Name)
		}
	}
	for k := range a.usedBy {
		sortUsages(a.usedBy[k])
	}
	for k := range a.paramUsers {
		sort.Strings(a.paramUsers[k])
	}
	return a, nil
}

// UsedBy returns the variables referencing name directly.
func (a *Analyzer) UsedBy(name string) []Usage {
	return a.usedBy[name]
}

// ParameterUsers returns the variables reading a parameter path.
func (a *Analyzer) ParameterUsers(path string) []string {
	return a.paramUsers[path]
}

// AnalyzeImpact walks reverse references breadth-first up to maxHops
// (0 means unbounded) and reports every variable that would change if
// target changed.
func (a *Analyzer) AnalyzeImpact(target string, maxHops int) *ImpactReport {
	report := &ImpactReport{
		Target:             target,
		DirectlyAffected:   append([]Usage{}, a.usedBy[target]...),
		IndirectlyAffected: []string{},
		Depth:              map[string]int{target: 0},
	}

	type queueItem struct {
		name  string
		depth int
	}
	queue := []queueItem{{name: target}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxHops > 0 && cur.depth >= maxHops {
			continue
		}
		for _, u := range a.usedBy[cur.name] {
			if _, seen := report.Depth[u.Variable]; seen {
				continue
			}
			report.Depth[u.Variable] = cur.depth + 1
			if cur.depth > 0 {
				report.IndirectlyAffected = append(report.IndirectlyAffected, u.Variable)
			}
			queue = append(queue, queueItem{name: u.Variable, depth: cur.depth + 1})
		}
	}
	sort.Strings(report.IndirectlyAffected)
	return report
}

func sortUsages(us []Usage) {
	sort.Slice(us, func(i, j int) bool {
		if us[i].Variable == us[j].Variable {
			return roleIndex(us[i].Role) < roleIndex(us[j].Role)
		}
		return us[i].Variable < us[j].Variable
	})
}

func roleIndex(r extractor.VariableRole) int {
	for i, role := range extractor.RoleOrder {
		if role == r {
			return i
		}
	}
	return len(extractor.RoleOrder)
}
