package resolver

import (
	"time"
)

// Source is one parameter base consulted by a Chain.
type Source interface {
	Name() string
	Resolve(path string, asOf time.Time) Value
}

// Stage is a named tree, typically one parameters directory.
type Stage struct {
	name string
	tree *Tree
}

func NewStage(name string, tree *Tree) *Stage {
	return &Stage{name: name, tree: tree}
}

func (s *Stage) Name() string {
	return s.name
}

func (s *Stage) Resolve(path string, asOf time.Time) Value {
	return s.tree.Resolve(path, asOf)
}

// Files returns the number of documents behind the stage.
func (s *Stage) Files() int {
	if s.tree == nil {
		return 0
	}
	return s.tree.Files()
}

// StageResult records what one source answered for a path.
type StageResult struct {
	Source string
	Kind   Kind
}

// Chain resolves a path against several sources in order; the first that
// has the path wins.
type Chain struct {
	sources []Source
}

func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

func (c *Chain) Resolve(path string, asOf time.Time) Value {
	if c == nil {
		return Unavailable(path)
	}
	for _, s := range c.sources {
		v := s.Resolve(path, asOf)
		if v.Available() {
			v.Source = s.Name()
			return v
		}
	}
	v := Unavailable(path)
	v.AsOf = asOf
	return v
}

// Trace reports every source's answer for a path, in order, without
// stopping at the first hit.
func (c *Chain) Trace(path string) []StageResult {
	if c == nil {
		return nil
	}
	out := make([]StageResult, 0, len(c.sources))
	for _, s := range c.sources {
		out = append(out, StageResult{Source: s.Name(), Kind: s.Resolve(path, time.Time{}).Kind})
	}
	return out
}

// Len returns the number of sources.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.sources)
}
