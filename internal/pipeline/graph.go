package pipeline

import (
	"fmt"
	"sort"
)

// Graph is the dependency graph between bootstrap stages. A stage runs
// only after every stage it depends on has completed.
type Graph struct {
	deps  map[Stage][]Stage
	order []Stage
}

func NewGraph() *Graph {
	return &Graph{deps: make(map[Stage][]Stage)}
}

// DefaultGraph returns the bootstrap ordering: roles, then tokens, then
// reserves, then the three per-reserve configuration stages.
func DefaultGraph() *Graph {
	g := NewGraph()
	g.mustAdd(StageAccessControl)
	g.mustAdd(StageTokens, StageAccessControl)
	g.mustAdd(StageReserves, StageTokens)
	g.mustAdd(StageRates, StageReserves)
	g.mustAdd(StageOracle, StageReserves)
	g.mustAdd(StageRisk, StageReserves)
	return g
}

func (g *Graph) mustAdd(stage Stage, deps ...Stage) {
	if err := g.Add(stage, deps...); err != nil {
		panic(err)
	}
}

// Add registers stage with its dependencies. Dependencies must already be
// in the graph, which keeps it acyclic.
func (g *Graph) Add(stage Stage, deps ...Stage) error {
	if _, ok := g.deps[stage]; ok {
		return fmt.Errorf("stage %s already added", stage)
	}
	for _, d := range deps {
		if _, ok := g.deps[d]; !ok {
			return fmt.Errorf("stage %s depends on unknown stage %s", stage, d)
		}
	}
	g.deps[stage] = append([]Stage(nil), deps...)
	g.order = append(g.order, stage)
	return nil
}

func (g *Graph) Dependencies(stage Stage) []Stage {
	return append([]Stage(nil), g.deps[stage]...)
}

// Order returns the stages in a topological order.
func (g *Graph) Order() []Stage {
	var out []Stage
	for _, level := range g.Levels() {
		out = append(out, level...)
	}
	return out
}

// Levels groups stages by depth. Stages in one level do not depend on each
// other and may run in any order.
func (g *Graph) Levels() [][]Stage {
	depth := make(map[Stage]int, len(g.order))
	maxDepth := -1
	for _, s := range g.order {
		d := 0
		for _, dep := range g.deps[s] {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[s] = d
		if d > maxDepth {
			maxDepth = d
		}
	}
	levels := make([][]Stage, maxDepth+1)
	for _, s := range g.order {
		levels[depth[s]] = append(levels[depth[s]], s)
	}
	for _, l := range levels {
		sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })
	}
	return levels
}

// Downstream returns every stage that depends on stage, directly or not.
func (g *Graph) Downstream(stage Stage) []Stage {
	blocked := map[Stage]bool{stage: true}
	var out []Stage
	for _, s := range g.order {
		for _, dep := range g.deps[s] {
			if blocked[dep] {
				blocked[s] = true
				out = append(out, s)
				break
			}
		}
	}
	return out
}
