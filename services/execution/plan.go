package execution

import (
	"fmt"
	"slices"

	"workflow-builder/api/services/workflow"
)

// plan is the dependency structure of one run. Node indexes follow
// declaration order, which breaks ties between independent nodes.
type plan struct {
	nodes      []workflow.Node
	index      map[string]int
	dependents [][]int
	indegree   []int
	order      []int
}

// Plan computes a topological order over the edges, ties broken by
// declaration order. Self-loops and cycles are rejected with a *CycleError.
func Plan(nodes []workflow.Node, edges []workflow.Edge) ([]workflow.Node, error) {
	p, err := newPlan(nodes, edges)
	if err != nil {
		return nil, err
	}
	out := make([]workflow.Node, len(p.order))
	for i, idx := range p.order {
		out[i] = p.nodes[idx]
	}
	return out, nil
}

func newPlan(nodes []workflow.Node, edges []workflow.Edge) (*plan, error) {
	p := &plan{
		nodes:      nodes,
		index:      make(map[string]int, len(nodes)),
		dependents: make([][]int, len(nodes)),
		indegree:   make([]int, len(nodes)),
	}
	for i, n := range nodes {
		p.index[n.ID] = i
	}

	seen := make(map[[2]int]bool, len(edges))
	for _, e := range edges {
		src, ok := p.index[e.Source]
		if !ok {
			return nil, fmt.Errorf("edge %s: unknown source %q", e.ID, e.Source)
		}
		dst, ok := p.index[e.Target]
		if !ok {
			return nil, fmt.Errorf("edge %s: unknown target %q", e.ID, e.Target)
		}
		// Parallel edges between the same pair (different handles) are one dependency.
		if seen[[2]int{src, dst}] {
			continue
		}
		seen[[2]int{src, dst}] = true
		p.dependents[src] = append(p.dependents[src], dst)
		p.indegree[dst]++
	}
	for i := range p.dependents {
		slices.Sort(p.dependents[i])
	}

	indegree := slices.Clone(p.indegree)
	var ready []int
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		p.order = append(p.order, cur)
		for _, dep := range p.dependents[cur] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}
	if len(p.order) != len(nodes) {
		return nil, &CycleError{Path: p.findCycle()}
	}
	return p, nil
}

// findCycle returns the ids along one cycle, first node repeated at the end.
func (p *plan) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(p.nodes))
	parent := make([]int, len(p.nodes))
	var cycle []string

	var visit func(int) bool
	visit = func(u int) bool {
		color[u] = grey
		for _, v := range p.dependents[u] {
			switch color[v] {
			case grey:
				path := []string{p.nodes[v].ID}
				for w := u; w != v; w = parent[w] {
					path = append(path, p.nodes[w].ID)
				}
				slices.Reverse(path[1:])
				cycle = append(path, p.nodes[v].ID)
				return true
			case white:
				parent[v] = u
				if visit(v) {
					return true
				}
			}
		}
		color[u] = black
		return false
	}
	for i := range p.nodes {
		if color[i] == white && visit(i) {
			return cycle
		}
	}
	return nil
}

func insertSorted(s []int, v int) []int {
	i, _ := slices.BinarySearch(s, v)
	return slices.Insert(s, i, v)
}
