package solver

import (
	"slices"
	"strings"

	"github.com/matzehuels/stacksolve/pkg/spec"
)

// Edge is a dependency edge of a solution, with the declaration it came from.
type Edge struct {
	Parent  *spec.Spec
	Child   *spec.Spec
	Types   spec.DepType
	Virtual string
	Origin  Requirement
}

// Solution is a solved dependency graph. Every node has a single version,
// compiler, variant assignment and arch; the roots' dependency edges are
// wired, so Roots[i].Traverse walks the whole subgraph.
type Solution struct {
	Roots []*spec.Spec
	// Nodes lists every node once, in the order the search decided them.
	Nodes []*spec.Spec
	Edges []Edge
	// Providers maps each virtual in the graph to its single provider.
	Providers map[string]*spec.Spec
	// Reused marks nodes taken from the reusable specs rather than built.
	Reused map[*spec.Spec]bool

	Cost  Cost
	Steps int
	// Optimal is false when the search stopped early and returned the best
	// solution found so far.
	Optimal bool
}

// Node returns the first node named name.
func (s *Solution) Node(name string) *spec.Spec {
	for _, n := range s.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// NodesNamed returns every node named name. Only multi-instance packages
// have more than one.
func (s *Solution) NodesNamed(name string) []*spec.Spec {
	var out []*spec.Spec
	for _, n := range s.Nodes {
		if n.Name == name {
			out = append(out, n)
		}
	}
	return out
}

// Names returns the distinct package names in the solution, sorted.
func (s *Solution) Names() []string {
	var out []string
	for _, n := range s.Nodes {
		out = append(out, n.Name)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// EdgesFrom returns the edges leaving n.
func (s *Solution) EdgesFrom(n *spec.Spec) []Edge {
	var out []Edge
	for _, e := range s.Edges {
		if e.Parent == n {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a deep copy. Nodes, edges, providers and the reused set all
// refer to the copied specs.
func (s *Solution) Clone() *Solution {
	orig := slices.Clone(s.Nodes)
	copies, memo := spec.CloneGraph(orig)
	c := &Solution{
		Nodes:     copies,
		Providers: make(map[string]*spec.Spec, len(s.Providers)),
		Reused:    make(map[*spec.Spec]bool, len(s.Reused)),
		Cost:      s.Cost,
		Steps:     s.Steps,
		Optimal:   s.Optimal,
	}
	for _, r := range s.Roots {
		c.Roots = append(c.Roots, memo[r])
	}
	for _, e := range s.Edges {
		e.Parent, e.Child = memo[e.Parent], memo[e.Child]
		c.Edges = append(c.Edges, e)
	}
	for v, p := range s.Providers {
		c.Providers[v] = memo[p]
	}
	for n, ok := range s.Reused {
		if ok {
			c.Reused[memo[n]] = true
		}
	}
	return c
}

// String formats every root in spec syntax, one per line.
func (s *Solution) String() string {
	lines := make([]string, len(s.Roots))
	for i, r := range s.Roots {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

// Tree formats every root as an indented tree.
func (s *Solution) Tree() string {
	var b strings.Builder
	for _, r := range s.Roots {
		b.WriteString(r.Tree())
	}
	return b.String()
}
