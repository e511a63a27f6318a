package splice

import (
	"fmt"
	"maps"
	"slices"

	"github.com/matzehuels/stacksolve/pkg/facts"
	"github.com/matzehuels/stacksolve/pkg/solver"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

// attempt is a candidate splice worked out on a structural copy of the
// current solution. Nodes are shared with the current solution until commit,
// so a rejected attempt leaves nothing behind.
type attempt struct {
	sol      *solver.Solution
	node     *spec.Spec
	imported []*spec.Spec
	// stale lists reused ancestors whose recorded hash no longer holds.
	stale []*spec.Spec
}

func shallow(s *solver.Solution) *solver.Solution {
	c := *s
	c.Roots = slices.Clone(s.Roots)
	c.Nodes = slices.Clone(s.Nodes)
	c.Edges = slices.Clone(s.Edges)
	c.Providers = maps.Clone(s.Providers)
	c.Reused = maps.Clone(s.Reused)
	return &c
}

// try replaces target with c. A transitive splice brings c's whole
// dependency graph along, replacing same-named nodes; otherwise c is wired
// onto the solution's existing nodes and only missing dependencies are
// imported.
func (r *resolver) try(target, c *spec.Spec, transitive bool) (*attempt, string) {
	cur := r.res.Solution
	for _, e := range cur.Edges {
		if e.Child != target {
			continue
		}
		switch {
		case e.Virtual != "" && !r.table.ProvidesVirtual(c, e.Virtual):
			return nil, fmt.Sprintf("%s does not provide %s", c.NodeString(), e.Virtual)
		case e.Virtual == "" && c.Name != target.Name:
			return nil, fmt.Sprintf("%s cannot stand in for %s", c.Name, target.Name)
		}
	}
	for v, p := range cur.Providers {
		if p == target && !r.table.ProvidesVirtual(c, v) {
			return nil, fmt.Sprintf("%s does not provide %s", c.NodeString(), v)
		}
	}

	a := &attempt{sol: shallow(cur)}
	g := &rewiring{a: a, memo: make(map[*spec.Spec]*spec.Spec)}
	node := fresh(c)
	a.node = node
	g.memo[c] = node
	g.replace(target, node)

	for _, e := range c.Dependencies() {
		var child *spec.Spec
		if !transitive {
			child = g.existing(e.Spec.Name, e.Virtual)
		}
		if child == nil {
			child = g.importTree(e.Spec)
		}
		g.link(node, child, e.Types, e.Virtual)
	}
	g.collect()

	for _, e := range a.sol.Edges {
		if g.isImported(e.Child) && !g.isImported(e.Parent) {
			if why := r.honors(e); why != "" {
				return nil, why
			}
		}
	}

	seen := make(map[string]*spec.Spec)
	for _, n := range a.sol.Nodes {
		if pkg, ok := r.table.Package(n.Name); ok && pkg.MultiInstance {
			continue
		}
		if prev, dup := seen[n.Name]; dup {
			return nil, fmt.Sprintf("splicing %s would leave both %s and %s in the graph", c.NodeString(), prev.NodeString(), n.NodeString())
		}
		seen[n.Name] = n
	}

	// The replacement keeps its identity only if it still sits on the
	// dependencies it was built with.
	intact := true
	for _, e := range c.Dependencies() {
		if child := g.childOf(node, e.Spec.Name, e.Virtual); child == nil || child.Hash != e.Spec.Hash {
			intact = false
		}
	}
	if intact {
		a.sol.Reused[node] = true
	} else {
		node.Hash = ""
	}
	for _, anc := range g.ancestors(node) {
		if a.sol.Reused[anc] {
			delete(a.sol.Reused, anc)
			a.stale = append(a.stale, anc)
		}
	}
	return a, ""
}

// honors checks the edge's new child against the depends_on declarations
// of the parent that hold. It returns why the child breaks one.
func (r *resolver) honors(e solver.Edge) string {
	pkg, ok := r.table.Package(e.Parent.Name)
	if !ok {
		return ""
	}
	sub := facts.ForSpec(e.Parent, r.table)
	for _, d := range pkg.Dependencies {
		if d.When.Eval(sub) != facts.True {
			continue
		}
		switch {
		case e.Virtual != "" && d.Name() == e.Virtual:
			want := d.Spec.Versions
			provided, _ := r.table.ProvidedVersions(e.Child, e.Virtual)
			if !want.IsAny() && !provided.IsAny() && !provided.Intersects(want) {
				return fmt.Sprintf("%s provides %s@%s but %s requires %s", e.Child.NodeString(), e.Virtual, provided, e.Parent.Name, d.Source)
			}
		case e.Virtual == "" && d.Name() == e.Child.Name:
			if !e.Child.SatisfiesNode(d.Spec) {
				return fmt.Sprintf("%s does not meet %s requirement %s", e.Child.NodeString(), e.Parent.Name, d.Source)
			}
		}
	}
	return ""
}

func (r *resolver) commitGraph(a *attempt) {
	for _, n := range a.stale {
		n.Hash = ""
	}
	for _, n := range a.sol.Nodes {
		n.ClearDependencies()
	}
	for _, e := range a.sol.Edges {
		e.Parent.AddDependency(e.Child, e.Types).Virtual = e.Virtual
	}
}

func fresh(c *spec.Spec) *spec.Spec {
	n := c.CloneNode()
	n.Concrete = false
	return n
}

type rewiring struct {
	a    *attempt
	memo map[*spec.Spec]*spec.Spec
}

// replace puts repl wherever old was and drops old's outgoing edges.
func (g *rewiring) replace(old, repl *spec.Spec) {
	sol := g.a.sol
	var edges []solver.Edge
	for _, e := range sol.Edges {
		if e.Parent == old {
			continue
		}
		if e.Child == old {
			e.Child = repl
		}
		edges = append(edges, e)
	}
	sol.Edges = edges
	for i, r := range sol.Roots {
		if r == old {
			sol.Roots[i] = repl
		}
	}
	for v, p := range sol.Providers {
		if p == old {
			sol.Providers[v] = repl
		}
	}
	delete(sol.Reused, old)
	if i := slices.Index(sol.Nodes, old); i >= 0 {
		sol.Nodes[i] = repl
	} else {
		sol.Nodes = append(sol.Nodes, repl)
	}
}

// existing finds the solution node a dependency named name (or requested
// through virtual) should attach to.
func (g *rewiring) existing(name, virtual string) *spec.Spec {
	sol := g.a.sol
	if virtual != "" {
		if p := sol.Providers[virtual]; p != nil {
			return p
		}
	}
	for _, n := range sol.Nodes {
		if n.Name == name && n != g.a.node {
			return n
		}
	}
	return nil
}

// importTree copies c and its dependencies into the solution. A node of
// the same name already there is replaced.
func (g *rewiring) importTree(c *spec.Spec) *spec.Spec {
	if n, ok := g.memo[c]; ok {
		return n
	}
	n := fresh(c)
	g.memo[c] = n
	g.a.imported = append(g.a.imported, n)
	var old *spec.Spec
	for _, x := range g.a.sol.Nodes {
		if x.Name == c.Name && !g.isImported(x) {
			old = x
			break
		}
	}
	if old != nil {
		g.replace(old, n)
	} else {
		g.a.sol.Nodes = append(g.a.sol.Nodes, n)
	}
	g.a.sol.Reused[n] = true
	for _, e := range c.Dependencies() {
		g.link(n, g.importTree(e.Spec), e.Types, e.Virtual)
	}
	return n
}

func (g *rewiring) isImported(n *spec.Spec) bool {
	return n == g.a.node || slices.Contains(g.a.imported, n)
}

func (g *rewiring) link(parent, child *spec.Spec, types spec.DepType, virtual string) {
	sol := g.a.sol
	sol.Edges = append(sol.Edges, solver.Edge{
		Parent:  parent,
		Child:   child,
		Types:   types,
		Virtual: virtual,
		Origin:  solver.Requirement{Requirer: parent.Name, Constraint: "spliced " + child.NodeString()},
	})
	if virtual != "" {
		if _, ok := sol.Providers[virtual]; !ok {
			sol.Providers[virtual] = child
		}
	}
}

func (g *rewiring) childOf(parent *spec.Spec, name, virtual string) *spec.Spec {
	for _, e := range g.a.sol.Edges {
		if e.Parent == parent && (e.Child.Name == name || (virtual != "" && e.Virtual == virtual)) {
			return e.Child
		}
	}
	return nil
}

// collect drops nodes no longer reachable from a root.
func (g *rewiring) collect() {
	sol := g.a.sol
	live := make(map[*spec.Spec]bool)
	queue := slices.Clone(sol.Roots)
	for _, r := range queue {
		live[r] = true
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range sol.Edges {
			if e.Parent == n && !live[e.Child] {
				live[e.Child] = true
				queue = append(queue, e.Child)
			}
		}
	}
	sol.Nodes = slices.DeleteFunc(sol.Nodes, func(n *spec.Spec) bool { return !live[n] })
	sol.Edges = slices.DeleteFunc(sol.Edges, func(e solver.Edge) bool { return !live[e.Parent] })
	for v, p := range sol.Providers {
		if !live[p] {
			delete(sol.Providers, v)
		}
	}
	for n := range sol.Reused {
		if !live[n] {
			delete(sol.Reused, n)
		}
	}
}

// ancestors returns every node with a path to n.
func (g *rewiring) ancestors(n *spec.Spec) []*spec.Spec {
	var out []*spec.Spec
	seen := map[*spec.Spec]bool{n: true}
	queue := []*spec.Spec{n}
	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]
		for _, e := range g.a.sol.Edges {
			if e.Child == x && !seen[e.Parent] {
				seen[e.Parent] = true
				out = append(out, e.Parent)
				queue = append(queue, e.Parent)
			}
		}
	}
	return out
}
