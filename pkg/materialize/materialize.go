package materialize

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/stacksolve/pkg/dag"
	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/observability"
	"github.com/matzehuels/stacksolve/pkg/solver"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

// Result is a hashed, frozen solution.
type Result struct {
	// Roots are the requested specs, in request order.
	Roots []*spec.Spec
	// Nodes holds every node by hash.
	Nodes map[string]*spec.Spec
	// Order lists node hashes with dependencies before their dependents.
	Order []string
	// Reused holds the hashes of nodes taken from installed specs.
	Reused map[string]bool
	// Graph is a dag.DAG view keyed by hash, with rows assigned by depth.
	Graph *dag.DAG

	Cost    solver.Cost
	Optimal bool
}

// Specs returns every node in build order.
func (r *Result) Specs() []*spec.Spec {
	out := make([]*spec.Spec, len(r.Order))
	for i, h := range r.Order {
		out[i] = r.Nodes[h]
	}
	return out
}

// Lookup returns the nodes whose hash starts with prefix.
func (r *Result) Lookup(prefix string) []*spec.Spec {
	var out []*spec.Spec
	for _, h := range r.Order {
		if strings.HasPrefix(h, prefix) {
			out = append(out, r.Nodes[h])
		}
	}
	return out
}

// Materialize hashes every node of sol bottom-up and freezes it. sol is not
// modified; the result holds copies.
//
// A reused node must hash to the hash it was installed under; a mismatch is
// an INTERNAL_ERROR. Two different nodes with one hash are a
// [*HashCollisionError].
func Materialize(ctx context.Context, sol *solver.Solution) (*Result, error) {
	return materialize(ctx, sol, Sum)
}

func materialize(ctx context.Context, sol *solver.Solution, sum func(string) string) (res *Result, err error) {
	start := time.Now()
	defer func() {
		var nodes, reused int
		if res != nil {
			nodes, reused = len(res.Nodes), len(res.Reused)
		}
		observability.Concretize().OnMaterialize(ctx, nodes, reused, time.Since(start), err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sol == nil || len(sol.Roots) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "nothing to materialize")
	}
	c := sol.Clone()

	h := newHasher(sum)
	for _, n := range c.Nodes {
		if _, err := h.hash(n); err != nil {
			return nil, err
		}
	}

	res = &Result{
		Nodes:   make(map[string]*spec.Spec, len(c.Nodes)),
		Reused:  make(map[string]bool),
		Cost:    c.Cost,
		Optimal: c.Optimal,
	}
	canon := make(map[*spec.Spec]*spec.Spec, len(c.Nodes))
	for _, n := range c.Nodes {
		hash := h.hashes[n]
		if c.Reused[n] && n.Hash != "" && n.Hash != hash {
			return nil, errors.New(errors.ErrCodeInternal,
				"reused %s was installed as /%s but hashes to /%s", n.NodeString(), n.Hash, hash)
		}
		if prev, ok := res.Nodes[hash]; ok {
			if h.canonical[prev] != h.canonical[n] {
				return nil, &HashCollisionError{Hash: hash, First: prev.NodeString(), Second: n.NodeString()}
			}
			canon[n] = prev
			continue
		}
		canon[n] = n
		res.Nodes[hash] = n
		if c.Reused[n] {
			res.Reused[hash] = true
		}
	}

	for _, n := range c.Nodes {
		n.Hash = h.hashes[n]
		n.Concrete = true
		n.Freeze()
	}
	for _, r := range c.Roots {
		r = canon[r]
		if !slices.Contains(res.Roots, r) {
			res.Roots = append(res.Roots, r)
		}
	}

	if res.Graph, err = graphOf(res, canon); err != nil {
		return nil, err
	}
	if res.Order, err = res.Graph.TopoSort(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "materialized graph")
	}
	return res, nil
}

func graphOf(res *Result, canon map[*spec.Spec]*spec.Spec) (*dag.DAG, error) {
	roots := make([]string, len(res.Roots))
	for i, r := range res.Roots {
		roots[i] = r.Hash
	}
	g := dag.New(dag.Metadata{"roots": roots})

	var nodes []*spec.Spec
	seen := make(map[*spec.Spec]bool)
	for _, r := range res.Roots {
		r.Traverse(func(n *spec.Spec) bool {
			n = canon[n]
			if seen[n] {
				return false
			}
			seen[n] = true
			nodes = append(nodes, n)
			return true
		})
	}
	for _, n := range nodes {
		v, _ := n.Version()
		meta := dag.Metadata{
			"package": n.Name,
			"version": v.String(),
			"reused":  res.Reused[n.Hash],
		}
		if n.Compiler != nil {
			meta["compiler"] = n.Compiler.String()
		}
		if n.Arch != "" {
			meta["arch"] = n.Arch
		}
		if err := g.AddNode(dag.Node{ID: n.Hash, Label: n.NodeString(), Meta: meta}); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "node %s", n.NodeString())
		}
	}
	for _, n := range nodes {
		for _, e := range n.Dependencies() {
			meta := dag.Metadata{"types": e.Types.String()}
			if e.Virtual != "" {
				meta["virtual"] = e.Virtual
			}
			if err := g.AddEdge(dag.Edge{From: n.Hash, To: canon[e.Spec].Hash, Meta: meta}); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInternal, err, "edge %s -> %s", n.Name, e.Spec.Name)
			}
		}
	}
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "materialized graph")
	}
	g.AssignRows()
	return g, nil
}
