package solver

import (
	"slices"

	"github.com/matzehuels/stacksolve/pkg/facts"
	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/version"
)

// origin is a constraint applied to a node and the requirement behind it.
type origin struct {
	req  Requirement
	cons *spec.Spec
}

// node is one package instance in a partial solution. Until decided, cons
// accumulates the constraints every requirer placed on it.
type node struct {
	id      int
	seq     int
	name    string
	pkg     *facts.PackageFacts
	cons    *spec.Spec
	origins []origin

	// Set once decided.
	decided *spec.Spec
	reused  bool

	// Dependency and conflict facts whose guards are still Unknown.
	pending   []int
	conflicts []int
	// Dependency facts whose guards held.
	fired []int
	// Virtual requirements waiting for a provider binding.
	waiting int
}

func (n *node) clone() *node {
	c := *n
	c.origins = slices.Clone(n.origins)
	c.pending = slices.Clone(n.pending)
	c.conflicts = slices.Clone(n.conflicts)
	c.fired = slices.Clone(n.fired)
	return &c
}

type edge struct {
	from, to int
	types    spec.DepType
	virtual  string
	origin   Requirement
}

// vreq is a requirement on a virtual.
type vreq struct {
	from     int // requiring node, or -1 for a root request
	versions version.List
	types    spec.DepType
	origin   Requirement
}

// slot binds a virtual to its single provider.
type slot struct {
	seq      int
	virtual  string
	provider int // -1 while unbound
	rootIdx  int // root position when the request itself names the virtual, else -1
	reqs     []vreq
}

func (s *slot) clone() *slot {
	c := *s
	c.reqs = slices.Clone(s.reqs)
	return &c
}

// below is a "^dep" constraint from a root: some node below the root must
// match it.
type below struct {
	root    int // root position
	cons    *spec.Spec
	types   spec.DepType
	virtual string
	origin  Requirement
}

type state struct {
	nodes []*node
	edges []edge
	slots []*slot
	roots []int // node id per root position, -1 while a virtual root is unbound
	below []below
	cost  Cost
	depth int
	seq   int
}

func (st *state) clone() *state {
	c := &state{
		nodes: make([]*node, len(st.nodes)),
		edges: slices.Clone(st.edges),
		slots: make([]*slot, len(st.slots)),
		roots: slices.Clone(st.roots),
		below: st.below,
		cost:  st.cost,
		depth: st.depth,
		seq:   st.seq,
	}
	for i, n := range st.nodes {
		c.nodes[i] = n.clone()
	}
	for i, s := range st.slots {
		c.slots[i] = s.clone()
	}
	return c
}

func (st *state) nextSeq() int {
	st.seq++
	return st.seq
}

func (st *state) addNode(name string, pkg *facts.PackageFacts, cons *spec.Spec) *node {
	n := &node{id: len(st.nodes), seq: st.nextSeq(), name: name, pkg: pkg, cons: cons}
	st.nodes = append(st.nodes, n)
	return n
}

func (st *state) instances(name string) []*node {
	var out []*node
	for _, n := range st.nodes {
		if n.name == name {
			out = append(out, n)
		}
	}
	return out
}

func (st *state) slot(virtual string) *slot {
	for _, s := range st.slots {
		if s.virtual == virtual {
			return s
		}
	}
	return nil
}

func (st *state) isRoot(id int) bool { return slices.Contains(st.roots, id) }

// edgeIndex returns the edge from → to, if any.
func (st *state) edgeIndex(from, to int) int {
	for i, e := range st.edges {
		if e.from == from && e.to == to {
			return i
		}
	}
	return -1
}

func (st *state) children(id int) []int {
	var out []int
	for _, e := range st.edges {
		if e.from == id {
			out = append(out, e.to)
		}
	}
	return out
}

// reaches reports whether to is reachable from from.
func (st *state) reaches(from, to int) bool {
	seen := map[int]bool{from: true}
	queue := []int{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == to {
			return true
		}
		for _, c := range st.children(id) {
			if !seen[c] {
				seen[c] = true
				queue = append(queue, c)
			}
		}
	}
	return false
}

// next returns the undecided node or unbound slot created first.
func (st *state) next() (*node, *slot) {
	var bestNode *node
	var bestSlot *slot
	best := -1
	for _, n := range st.nodes {
		if n.decided == nil && (best < 0 || n.seq < best) {
			bestNode, best = n, n.seq
		}
	}
	for _, s := range st.slots {
		if s.provider < 0 && (best < 0 || s.seq < best) {
			bestNode, bestSlot, best = nil, s, s.seq
		}
	}
	return bestNode, bestSlot
}

// =============================================================================
// Guard subjects
// =============================================================================

// subject evaluates guards against a partial solution. Node attributes are
// decided; the subgraph below may still grow unless closed is set.
type subject struct {
	st     *state
	table  *facts.Table
	id     int
	closed bool
}

func (s subject) Node() *spec.Spec { return s.st.nodes[s.id].decided }

func (s subject) open(n *node) bool {
	return n.decided == nil || n.waiting > 0 || (!s.closed && len(n.pending) > 0)
}

func (s subject) Reaches(name string) (facts.Subject, facts.Truth) {
	open := s.open(s.st.nodes[s.id])
	seen := map[int]bool{s.id: true}
	queue := []int{s.id}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range s.st.edges {
			if e.from != id || seen[e.to] {
				continue
			}
			seen[e.to] = true
			c := s.st.nodes[e.to]
			sub := subject{st: s.st, table: s.table, id: e.to, closed: s.closed}
			if c.name == name || e.virtual == name {
				if c.decided == nil {
					return sub, facts.Unknown
				}
				return sub, facts.True
			}
			if c.decided != nil && s.table.ProvidesVirtual(c.decided, name) {
				return sub, facts.True
			}
			if s.open(c) {
				open = true
			}
			queue = append(queue, e.to)
		}
	}
	if open {
		return nil, facts.Unknown
	}
	return nil, facts.False
}

// nodeOnly evaluates the node-level part of a guard; dependency tests are
// Unknown.
type nodeOnly struct{ n *spec.Spec }

func (s nodeOnly) Node() *spec.Spec                           { return s.n }
func (s nodeOnly) Reaches(string) (facts.Subject, facts.Truth) { return nil, facts.Unknown }
