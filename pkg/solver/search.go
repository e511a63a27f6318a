package solver

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/facts"
	"github.com/matzehuels/stacksolve/pkg/observability"
	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/version"
)

// Search is the built-in backend. It decides nodes and provider bindings
// depth-first in creation order, re-evaluates every pending guard after each
// decision, and keeps the cheapest complete solution, pruning branches whose
// cost bound cannot beat it.
type Search struct {
	// Logger receives search statistics. Nil means log.Default().
	Logger *log.Logger
}

var _ Backend = (*Search)(nil)

// Solve implements Backend.
func (b *Search) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	start := time.Now()
	hooks := observability.Concretize()
	names := make([]string, len(p.Roots))
	for i, r := range p.Roots {
		names[i] = r.Name
	}
	hooks.OnSolveStart(ctx, names)

	sol, steps, err := b.solve(ctx, p, start)
	nodes := 0
	if sol != nil {
		nodes = len(sol.Nodes)
	}
	hooks.OnSolveComplete(ctx, nodes, steps, time.Since(start), err)
	return sol, err
}

func (b *Search) solve(ctx context.Context, p *Problem, start time.Time) (*Solution, int, error) {
	if p.Facts == nil {
		return nil, 0, errors.New(errors.ErrCodeInvalidInput, "problem has no fact table")
	}
	if len(p.Roots) == 0 {
		return nil, 0, errors.New(errors.ErrCodeInvalidInput, "nothing to concretize")
	}
	policy, err := p.Policy.normalized()
	if err != nil {
		return nil, 0, err
	}
	logger := b.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &search{
		ctx:      ctx,
		table:    p.Facts,
		policy:   policy,
		reusable: indexReusable(p.Reusable),
		orders:   make(map[string][]facts.VersionFact),
	}

	st, err := s.initial(p.Roots)
	if err != nil {
		return nil, 0, err
	}
	s.explore(st)

	switch {
	case s.fatal != nil:
		return nil, s.steps, s.fatal
	case s.stopErr == context.Canceled:
		return nil, s.steps, s.stopErr
	case s.best == nil && s.stopErr != nil:
		return nil, s.steps, &ConcretizationTimeoutError{Steps: s.steps, Elapsed: time.Since(start), Cause: s.stopErr}
	case s.best == nil:
		return nil, s.steps, s.explain()
	}

	sol := s.build(s.best)
	sol.Optimal = s.stopErr == nil
	if !sol.Optimal {
		logger.Warn("search stopped early, solution may not be optimal", "steps", s.steps, "reason", s.stopErr)
	}
	logger.Debug("solved",
		"roots", len(sol.Roots),
		"nodes", len(sol.Nodes),
		"steps", s.steps,
		"cost", sol.Cost.String(),
		"duration", time.Since(start).Round(time.Millisecond))
	return sol, s.steps, nil
}

type search struct {
	ctx      context.Context
	table    *facts.Table
	policy   Policy
	reusable map[string][]*spec.Spec
	orders   map[string][]facts.VersionFact

	steps   int
	stopErr error
	fatal   error

	best *state

	failure      *conflict
	failureDepth int
}

// conflict is a dead end of the search. When origins is set the conflict is
// about the constraints on one package and can be minimized.
type conflict struct {
	pkg     string
	reason  string
	origins []origin
	reqs    []Requirement
}

func (c *conflict) Error() string { return c.pkg + ": " + c.reason }

func (c *conflict) requirements() []Requirement {
	if c.origins == nil {
		return c.reqs
	}
	out := make([]Requirement, len(c.origins))
	for i, o := range c.origins {
		out[i] = o.req
	}
	return out
}

func (s *search) halted() bool {
	if s.stopErr != nil || s.fatal != nil {
		return true
	}
	if err := s.ctx.Err(); err != nil {
		s.stopErr = err
		return true
	}
	if s.steps >= s.policy.MaxSteps {
		s.stopErr = errStepBudget
		return true
	}
	return false
}

func (s *search) record(st *state, err error) {
	c, ok := err.(*conflict)
	if !ok {
		s.fatal = err
		return
	}
	if s.failure == nil || st.depth > s.failureDepth {
		s.failure, s.failureDepth = c, st.depth
	}
}

func (s *search) accept(st *state) {
	if s.best == nil || st.cost.Compare(s.best.cost, s.policy.Criteria) < 0 {
		s.best = st
	}
}

// =============================================================================
// Initial state
// =============================================================================

func (s *search) initial(roots []*spec.Spec) (*state, error) {
	st := &state{}
	for i, r := range roots {
		r, err := s.resolveHash(r)
		if err != nil {
			return nil, err
		}
		if r.IsAnonymous() {
			return nil, errors.New(errors.ErrCodeInvalidSpec, "cannot concretize anonymous spec %q", r.String())
		}
		if err := s.known(r.Name); err != nil {
			return nil, err
		}
		for _, e := range r.Dependencies() {
			dep, err := s.resolveHash(e.Spec)
			if err != nil {
				return nil, err
			}
			if err := s.known(dep.Name); err != nil {
				return nil, err
			}
			st.below = append(st.below, below{
				root:    i,
				cons:    nodeCons(dep, dep.Name),
				types:   e.Types,
				virtual: e.Virtual,
				origin:  Requirement{Constraint: r.Name + " ^" + dep.NodeString()},
			})
		}
	}
	for i, r := range roots {
		r, _ := s.resolveHash(r)
		req := Requirement{Constraint: r.NodeString()}
		if s.table.IsVirtual(r.Name) {
			st.roots = append(st.roots, -1)
			sl := s.slotFor(st, r.Name)
			sl.rootIdx = i
			sl.reqs = append(sl.reqs, vreq{from: -1, versions: r.Versions, origin: req})
			continue
		}
		id, err := s.link(st, -1, r.Name, r, 0, "", req)
		if err != nil {
			return nil, s.unsat(err)
		}
		st.roots = append(st.roots, id)
	}
	return st, nil
}

// known checks that a requested name can take part in solving. Asking for a
// malformed package explicitly is fatal for the whole request.
func (s *search) known(name string) error {
	if mpe, ok := s.table.ExcludedError(name); ok {
		return mpe
	}
	if !s.table.Known(name) {
		return errors.New(errors.ErrCodePackageNotFound, "unknown package %q", name)
	}
	return nil
}

// resolveHash fills in the name of a spec given only as "/hash".
func (s *search) resolveHash(r *spec.Spec) (*spec.Spec, error) {
	if r.Name != "" || r.Hash == "" {
		return r, nil
	}
	var matches []*spec.Spec
	for _, cands := range s.reusable {
		for _, c := range cands {
			if strings.HasPrefix(c.Hash, r.Hash) {
				matches = append(matches, c)
			}
		}
	}
	switch len(matches) {
	case 0:
		return nil, errors.New(errors.ErrCodeNotFound, "no installed spec matches /%s", r.Hash)
	case 1:
		c := r.CloneNode()
		c.Name = matches[0].Name
		for _, e := range r.Dependencies() {
			c.AddDependency(e.Spec, e.Types).Virtual = e.Virtual
		}
		return c, nil
	}
	slices.SortFunc(matches, func(a, b *spec.Spec) int { return strings.Compare(a.Hash, b.Hash) })
	cands := make([]string, len(matches))
	for i, m := range matches {
		cands[i] = m.Name + "/" + m.Hash
	}
	return nil, &spec.AmbiguousSpecError{Input: "/" + r.Hash, Token: r.Hash, Candidates: cands}
}

// unsat turns a conflict found before the search into the request error.
func (s *search) unsat(err error) error {
	if c, ok := err.(*conflict); ok {
		s.failure = c
		return s.explain()
	}
	return err
}

func nodeCons(c *spec.Spec, name string) *spec.Spec {
	n := c.CloneNode()
	n.Name = name
	n.Concrete = false
	return n
}

// =============================================================================
// Graph construction
// =============================================================================

// link connects from to an instance of package name satisfying cons,
// creating the instance when needed. from is -1 for root requests.
func (s *search) link(st *state, from int, name string, cons *spec.Spec, types spec.DepType, virtual string, req Requirement) (int, error) {
	if mpe, ok := s.table.ExcludedError(name); ok {
		return -1, &conflict{pkg: name, reason: "package is malformed: " + mpe.Error(), reqs: []Requirement{req}}
	}
	pkg, ok := s.table.Package(name)
	if !ok {
		return -1, &conflict{pkg: name, reason: "no such package", reqs: []Requirement{req}}
	}
	o := origin{req: req, cons: nodeCons(cons, name)}

	target := -1
	for _, n := range st.instances(name) {
		if !pkg.MultiInstance || compatible(n, o.cons) {
			target = n.id
			break
		}
	}
	if target < 0 {
		n := st.addNode(name, pkg, spec.New(name))
		if !pkg.MultiInstance {
			for _, b := range st.below {
				if b.cons.Name == name {
					if err := s.constrain(n, origin{req: b.origin, cons: b.cons}); err != nil {
						return -1, err
					}
				}
			}
		}
		target = n.id
	}
	if err := s.constrain(st.nodes[target], o); err != nil {
		return -1, err
	}
	if from >= 0 {
		if err := s.connect(st, from, target, types, virtual, req); err != nil {
			return -1, err
		}
	}
	return target, nil
}

func compatible(n *node, cons *spec.Spec) bool {
	if n.decided != nil {
		return n.decided.SatisfiesNode(cons)
	}
	return n.cons.IntersectsNode(cons)
}

// constrain narrows an undecided node, or checks a decided one.
func (s *search) constrain(n *node, o origin) error {
	if n.decided != nil {
		if !n.decided.SatisfiesNode(o.cons) {
			return &conflict{
				pkg:     n.name,
				reason:  fmt.Sprintf("%s was already chosen", n.decided.NodeString()),
				origins: append(slices.Clone(n.origins), o),
			}
		}
		n.origins = append(n.origins, o)
		return nil
	}
	merged := n.cons.CloneNode()
	if err := merged.ConstrainNode(o.cons); err != nil {
		reason := strings.TrimPrefix(errors.UserMessage(err), n.name+": ")
		return &conflict{pkg: n.name, reason: reason, origins: append(slices.Clone(n.origins), o)}
	}
	n.cons = merged
	n.origins = append(n.origins, o)
	return nil
}

func (s *search) connect(st *state, from, to int, types spec.DepType, virtual string, req Requirement) error {
	if from == to || st.reaches(to, from) {
		return &conflict{
			pkg:    st.nodes[to].name,
			reason: fmt.Sprintf("dependency cycle between %s and %s", st.nodes[from].name, st.nodes[to].name),
			reqs:   []Requirement{req},
		}
	}
	if i := st.edgeIndex(from, to); i >= 0 {
		e := st.edges[i]
		e.types |= types
		if e.virtual == "" {
			e.virtual = virtual
		}
		st.edges[i] = e
		return nil
	}
	st.edges = append(st.edges, edge{from: from, to: to, types: types, virtual: virtual, origin: req})
	return nil
}

func (s *search) slotFor(st *state, virtual string) *slot {
	if sl := st.slot(virtual); sl != nil {
		return sl
	}
	sl := &slot{seq: st.nextSeq(), virtual: virtual, provider: -1, rootIdx: -1}
	st.slots = append(st.slots, sl)
	return sl
}

func (s *search) requireVirtual(st *state, from int, virtual string, versions version.List, types spec.DepType, req Requirement) error {
	sl := s.slotFor(st, virtual)
	sl.reqs = append(sl.reqs, vreq{from: from, versions: versions, types: types, origin: req})
	if sl.provider < 0 {
		st.nodes[from].waiting++
		return nil
	}
	if err := s.connect(st, from, sl.provider, types, virtual, req); err != nil {
		return err
	}
	return s.checkSlot(st, sl)
}

// bind makes pid the provider of sl and wires every waiting requirer to it.
func (s *search) bind(st *state, sl *slot, pid, rank int) error {
	sl.provider = pid
	if sl.rootIdx >= 0 {
		st.roots[sl.rootIdx] = pid
	}
	st.cost.Providers += rank
	for _, r := range sl.reqs {
		if r.from < 0 {
			continue
		}
		st.nodes[r.from].waiting--
		if err := s.connect(st, r.from, pid, r.types, sl.virtual, r.origin); err != nil {
			return err
		}
	}
	return s.checkSlot(st, sl)
}

// checkSlot verifies a decided provider against every request on its
// virtual.
func (s *search) checkSlot(st *state, sl *slot) error {
	if sl.provider < 0 {
		return nil
	}
	p := st.nodes[sl.provider]
	if p.decided == nil {
		return nil
	}
	var reqs []Requirement
	for _, r := range sl.reqs {
		reqs = append(reqs, r.origin)
	}
	provided, ok := s.table.ProvidedVersions(p.decided, sl.virtual)
	if !ok {
		return &conflict{
			pkg:    sl.virtual,
			reason: fmt.Sprintf("%s does not provide %s", p.decided.NodeString(), sl.virtual),
			reqs:   reqs,
		}
	}
	check := func(vs version.List, req Requirement) error {
		if vs.IsAny() || provided.IsAny() || provided.Intersects(vs) {
			return nil
		}
		return &conflict{
			pkg:    sl.virtual,
			reason: fmt.Sprintf("%s provides only %s@%s", p.decided.NodeString(), sl.virtual, provided),
			reqs:   []Requirement{req},
		}
	}
	for _, r := range sl.reqs {
		if err := check(r.versions, r.origin); err != nil {
			return err
		}
	}
	for _, b := range st.below {
		if b.cons.Name == sl.virtual {
			if err := check(b.cons.Versions, b.origin); err != nil {
				return err
			}
		}
	}
	return nil
}

// =============================================================================
// Search loop
// =============================================================================

func (s *search) explore(st *state) {
	if s.halted() {
		return
	}
	s.steps++
	if err := s.propagate(st); err != nil {
		s.record(st, err)
		return
	}
	if s.best != nil && s.lowerBound(st).Compare(s.best.cost, s.policy.Criteria) >= 0 {
		return
	}

	n, sl := st.next()
	switch {
	case n != nil:
		opts, err := s.options(st, n)
		if err != nil {
			s.record(st, err)
			return
		}
		for _, cfg := range opts {
			next := st.clone()
			if err := s.decide(next, next.nodes[n.id], cfg); err != nil {
				s.record(next, err)
				continue
			}
			s.explore(next)
			if s.halted() {
				return
			}
		}
	case sl != nil:
		providers, err := s.providers(st, sl)
		if err != nil {
			s.record(st, err)
			return
		}
		for _, p := range providers {
			next := st.clone()
			nsl := next.slot(sl.virtual)
			pid, err := s.link(next, -1, p.name, spec.New(p.name), 0, "", s.providerRequirement(next, nsl))
			if err == nil {
				err = s.bind(next, nsl, pid, p.rank)
			}
			if err != nil {
				s.record(next, err)
				continue
			}
			next.depth++
			s.explore(next)
			if s.halted() {
				return
			}
		}
	default:
		fired, err := s.close(st)
		if err != nil {
			s.record(st, err)
			return
		}
		if fired {
			s.explore(st)
			return
		}
		if err := s.finish(st); err != nil {
			s.record(st, err)
			return
		}
		s.accept(st)
	}
}

// lowerBound is the cost of st plus what its open nodes must add at least.
func (s *search) lowerBound(st *state) Cost {
	c := st.cost
	for _, n := range st.nodes {
		if n.decided != nil {
			continue
		}
		c.Packages++
	}
	for _, sl := range st.slots {
		if sl.provider >= 0 {
			continue
		}
		existing := false
		for _, p := range s.table.Providers(sl.virtual) {
			if len(st.instances(p)) > 0 {
				existing = true
				break
			}
		}
		if !existing {
			c.Packages++
		}
	}
	return c
}

func (s *search) mayReuse(n *node) bool {
	if !s.policy.Reuse && n.cons.Hash == "" {
		return false
	}
	for _, r := range s.reusable[n.name] {
		if r.SatisfiesNode(n.cons) {
			return true
		}
	}
	return false
}

// propagate fires every pending guard that holds, drops those that can no
// longer hold and checks conflicts and provider bindings, until nothing
// changes.
func (s *search) propagate(st *state) error {
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(st.nodes); i++ {
			n := st.nodes[i]
			if n.decided == nil || n.reused {
				continue
			}
			sub := subject{st: st, table: s.table, id: n.id}
			var keep []int
			for _, di := range n.pending {
				switch n.pkg.Dependencies[di].When.Eval(sub) {
				case facts.True:
					ok, err := s.fire(st, n, di)
					if err != nil {
						return err
					}
					if ok {
						n.fired = append(n.fired, di)
					}
					changed = true
				case facts.Unknown:
					keep = append(keep, di)
				}
			}
			n.pending = keep
			if err := s.checkConflicts(st, n, false); err != nil {
				return err
			}
		}
		for _, sl := range st.slots {
			if err := s.checkSlot(st, sl); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *search) checkConflicts(st *state, n *node, closed bool) error {
	sub := subject{st: st, table: s.table, id: n.id, closed: closed}
	var keep []int
	for _, ci := range n.conflicts {
		cf := n.pkg.Conflicts[ci]
		a := cf.Spec.Eval(sub)
		if a == facts.False {
			continue
		}
		b := cf.When.Eval(sub)
		switch {
		case b == facts.False:
		case a == facts.True && b == facts.True:
			return &conflict{pkg: n.name, reason: cf.Msg, origins: slices.Clone(n.origins)}
		default:
			keep = append(keep, ci)
		}
	}
	n.conflicts = keep
	return nil
}

// effectiveTypes drops the test type unless tests are wanted for n.
func (s *search) effectiveTypes(st *state, n *node, d facts.DependencyFact) spec.DepType {
	types := d.Types
	if types.Has(spec.DepTest) && !(s.policy.Tests && st.isRoot(n.id)) {
		types &^= spec.DepTest
	}
	return types
}

// fire adds the dependency declared by n's di-th fact. It reports false when
// the dependency is test-only and tests are not wanted.
func (s *search) fire(st *state, n *node, di int) (bool, error) {
	d := n.pkg.Dependencies[di]
	types := s.effectiveTypes(st, n, d)
	if types == 0 {
		return false, nil
	}
	req := Requirement{Requirer: n.name, Constraint: d.Source}
	if !d.When.IsAlways() {
		req.When = d.When.String()
	}
	if s.table.IsVirtual(d.Name()) {
		return true, s.requireVirtual(st, n.id, d.Name(), d.Spec.Versions, types, req)
	}
	_, err := s.link(st, n.id, d.Name(), d.Spec, types, "", req)
	return true, err
}

// close handles a state with nothing left to decide: guards still pending
// are evaluated against the finished graph. It reports whether any fired.
func (s *search) close(st *state) (bool, error) {
	fired := false
	for i := 0; i < len(st.nodes); i++ {
		n := st.nodes[i]
		if n.reused {
			continue
		}
		sub := subject{st: st, table: s.table, id: n.id, closed: true}
		var keep []int
		for _, di := range n.pending {
			if n.pkg.Dependencies[di].When.Eval(sub) != facts.True {
				keep = append(keep, di)
				continue
			}
			ok, err := s.fire(st, n, di)
			if err != nil {
				return false, err
			}
			if ok {
				n.fired = append(n.fired, di)
			}
			fired = true
		}
		n.pending = keep
	}
	if fired {
		return true, nil
	}
	for _, n := range st.nodes {
		n.pending = nil
		if err := s.checkConflicts(st, n, true); err != nil {
			return false, err
		}
		n.conflicts = nil
	}
	return false, nil
}

// finish checks the root "^dep" constraints and re-evaluates every guard
// against the final graph.
func (s *search) finish(st *state) error {
	for _, b := range st.below {
		if err := s.checkBelow(st, b); err != nil {
			return err
		}
	}
	for _, n := range st.nodes {
		if n.reused {
			continue
		}
		sub := subject{st: st, table: s.table, id: n.id, closed: true}
		for di, d := range n.pkg.Dependencies {
			holds := d.When.Eval(sub) == facts.True && s.effectiveTypes(st, n, d) != 0
			if holds != slices.Contains(n.fired, di) {
				return errors.New(errors.ErrCodeInternal,
					"guard %q of %s on %s evaluated inconsistently", d.When.String(), d.Source, n.decided.NodeString())
			}
		}
	}
	return nil
}

func (s *search) checkBelow(st *state, b below) error {
	rid := st.roots[b.root]
	root := st.nodes[rid]
	target := -1
	seen := map[int]bool{rid: true}
	queue := []int{rid}
	for len(queue) > 0 && target < 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range st.edges {
			if e.from != id || seen[e.to] {
				continue
			}
			seen[e.to] = true
			if st.nodes[e.to].name == b.cons.Name || e.virtual == b.cons.Name {
				target = e.to
				break
			}
			queue = append(queue, e.to)
		}
	}
	fail := func(reason string) error {
		return &conflict{pkg: b.cons.Name, reason: reason, reqs: []Requirement{b.origin}}
	}
	if target < 0 {
		return fail(fmt.Sprintf("%s does not depend on %s", root.decided.NodeString(), b.cons.Name))
	}
	t := st.nodes[target]
	if !s.table.IsVirtual(b.cons.Name) && !t.decided.SatisfiesNode(b.cons) {
		return fail(fmt.Sprintf("%s does not satisfy %s", t.decided.NodeString(), b.cons.NodeString()))
	}
	if b.types != 0 {
		i := st.edgeIndex(rid, target)
		if i < 0 || !st.edges[i].types.Has(b.types) {
			return fail(fmt.Sprintf("%s is not a direct %s dependency of %s", t.name, b.types, root.name))
		}
	}
	if b.virtual != "" {
		if sl := st.slot(b.virtual); sl == nil || sl.provider != target {
			return fail(fmt.Sprintf("%s is not the %s provider", t.name, b.virtual))
		}
	}
	return nil
}

// =============================================================================
// Choices
// =============================================================================

// config is one way to decide a node.
type config struct {
	node   *spec.Spec
	reused *spec.Spec
	cost   Cost
}

func (s *search) options(st *state, n *node) ([]config, error) {
	var out []config
	if s.policy.Reuse || n.cons.Hash != "" {
		for _, r := range s.reusable[n.name] {
			if r.SatisfiesNode(n.cons) {
				c := r.CloneNode()
				c.Concrete = false
				out = append(out, config{node: c, reused: r, cost: Cost{Packages: 1}})
			}
		}
	}
	if n.cons.Hash != "" {
		if len(out) == 0 {
			return nil, &conflict{pkg: n.name, reason: "no installed spec matches /" + n.cons.Hash, origins: slices.Clone(n.origins)}
		}
		return out, nil
	}
	built, reason := s.configs(n.pkg, n.cons)
	if !s.mayReuse(n) {
		// Nothing installed matches, so building is not a missed reuse.
		for i := range built {
			built[i].cost.Builds = 0
		}
	}
	out = append(out, built...)
	if len(out) == 0 {
		return nil, &conflict{pkg: n.name, reason: reason, origins: slices.Clone(n.origins)}
	}
	return out, nil
}

// decide fixes n to cfg.
func (s *search) decide(st *state, n *node, cfg config) error {
	n.decided = cfg.node
	st.depth++
	st.cost = st.cost.add(cfg.cost)
	if cfg.reused == nil {
		n.pending = make([]int, len(n.pkg.Dependencies))
		for i := range n.pending {
			n.pending[i] = i
		}
		n.conflicts = make([]int, len(n.pkg.Conflicts))
		for i := range n.conflicts {
			n.conflicts[i] = i
		}
		return nil
	}

	n.reused = true
	for _, e := range cfg.reused.Dependencies() {
		dep := e.Spec
		pin := spec.New(dep.Name)
		pin.Hash = dep.Hash
		req := Requirement{Requirer: n.name, Constraint: dep.Name + "/" + shortHash(dep.Hash)}
		id, err := s.link(st, n.id, dep.Name, pin, e.Types, e.Virtual, req)
		if err != nil {
			return err
		}
		if e.Virtual == "" {
			continue
		}
		sl := s.slotFor(st, e.Virtual)
		switch {
		case sl.provider < 0:
			if err := s.bind(st, sl, id, 0); err != nil {
				return err
			}
		case sl.provider != id:
			return &conflict{
				pkg:    e.Virtual,
				reason: fmt.Sprintf("installed %s was built against a different %s provider", n.name, e.Virtual),
				reqs:   []Requirement{req},
			}
		}
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}

type providerChoice struct {
	name string
	rank int
}

// providerRequirement is the origin recorded on a provider bound to sl.
func (s *search) providerRequirement(st *state, sl *slot) Requirement {
	req := Requirement{Constraint: sl.virtual}
	for _, r := range sl.reqs {
		if r.from >= 0 {
			req.Requirer = st.nodes[r.from].name
			break
		}
	}
	return req
}

func (s *search) providers(st *state, sl *slot) ([]providerChoice, error) {
	var reqs []Requirement
	for _, r := range sl.reqs {
		reqs = append(reqs, r.origin)
	}
	available := s.table.Providers(sl.virtual)
	var ordered []string
	for _, p := range s.policy.Providers[sl.virtual] {
		if slices.Contains(available, p) && !slices.Contains(ordered, p) {
			ordered = append(ordered, p)
		}
	}
	for _, p := range available {
		if !slices.Contains(ordered, p) {
			ordered = append(ordered, p)
		}
	}

	// An explicit ^[virtuals=V] binding leaves one candidate.
	for _, b := range st.below {
		if b.virtual == sl.virtual {
			if !slices.Contains(ordered, b.cons.Name) {
				return nil, &conflict{
					pkg:    sl.virtual,
					reason: fmt.Sprintf("%s does not provide %s", b.cons.Name, sl.virtual),
					reqs:   []Requirement{b.origin},
				}
			}
			return []providerChoice{{name: b.cons.Name, rank: slices.Index(ordered, b.cons.Name)}}, nil
		}
	}
	if len(ordered) == 0 {
		return nil, &conflict{pkg: sl.virtual, reason: "no package provides " + sl.virtual, reqs: reqs}
	}

	out := make([]providerChoice, len(ordered))
	for i, p := range ordered {
		out[i] = providerChoice{name: p, rank: i}
	}
	// Try providers the request names, or that are already in the graph,
	// first.
	named := func(p string) bool {
		for _, b := range st.below {
			if b.cons.Name == p {
				return true
			}
		}
		return len(st.instances(p)) > 0
	}
	slices.SortStableFunc(out, func(a, b providerChoice) int {
		na, nb := named(a.name), named(b.name)
		switch {
		case na && !nb:
			return -1
		case nb && !na:
			return 1
		}
		return 0
	})
	return out, nil
}

// =============================================================================
// Result
// =============================================================================

func (s *search) build(st *state) *Solution {
	specs := make([]*spec.Spec, len(st.nodes))
	sol := &Solution{
		Providers: make(map[string]*spec.Spec),
		Reused:    make(map[*spec.Spec]bool),
		Cost:      st.cost,
		Steps:     s.steps,
	}
	for i, n := range st.nodes {
		specs[i] = n.decided.CloneNode()
		if n.reused {
			sol.Reused[specs[i]] = true
		}
	}
	sol.Nodes = specs
	for _, e := range st.edges {
		de := specs[e.from].AddDependency(specs[e.to], e.types)
		if e.virtual != "" {
			de.Virtual = e.virtual
		}
		sol.Edges = append(sol.Edges, Edge{
			Parent:  specs[e.from],
			Child:   specs[e.to],
			Types:   e.types,
			Virtual: e.virtual,
			Origin:  e.origin,
		})
	}
	for _, sl := range st.slots {
		sol.Providers[sl.virtual] = specs[sl.provider]
	}
	for _, id := range st.roots {
		if r := specs[id]; !slices.Contains(sol.Roots, r) {
			sol.Roots = append(sol.Roots, r)
		}
	}
	return sol
}

func indexReusable(roots []*spec.Spec) map[string][]*spec.Spec {
	out := make(map[string][]*spec.Spec)
	seen := make(map[string]bool)
	for _, r := range roots {
		r.Traverse(func(n *spec.Spec) bool {
			if n.Hash == "" || seen[n.Hash] {
				return true
			}
			seen[n.Hash] = true
			out[n.Name] = append(out[n.Name], n)
			return true
		})
	}
	for _, cands := range out {
		slices.SortStableFunc(cands, func(a, b *spec.Spec) int {
			va, _ := a.Version()
			vb, _ := b.Version()
			if c := vb.Compare(va); c != 0 {
				return c
			}
			return strings.Compare(a.Hash, b.Hash)
		})
	}
	return out
}
