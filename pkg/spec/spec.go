package spec

import (
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/version"
)

// CompilerSpec names a compiler and the versions acceptable for it.
type CompilerSpec struct {
	Name     string
	Versions version.List
}

// Satisfies reports whether c meets the constraint o.
func (c *CompilerSpec) Satisfies(o *CompilerSpec) bool {
	if o == nil {
		return true
	}
	return c != nil && c.Name == o.Name && c.Versions.Subset(o.Versions)
}

// Intersects reports whether some compiler could meet both c and o.
func (c *CompilerSpec) Intersects(o *CompilerSpec) bool {
	if c == nil || o == nil {
		return true
	}
	return c.Name == o.Name && c.Versions.Intersects(o.Versions)
}

func (c *CompilerSpec) String() string {
	if c.Versions.IsAny() {
		return c.Name
	}
	return c.Name + "@" + c.Versions.String()
}

// ParseCompiler parses "name" or "name@versions", as written after % in a
// spec.
func ParseCompiler(s string) (*CompilerSpec, error) {
	name, vers, hasVers := strings.Cut(strings.TrimSpace(strings.TrimPrefix(s, "%")), "@")
	if err := errors.ValidatePackageName(name); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSpec, err, "compiler %q", s)
	}
	c := &CompilerSpec{Name: name}
	if hasVers {
		v, err := version.ParseList(vers)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidSpec, err, "compiler %q", s)
		}
		c.Versions = v
	}
	return c, nil
}

// Edge is a typed dependency edge. Virtual names the virtual package the
// edge was requested through, if any.
type Edge struct {
	Spec    *Spec
	Types   DepType
	Virtual string
}

// Spec describes one package instance. An abstract spec constrains some of
// its attributes; a concrete spec fixes all of them.
//
// Dependencies written with "^" in spec syntax are constraints on a node of
// that name anywhere below the spec, not necessarily a direct edge.
type Spec struct {
	Name     string
	Versions version.List
	Compiler *CompilerSpec
	Variants map[string]Variant
	Arch     string
	Hash     string

	// Concrete is set once every attribute holds a single value.
	Concrete bool

	deps   []*Edge
	frozen bool
}

// New returns an abstract spec for the named package.
func New(name string) *Spec {
	return &Spec{Name: name}
}

// IsAnonymous reports whether the spec constrains an unnamed node, as guard
// conditions such as "+mpi" do.
func (s *Spec) IsAnonymous() bool { return s.Name == "" }

// Frozen reports whether the spec has been hashed and may no longer change.
func (s *Spec) Frozen() bool { return s.frozen }

// Freeze marks the spec immutable. Later calls to mutating methods fail.
func (s *Spec) Freeze() { s.frozen = true }

// Version returns the concrete version, if the spec pins one.
func (s *Spec) Version() (version.Version, bool) { return s.Versions.Concrete() }

// Variant returns the named variant.
func (s *Spec) Variant(name string) (Variant, bool) {
	v, ok := s.Variants[name]
	return v, ok
}

// SetVariant sets or replaces a variant.
func (s *Spec) SetVariant(v Variant) {
	if s.Variants == nil {
		s.Variants = make(map[string]Variant)
	}
	s.Variants[v.Name] = v
}

// VariantNames returns the variant names in sorted order.
func (s *Spec) VariantNames() []string {
	return slices.Sorted(maps.Keys(s.Variants))
}

// Dependencies returns the direct dependency edges ordered by dependency name.
func (s *Spec) Dependencies() []*Edge {
	out := slices.Clone(s.deps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Spec.Name < out[j].Spec.Name })
	return out
}

// Dependency returns the direct edge to the named package.
func (s *Spec) Dependency(name string) *Edge {
	for _, e := range s.deps {
		if e.Spec.Name == name {
			return e
		}
	}
	return nil
}

// AddDependency appends a dependency edge. Adding an edge to a dependency
// that is already present merges the edge types.
func (s *Spec) AddDependency(dep *Spec, types DepType) *Edge {
	for _, e := range s.deps {
		if e.Spec == dep {
			e.Types |= types
			return e
		}
	}
	e := &Edge{Spec: dep, Types: types}
	s.deps = append(s.deps, e)
	return e
}

// ReplaceDependency swaps the target of the edge pointing at old.
func (s *Spec) ReplaceDependency(old, repl *Spec) bool {
	for _, e := range s.deps {
		if e.Spec == old {
			e.Spec = repl
			return true
		}
	}
	return false
}

// ClearDependencies drops every direct dependency edge.
func (s *Spec) ClearDependencies() { s.deps = nil }

// Traverse visits s and every node below it once, in deterministic pre-order
// (dependencies by name). Returning false from fn stops descent below that
// node.
func (s *Spec) Traverse(fn func(*Spec) bool) {
	seen := make(map[*Spec]bool)
	var walk func(*Spec)
	walk = func(n *Spec) {
		if seen[n] {
			return
		}
		seen[n] = true
		if !fn(n) {
			return
		}
		for _, e := range n.Dependencies() {
			walk(e.Spec)
		}
	}
	walk(s)
}

// Nodes returns every node reachable from s, in Traverse order.
func (s *Spec) Nodes() []*Spec {
	var out []*Spec
	s.Traverse(func(n *Spec) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Find returns the first node named name at or below s.
func (s *Spec) Find(name string) *Spec {
	var found *Spec
	s.Traverse(func(n *Spec) bool {
		if found == nil && n.Name == name {
			found = n
		}
		return found == nil
	})
	return found
}

// Clone returns a deep copy of the DAG rooted at s. Shared nodes stay shared
// in the copy. The copy is not frozen.
func (s *Spec) Clone() *Spec {
	return cloneWith(s, make(map[*Spec]*Spec))
}

// CloneGraph deep-copies the DAGs rooted at roots in one pass, so nodes shared
// between roots stay shared. The map takes each original node to its copy.
func CloneGraph(roots []*Spec) ([]*Spec, map[*Spec]*Spec) {
	memo := make(map[*Spec]*Spec)
	out := make([]*Spec, len(roots))
	for i, r := range roots {
		out[i] = cloneWith(r, memo)
	}
	return out, memo
}

// CloneNode copies s without its dependencies.
func (s *Spec) CloneNode() *Spec {
	c := *s
	c.deps = nil
	c.frozen = false
	c.Versions = slices.Clone(s.Versions)
	if s.Compiler != nil {
		cc := *s.Compiler
		cc.Versions = slices.Clone(s.Compiler.Versions)
		c.Compiler = &cc
	}
	if s.Variants != nil {
		c.Variants = make(map[string]Variant, len(s.Variants))
		for k, v := range s.Variants {
			c.Variants[k] = Variant{Name: v.Name, Values: slices.Clone(v.Values)}
		}
	}
	return &c
}

func cloneWith(s *Spec, memo map[*Spec]*Spec) *Spec {
	if c, ok := memo[s]; ok {
		return c
	}
	c := s.CloneNode()
	memo[s] = c
	for _, e := range s.deps {
		c.deps = append(c.deps, &Edge{Spec: cloneWith(e.Spec, memo), Types: e.Types, Virtual: e.Virtual})
	}
	return c
}

// SatisfiesNode reports whether the node attributes of s meet c, ignoring
// dependencies. An anonymous constraint matches any name.
func (s *Spec) SatisfiesNode(c *Spec) bool {
	if c.Name != "" && s.Name != c.Name {
		return false
	}
	if !s.Versions.Subset(c.Versions) {
		return false
	}
	if !s.Compiler.Satisfies(c.Compiler) {
		return false
	}
	for name, want := range c.Variants {
		have, ok := s.Variants[name]
		if !ok || !have.Satisfies(want) {
			return false
		}
	}
	if c.Arch != "" && s.Arch != c.Arch {
		return false
	}
	if c.Hash != "" && !strings.HasPrefix(s.Hash, c.Hash) {
		return false
	}
	return true
}

// Satisfies reports whether s meets every constraint in c, including c's
// dependency constraints, each of which must be met by some node below s.
func (s *Spec) Satisfies(c *Spec) bool {
	if !s.SatisfiesNode(c) {
		return false
	}
	for _, e := range c.deps {
		matched := false
		s.Traverse(func(n *Spec) bool {
			if !matched && n != s && n.Satisfies(e.Spec) {
				matched = true
			}
			return !matched
		})
		if !matched {
			return false
		}
	}
	return true
}

// IntersectsNode reports whether some node could meet the node constraints of
// both s and o.
func (s *Spec) IntersectsNode(o *Spec) bool {
	if s.Name != "" && o.Name != "" && s.Name != o.Name {
		return false
	}
	if !s.Versions.Intersects(o.Versions) || !s.Compiler.Intersects(o.Compiler) {
		return false
	}
	for name, v := range o.Variants {
		if have, ok := s.Variants[name]; ok && !have.Compatible(v) {
			return false
		}
	}
	if s.Arch != "" && o.Arch != "" && s.Arch != o.Arch {
		return false
	}
	if s.Hash != "" && o.Hash != "" && !strings.HasPrefix(s.Hash, o.Hash) && !strings.HasPrefix(o.Hash, s.Hash) {
		return false
	}
	return true
}

// Intersects reports whether s and o could describe the same node, including
// their same-named dependency constraints.
func (s *Spec) Intersects(o *Spec) bool {
	if !s.IntersectsNode(o) {
		return false
	}
	for _, e := range o.deps {
		if mine := s.Find(e.Spec.Name); mine != nil && mine != s && !mine.Intersects(e.Spec) {
			return false
		}
	}
	return true
}

// ConstrainNode narrows the node attributes of s by c.
func (s *Spec) ConstrainNode(c *Spec) error {
	if s.frozen {
		return errors.New(errors.ErrCodeInternal, "cannot constrain frozen spec %s", s.Name)
	}
	if c.Name != "" {
		if s.Name != "" && s.Name != c.Name {
			return errors.New(errors.ErrCodeInvalidSpec, "cannot constrain %s with %s", s.Name, c.Name)
		}
		s.Name = c.Name
	}
	vs, ok := s.Versions.Intersect(c.Versions)
	if !ok {
		return errors.New(errors.ErrCodeInvalidSpec, "%s: versions @%s and @%s do not overlap", s.label(), s.Versions, c.Versions)
	}
	s.Versions = vs
	if c.Compiler != nil {
		if s.Compiler == nil {
			cc := *c.Compiler
			s.Compiler = &cc
		} else {
			if !s.Compiler.Intersects(c.Compiler) {
				return errors.New(errors.ErrCodeInvalidSpec, "%s: compilers %%%s and %%%s conflict", s.label(), s.Compiler, c.Compiler)
			}
			cv, _ := s.Compiler.Versions.Intersect(c.Compiler.Versions)
			s.Compiler = &CompilerSpec{Name: s.Compiler.Name, Versions: cv}
		}
	}
	for _, name := range c.VariantNames() {
		v := c.Variants[name]
		have, ok := s.Variants[name]
		switch {
		case !ok:
			s.SetVariant(Variant{Name: v.Name, Values: slices.Clone(v.Values)})
		case !have.Compatible(v):
			return errors.New(errors.ErrCodeInvalidSpec, "%s: variant %s conflicts with %s", s.label(), have, v)
		default:
			s.SetVariant(have.Merge(v))
		}
	}
	if c.Arch != "" {
		if s.Arch != "" && s.Arch != c.Arch {
			return errors.New(errors.ErrCodeInvalidSpec, "%s: arch=%s conflicts with arch=%s", s.label(), s.Arch, c.Arch)
		}
		s.Arch = c.Arch
	}
	if c.Hash != "" {
		switch {
		case s.Hash == "" || strings.HasPrefix(c.Hash, s.Hash):
			s.Hash = c.Hash
		case !strings.HasPrefix(s.Hash, c.Hash):
			return errors.New(errors.ErrCodeInvalidSpec, "%s: /%s conflicts with /%s", s.label(), s.Hash, c.Hash)
		}
	}
	return nil
}

// Constrain narrows s by c, merging dependency constraints by name.
func (s *Spec) Constrain(c *Spec) error {
	if err := s.ConstrainNode(c); err != nil {
		return err
	}
	for _, e := range c.deps {
		if mine := s.Dependency(e.Spec.Name); mine != nil {
			if err := mine.Spec.Constrain(e.Spec); err != nil {
				return err
			}
			mine.Types |= e.Types
			continue
		}
		ne := s.AddDependency(e.Spec.Clone(), e.Types)
		ne.Virtual = e.Virtual
	}
	return nil
}

func (s *Spec) label() string {
	if s.Name == "" {
		return "anonymous spec"
	}
	return s.Name
}
