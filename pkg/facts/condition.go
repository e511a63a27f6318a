package facts

import (
	"strings"

	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/version"
)

// Truth is a three-valued logic value. Guards that mention dependencies are
// Unknown while the dependency subgraph is still being decided.
type Truth int8

const (
	False Truth = iota
	Unknown
	True
)

func (t Truth) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "unknown"
}

// and combines truths with Kleene conjunction.
func and(a, b Truth) Truth {
	if a == False || b == False {
		return False
	}
	if a == Unknown || b == Unknown {
		return Unknown
	}
	return True
}

// CondKind tags the predicate a Condition node tests.
type CondKind uint8

const (
	CondAlways     CondKind = iota // no guard
	CondAll                        // conjunction of Children
	CondVersionIn                  // node version in Versions
	CondVariantIs                  // node variant satisfies Variant
	CondCompilerIs                 // node compiler satisfies Compiler
	CondArchIs                     // node arch equals Arch
	CondDependsOn                  // Dep is in the subtree and satisfies Node
)

// Condition is a compiled guard: a tagged predicate tree evaluated lazily
// against a candidate node.
type Condition struct {
	Kind     CondKind
	Versions version.List
	Variant  spec.Variant
	Compiler *spec.CompilerSpec
	Arch     string
	Dep      string
	Node     *Condition
	Children []*Condition

	// Source is the guard text the condition was compiled from.
	Source string
}

// Always is the condition of an unguarded declaration.
var Always = &Condition{Kind: CondAlways}

// IsAlways reports whether c is trivially true.
func (c *Condition) IsAlways() bool {
	return c == nil || c.Kind == CondAlways || (c.Kind == CondAll && len(c.Children) == 0)
}

// Subject is the view of a node that conditions are evaluated against.
type Subject interface {
	// Node returns the node's attributes. Every attribute a condition tests
	// must already be decided.
	Node() *spec.Spec
	// Reaches looks for a node named name (or providing the virtual name)
	// below the subject. A found node whose attributes are still undecided is
	// returned with Unknown; a nil Subject with Unknown means the subgraph may
	// still grow.
	Reaches(name string) (Subject, Truth)
}

// Eval evaluates c against s.
func (c *Condition) Eval(s Subject) Truth {
	if c == nil {
		return True
	}
	n := s.Node()
	switch c.Kind {
	case CondAlways:
		return True
	case CondAll:
		t := True
		for _, ch := range c.Children {
			if t = and(t, ch.Eval(s)); t == False {
				return False
			}
		}
		return t
	case CondVersionIn:
		v, ok := n.Version()
		if !ok {
			return boolTruth(n.Versions.Subset(c.Versions))
		}
		return boolTruth(c.Versions.Contains(v))
	case CondVariantIs:
		have, ok := n.Variant(c.Variant.Name)
		return boolTruth(ok && have.Satisfies(c.Variant))
	case CondCompilerIs:
		return boolTruth(n.Compiler.Satisfies(c.Compiler))
	case CondArchIs:
		return boolTruth(n.Arch == c.Arch)
	case CondDependsOn:
		sub, t := s.Reaches(c.Dep)
		switch {
		case t == False:
			return False
		case c.Node.IsAlways() && sub != nil:
			return True
		case t == Unknown:
			return Unknown
		}
		return c.Node.Eval(sub)
	}
	return False
}

func boolTruth(b bool) Truth {
	if b {
		return True
	}
	return False
}

// Deps returns the dependency names the condition mentions.
func (c *Condition) Deps() []string {
	if c == nil {
		return nil
	}
	var out []string
	switch c.Kind {
	case CondDependsOn:
		out = append(out, c.Dep)
		out = append(out, c.Node.Deps()...)
	case CondAll:
		for _, ch := range c.Children {
			out = append(out, ch.Deps()...)
		}
	}
	return out
}

// Variants returns the variant names tested on the node itself.
func (c *Condition) Variants() []string {
	if c == nil {
		return nil
	}
	switch c.Kind {
	case CondVariantIs:
		return []string{c.Variant.Name}
	case CondAll:
		var out []string
		for _, ch := range c.Children {
			out = append(out, ch.Variants()...)
		}
		return out
	}
	return nil
}

func (c *Condition) String() string {
	if c.IsAlways() {
		return "always"
	}
	if c.Source != "" {
		return c.Source
	}
	switch c.Kind {
	case CondVersionIn:
		return "@" + c.Versions.String()
	case CondVariantIs:
		return c.Variant.String()
	case CondCompilerIs:
		return "%" + c.Compiler.String()
	case CondArchIs:
		return "arch=" + c.Arch
	case CondDependsOn:
		if c.Node.IsAlways() {
			return "^" + c.Dep
		}
		return "^" + c.Dep + " " + c.Node.String()
	}
	parts := make([]string, len(c.Children))
	for i, ch := range c.Children {
		parts[i] = ch.String()
	}
	return strings.Join(parts, " ")
}

// Compile turns an abstract spec into a condition. Node attributes become
// node predicates and every "^dep" becomes a DependsOn predicate whose node
// condition is compiled from the dependency's own attributes.
func Compile(s *spec.Spec) *Condition {
	if s == nil {
		return Always
	}
	c := compileNode(s)
	for _, e := range s.Dependencies() {
		c.Children = append(c.Children, &Condition{
			Kind: CondDependsOn,
			Dep:  e.Spec.Name,
			Node: compileNode(e.Spec),
		})
	}
	if len(c.Children) == 0 {
		return Always
	}
	if len(c.Children) == 1 {
		return c.Children[0]
	}
	return c
}

func compileNode(s *spec.Spec) *Condition {
	c := &Condition{Kind: CondAll}
	if !s.Versions.IsAny() {
		c.Children = append(c.Children, &Condition{Kind: CondVersionIn, Versions: s.Versions})
	}
	if s.Compiler != nil {
		cc := *s.Compiler
		c.Children = append(c.Children, &Condition{Kind: CondCompilerIs, Compiler: &cc})
	}
	for _, name := range s.VariantNames() {
		c.Children = append(c.Children, &Condition{Kind: CondVariantIs, Variant: s.Variants[name]})
	}
	if s.Arch != "" {
		c.Children = append(c.Children, &Condition{Kind: CondArchIs, Arch: s.Arch})
	}
	return c
}

// CompileString parses and compiles a guard. The empty string is Always.
func CompileString(when string) (*Condition, *spec.Spec, error) {
	if strings.TrimSpace(when) == "" {
		return Always, nil, nil
	}
	s, err := spec.Parse(when)
	if err != nil {
		return nil, nil, err
	}
	c := Compile(s)
	if !c.IsAlways() {
		c.Source = when
	}
	return c, s, nil
}

// specSubject evaluates conditions against a finished spec DAG. Absent
// dependencies are False: the graph is final.
type specSubject struct {
	s     *spec.Spec
	table *Table
}

// ForSpec returns a Subject over a concrete spec DAG. When table is non-nil,
// virtual names are matched by the providers they list.
func ForSpec(s *spec.Spec, table *Table) Subject {
	return specSubject{s: s, table: table}
}

func (ss specSubject) Node() *spec.Spec { return ss.s }

func (ss specSubject) Reaches(name string) (Subject, Truth) {
	var found *spec.Spec
	ss.s.Traverse(func(n *spec.Spec) bool {
		if found != nil {
			return false
		}
		if n == ss.s {
			return true
		}
		if n.Name == name || (ss.table != nil && ss.table.ProvidesVirtual(n, name)) {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil, False
	}
	return specSubject{s: found, table: ss.table}, True
}
