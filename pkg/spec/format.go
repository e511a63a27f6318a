package spec

import (
	"slices"
	"strings"
)

// NodeString formats the node attributes of s without dependencies.
//
// The canonical order is name, versions, compiler, boolean variants, valued
// variants, arch and hash. Variants are sorted by name.
func (s *Spec) NodeString() string {
	var b strings.Builder
	b.WriteString(s.Name)
	if !s.Versions.IsAny() {
		b.WriteString("@")
		b.WriteString(s.Versions.String())
	}
	if s.Compiler != nil {
		b.WriteString("%")
		b.WriteString(s.Compiler.String())
	}
	var valued []string
	for _, name := range s.VariantNames() {
		v := s.Variants[name]
		if v.IsBool() {
			b.WriteString(v.String())
			continue
		}
		valued = append(valued, v.String())
	}
	for _, v := range valued {
		sep(&b)
		b.WriteString(v)
	}
	if s.Arch != "" {
		sep(&b)
		b.WriteString("arch=")
		b.WriteString(s.Arch)
	}
	if s.Hash != "" && !s.Concrete {
		sep(&b)
		b.WriteString("/")
		b.WriteString(s.Hash)
	}
	return b.String()
}

func sep(b *strings.Builder) {
	if b.Len() > 0 {
		b.WriteString(" ")
	}
}

// String formats s and every node below it in spec syntax. Each distinct
// dependency name appears once, in name order, after the root.
func (s *Spec) String() string {
	var b strings.Builder
	b.WriteString(s.NodeString())

	type dep struct {
		node  *Spec
		types DepType
	}
	byName := make(map[string]dep)
	var names []string
	s.Traverse(func(n *Spec) bool {
		for _, e := range n.deps {
			if _, ok := byName[e.Spec.Name]; !ok {
				names = append(names, e.Spec.Name)
				t := DepType(0)
				if n == s {
					t = e.Types
				}
				byName[e.Spec.Name] = dep{node: e.Spec, types: t}
			}
		}
		return true
	})
	slices.Sort(names)
	for _, name := range names {
		d := byName[name]
		b.WriteString(" ^")
		if d.types != 0 && !s.Concrete {
			b.WriteString("[deptypes=")
			b.WriteString(d.types.String())
			b.WriteString("] ")
		}
		b.WriteString(d.node.NodeString())
	}
	return b.String()
}

// Tree formats s as an indented tree, one node per line.
func (s *Spec) Tree() string {
	var b strings.Builder
	var walk func(n *Spec, depth int, seen map[*Spec]bool)
	walk = func(n *Spec, depth int, seen map[*Spec]bool) {
		b.WriteString(strings.Repeat("    ", depth))
		if depth > 0 {
			b.WriteString("^")
		}
		b.WriteString(n.NodeString())
		b.WriteString("\n")
		if seen[n] {
			return
		}
		seen[n] = true
		for _, e := range n.Dependencies() {
			walk(e.Spec, depth+1, seen)
		}
	}
	walk(s, 0, make(map[*Spec]bool))
	return b.String()
}
