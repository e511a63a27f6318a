package spec

import (
	"slices"
	"strings"
)

// Boolean variant values.
const (
	True  = "true"
	False = "false"
)

// Variant is a named build option. Boolean variants hold a single value,
// True or False; enum variants hold one or more values, sorted and without
// duplicates.
type Variant struct {
	Name   string
	Values []string
}

// NewVariant returns a variant with the given values normalized.
func NewVariant(name string, values ...string) Variant {
	vs := slices.Clone(values)
	slices.Sort(vs)
	return Variant{Name: name, Values: slices.Compact(vs)}
}

// BoolVariant returns the boolean variant name=on.
func BoolVariant(name string, on bool) Variant {
	if on {
		return Variant{Name: name, Values: []string{True}}
	}
	return Variant{Name: name, Values: []string{False}}
}

// Bool returns the value of a boolean variant. ok is false when the variant
// does not hold exactly one boolean value.
func (v Variant) Bool() (on, ok bool) {
	if len(v.Values) != 1 {
		return false, false
	}
	switch v.Values[0] {
	case True:
		return true, true
	case False:
		return false, true
	}
	return false, false
}

// IsBool reports whether v holds a single boolean value.
func (v Variant) IsBool() bool {
	_, ok := v.Bool()
	return ok
}

// Equal reports whether both variants hold the same value set.
func (v Variant) Equal(o Variant) bool {
	return v.Name == o.Name && slices.Equal(v.Values, o.Values)
}

// Satisfies reports whether a node carrying v meets the constraint c. Boolean
// constraints need the same value; enum constraints need every listed value.
func (v Variant) Satisfies(c Variant) bool {
	if c.IsBool() || v.IsBool() {
		return slices.Equal(v.Values, c.Values)
	}
	for _, want := range c.Values {
		if !slices.Contains(v.Values, want) {
			return false
		}
	}
	return true
}

// Compatible reports whether some node could meet both constraints. Enum
// constraints combine by union; whether the union is legal depends on the
// variant's declaration and is checked by the solver.
func (v Variant) Compatible(o Variant) bool {
	if v.IsBool() || o.IsBool() {
		return slices.Equal(v.Values, o.Values)
	}
	return true
}

// Merge returns the combination of two compatible constraints.
func (v Variant) Merge(o Variant) Variant {
	return NewVariant(v.Name, append(slices.Clone(v.Values), o.Values...)...)
}

// String formats v in spec syntax: "+name", "~name" or "name=a,b".
func (v Variant) String() string {
	if on, ok := v.Bool(); ok {
		if on {
			return "+" + v.Name
		}
		return "~" + v.Name
	}
	return v.Name + "=" + strings.Join(v.Values, ",")
}
