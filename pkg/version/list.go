package version

import (
	"strings"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

// List is a union of ranges. A nil or empty List places no constraint.
type List []Range

// ParseList parses a comma-separated list of ranges such as "1.2:1.4,2.0,=3".
func ParseList(s string) (List, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make(List, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, errors.New(errors.ErrCodeInvalidVersion, "empty element in version list %q", s)
		}
		r, err := ParseRange(p)
		if err != nil {
			return nil, err
		}
		if r.IsAny() {
			return nil, nil
		}
		out = append(out, r)
	}
	return out, nil
}

// MustParseList is like ParseList but panics on error.
func MustParseList(s string) List {
	l, err := ParseList(s)
	if err != nil {
		panic(err)
	}
	return l
}

// Exactly returns the list matching only v.
func Exactly(v Version) List { return List{Point(v)} }

// IsAny reports whether l places no constraint.
func (l List) IsAny() bool {
	for _, r := range l {
		if r.IsAny() {
			return true
		}
	}
	return len(l) == 0
}

// Contains reports whether v satisfies any range in l.
func (l List) Contains(v Version) bool {
	if l.IsAny() {
		return true
	}
	for _, r := range l {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

// Intersects reports whether some version could satisfy both l and o.
func (l List) Intersects(o List) bool {
	_, ok := l.Intersect(o)
	return ok
}

// Intersect returns the versions in both l and o. The boolean is false when
// the result is empty.
func (l List) Intersect(o List) (List, bool) {
	if l.IsAny() {
		return o, true
	}
	if o.IsAny() {
		return l, true
	}
	var out List
	for _, a := range l {
		for _, b := range o {
			if r, ok := a.Intersect(b); ok {
				out = append(out, r)
			}
		}
	}
	return out, len(out) > 0
}

// Subset reports whether every version matched by l is matched by o.
func (l List) Subset(o List) bool {
	if o.IsAny() {
		return true
	}
	if l.IsAny() {
		return false
	}
	for _, a := range l {
		found := false
		for _, b := range o {
			if a.Subset(b) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Concrete returns the single version l pins, if any.
func (l List) Concrete() (Version, bool) {
	if len(l) == 1 && l[0].Exact {
		return l[0].Lo, true
	}
	return Version{}, false
}

// String formats l in constraint syntax. The empty list formats as ":".
func (l List) String() string {
	if l.IsAny() {
		return ":"
	}
	parts := make([]string, len(l))
	for i, r := range l {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
