package version

import (
	"strings"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

// Range is an inclusive interval of versions. A zero Lo or Hi leaves that end
// open. When Exact is set the range matches the single version Lo.
type Range struct {
	Lo    Version
	Hi    Version
	Exact bool
}

// Any is the range that contains every version.
var Any = Range{}

// Point returns the range matching exactly v.
func Point(v Version) Range { return Range{Lo: v, Hi: v, Exact: true} }

// ParseRange parses "lo:hi", ":hi", "lo:", ":", "=v" or a bare "v".
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == ":" {
		return Any, nil
	}
	if strings.HasPrefix(s, "=") {
		v, err := Parse(s[1:])
		if err != nil {
			return Range{}, err
		}
		return Point(v), nil
	}
	lo, hi, isRange := strings.Cut(s, ":")
	if !isRange {
		v, err := Parse(s)
		if err != nil {
			return Range{}, err
		}
		return Range{Lo: v, Hi: v}, nil
	}
	if strings.Contains(hi, ":") {
		return Range{}, errors.New(errors.ErrCodeInvalidVersion, "invalid version range %q", s)
	}
	var r Range
	var err error
	if lo != "" {
		if r.Lo, err = Parse(lo); err != nil {
			return Range{}, err
		}
	}
	if hi != "" {
		if r.Hi, err = Parse(hi); err != nil {
			return Range{}, err
		}
	}
	if !r.nonEmpty() {
		return Range{}, errors.New(errors.ErrCodeInvalidVersion, "empty version range %q", s)
	}
	return r, nil
}

// IsAny reports whether r places no constraint on the version.
func (r Range) IsAny() bool { return !r.Exact && r.Lo.IsZero() && r.Hi.IsZero() }

// underHi reports whether v is within the upper bound h, using prefix
// semantics.
func underHi(v, h Version) bool {
	if h.IsZero() {
		return true
	}
	return v.Compare(h) <= 0 || h.IsPrefixOf(v)
}

// Contains reports whether v lies within r.
func (r Range) Contains(v Version) bool {
	if r.Exact {
		return r.Lo.Equal(v)
	}
	if !r.Lo.IsZero() && v.Compare(r.Lo) < 0 {
		return false
	}
	return underHi(v, r.Hi)
}

func (r Range) nonEmpty() bool {
	if r.Exact || r.Lo.IsZero() {
		return true
	}
	return underHi(r.Lo, r.Hi)
}

// minHi returns the tighter of two upper bounds. When one bound is a prefix of
// the other the longer one is tighter.
func minHi(a, b Version) Version {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case a.IsPrefixOf(b):
		return b
	case b.IsPrefixOf(a):
		return a
	case a.Compare(b) < 0:
		return a
	}
	return b
}

func maxLo(a, b Version) Version {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}

// Intersect returns the overlap of r and o, and false when they are disjoint.
func (r Range) Intersect(o Range) (Range, bool) {
	switch {
	case r.Exact:
		return r, o.Contains(r.Lo)
	case o.Exact:
		return o, r.Contains(o.Lo)
	}
	out := Range{Lo: maxLo(r.Lo, o.Lo), Hi: minHi(r.Hi, o.Hi)}
	return out, out.nonEmpty()
}

// Subset reports whether every version in r is also in o.
func (r Range) Subset(o Range) bool {
	if o.IsAny() {
		return true
	}
	if r.Exact {
		return o.Contains(r.Lo)
	}
	if o.Exact {
		return false
	}
	if !o.Lo.IsZero() && (r.Lo.IsZero() || r.Lo.Compare(o.Lo) < 0) {
		return false
	}
	if !o.Hi.IsZero() {
		if r.Hi.IsZero() {
			return false
		}
		return minHi(r.Hi, o.Hi).Equal(r.Hi)
	}
	return true
}

// String formats r in constraint syntax.
func (r Range) String() string {
	switch {
	case r.Exact:
		return "=" + r.Lo.String()
	case r.IsAny():
		return ":"
	case !r.Lo.IsZero() && r.Lo.Equal(r.Hi):
		return r.Lo.String()
	}
	return r.Lo.String() + ":" + r.Hi.String()
}
