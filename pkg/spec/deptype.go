package spec

import (
	"strings"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

// DepType is the closed set of dependency edge kinds. An edge carries one or
// more of them.
type DepType uint8

const (
	DepBuild DepType = 1 << iota // needed to build the dependent
	DepLink                      // linked into the dependent
	DepRun                       // needed at run time
	DepTest                      // needed only to run the dependent's tests
)

const (
	// DefaultDepTypes is used when a declaration does not name its types.
	DefaultDepTypes = DepBuild | DepLink
	// AllDepTypes is the union of every dependency kind.
	AllDepTypes = DepBuild | DepLink | DepRun | DepTest
)

var depTypeNames = []struct {
	t    DepType
	name string
}{
	{DepBuild, "build"},
	{DepLink, "link"},
	{DepRun, "run"},
	{DepTest, "test"},
}

// ParseDepTypes parses dependency kind names. An empty slice yields
// DefaultDepTypes.
func ParseDepTypes(names []string) (DepType, error) {
	if len(names) == 0 {
		return DefaultDepTypes, nil
	}
	var out DepType
	for _, n := range names {
		t, ok := depTypeByName(strings.TrimSpace(n))
		if !ok {
			return 0, errors.New(errors.ErrCodeInvalidInput, "unknown dependency type %q", n)
		}
		out |= t
	}
	return out, nil
}

func depTypeByName(name string) (DepType, bool) {
	for _, d := range depTypeNames {
		if d.name == name {
			return d.t, true
		}
	}
	return 0, false
}

// Has reports whether every kind in o is present in d.
func (d DepType) Has(o DepType) bool { return d&o == o }

// Names returns the kind names in canonical order.
func (d DepType) Names() []string {
	var out []string
	for _, n := range depTypeNames {
		if d&n.t != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (d DepType) String() string { return strings.Join(d.Names(), ",") }

// MarshalText encodes d as its comma-separated names.
func (d DepType) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText decodes a comma-separated list of names.
func (d *DepType) UnmarshalText(b []byte) error {
	var names []string
	if len(b) > 0 {
		names = strings.Split(string(b), ",")
	}
	t, err := ParseDepTypes(names)
	if err != nil {
		return err
	}
	*d = t
	return nil
}
