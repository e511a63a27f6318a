package solver

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/facts"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

// Problem is one concretization request: every root is solved together so
// that uniqueness holds across the whole environment.
type Problem struct {
	Roots []*spec.Spec
	Facts *facts.Table

	// Reusable holds concrete, hashed specs (installed or cached builds). They
	// are candidates when Policy.Reuse is set, and always when a constraint
	// names a hash.
	Reusable []*spec.Spec

	Policy Policy
}

// Backend is a solving strategy. The shipped backend is [Search]; others (an
// external logic solver, say) only need to map facts to a model.
type Backend interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}

// Solve solves p with the default backend.
func Solve(ctx context.Context, p *Problem) (*Solution, error) {
	return (&Search{}).Solve(ctx, p)
}

// VersionOrder says which end of a package's version list is preferred.
type VersionOrder string

const (
	Newest VersionOrder = "newest"
	Oldest VersionOrder = "oldest"
)

// DefaultMaxSteps bounds the search when Policy.MaxSteps is zero.
const DefaultMaxSteps = 200_000

// Policy holds the user preferences that shape a solution.
type Policy struct {
	// Compilers are the available compilers, most preferred first. When
	// empty, nodes keep whatever compiler their constraints name.
	Compilers []*spec.CompilerSpec
	// DefaultArch is assigned to nodes whose constraints name no arch.
	DefaultArch string
	// Providers orders the providers of a virtual, most preferred first.
	Providers map[string][]string

	Reuse bool
	// Tests includes test dependencies of the roots.
	Tests bool

	VersionOrder VersionOrder
	// Criteria is the optimization order. Missing criteria are appended in
	// DefaultCriteria order.
	Criteria []Criterion
	MaxSteps int
}

func (p Policy) normalized() (Policy, error) {
	if p.VersionOrder == "" {
		p.VersionOrder = Newest
	}
	if p.VersionOrder != Newest && p.VersionOrder != Oldest {
		return p, errors.New(errors.ErrCodeInvalidInput, "unknown version order %q", p.VersionOrder)
	}
	names := make([]string, len(p.Criteria))
	for i, c := range p.Criteria {
		names[i] = string(c)
	}
	crit, err := ParseCriteria(names)
	if err != nil {
		return p, err
	}
	p.Criteria = crit
	if p.MaxSteps <= 0 {
		p.MaxSteps = DefaultMaxSteps
	}
	return p, nil
}

// =============================================================================
// Optimization criteria
// =============================================================================

// Criterion names one component of the solution cost.
type Criterion string

const (
	Builds    Criterion = "builds"    // nodes built although a matching installed spec exists
	Versions  Criterion = "versions"  // distance from the preferred version
	Variants  Criterion = "variants"  // variant values that differ from the default
	Providers Criterion = "providers" // distance from the preferred provider
	Compilers Criterion = "compilers" // distance from the preferred compiler
	Packages  Criterion = "packages"  // total number of nodes
)

// DefaultCriteria is the optimization order used when none is configured.
var DefaultCriteria = []Criterion{Builds, Versions, Variants, Providers, Compilers, Packages}

// ParseCriteria validates an optimization order and completes it with the
// criteria it omits, in DefaultCriteria order.
func ParseCriteria(names []string) ([]Criterion, error) {
	out := make([]Criterion, 0, len(DefaultCriteria))
	for _, n := range names {
		c := Criterion(strings.TrimSpace(n))
		if !slices.Contains(DefaultCriteria, c) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "unknown optimization criterion %q", n)
		}
		if slices.Contains(out, c) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "criterion %q listed twice", n)
		}
		out = append(out, c)
	}
	for _, c := range DefaultCriteria {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Cost is the penalty vector of a solution. Lower is better, compared
// lexicographically in criteria order.
type Cost struct {
	Builds    int `json:"builds"`
	Versions  int `json:"versions"`
	Variants  int `json:"variants"`
	Providers int `json:"providers"`
	Compilers int `json:"compilers"`
	Packages  int `json:"packages"`
}

// Get returns the component for c.
func (c Cost) Get(k Criterion) int {
	switch k {
	case Builds:
		return c.Builds
	case Versions:
		return c.Versions
	case Variants:
		return c.Variants
	case Providers:
		return c.Providers
	case Compilers:
		return c.Compilers
	case Packages:
		return c.Packages
	}
	return 0
}

// Compare compares c and o lexicographically in the given order.
func (c Cost) Compare(o Cost, order []Criterion) int {
	for _, k := range order {
		a, b := c.Get(k), o.Get(k)
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (c Cost) add(o Cost) Cost {
	return Cost{
		Builds:    c.Builds + o.Builds,
		Versions:  c.Versions + o.Versions,
		Variants:  c.Variants + o.Variants,
		Providers: c.Providers + o.Providers,
		Compilers: c.Compilers + o.Compilers,
		Packages:  c.Packages + o.Packages,
	}
}

func (c Cost) String() string {
	return fmt.Sprintf("builds=%d versions=%d variants=%d providers=%d compilers=%d packages=%d",
		c.Builds, c.Versions, c.Variants, c.Providers, c.Compilers, c.Packages)
}
