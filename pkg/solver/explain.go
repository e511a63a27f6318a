package solver

import (
	"slices"
	"strings"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

// explain turns the deepest conflict of a failed search into an
// UnsatisfiableError. Conflicts over the constraints on a single package are
// shrunk to a minimal set of requirements by deletion: a requirement is kept
// only if the rest become satisfiable without it.
func (s *search) explain() error {
	c := s.failure
	if c == nil {
		return &UnsatisfiableError{Package: "request", Reason: "no solution exists"}
	}
	if c.origins == nil || !s.table.Known(c.pkg) || s.table.IsVirtual(c.pkg) {
		return &UnsatisfiableError{Package: c.pkg, Reason: c.reason, Requirements: dedupe(c.requirements())}
	}
	set := slices.Clone(c.origins)
	if ok, _ := s.feasible(c.pkg, set); !ok {
		for i := 0; i < len(set); {
			trial := slices.Delete(slices.Clone(set), i, i+1)
			if ok, _ := s.feasible(c.pkg, trial); ok {
				i++
				continue
			}
			set = trial
		}
	}
	reason := c.reason
	if ok, why := s.feasible(c.pkg, set); !ok && why != "" {
		reason = why
	}
	reqs := make([]Requirement, len(set))
	for i, o := range set {
		reqs[i] = o.req
	}
	return &UnsatisfiableError{Package: c.pkg, Reason: reason, Requirements: dedupe(reqs)}
}

// feasible reports whether some configuration of pkg meets every constraint
// in origins, looking at the node alone. When it does not, it returns why.
func (s *search) feasible(name string, origins []origin) (bool, string) {
	pkg, ok := s.table.Package(name)
	if !ok {
		return false, "no such package"
	}
	merged := spec.New(name)
	for _, o := range origins {
		if err := merged.ConstrainNode(o.cons); err != nil {
			return false, strings.TrimPrefix(errors.UserMessage(err), name+": ")
		}
	}
	if merged.Hash != "" {
		for _, r := range s.reusable[name] {
			if r.SatisfiesNode(merged) {
				return true, ""
			}
		}
		return false, "no installed spec matches /" + merged.Hash
	}
	if s.policy.Reuse {
		for _, r := range s.reusable[name] {
			if r.SatisfiesNode(merged) {
				return true, ""
			}
		}
	}
	cfgs, why := s.configs(pkg, merged)
	return len(cfgs) > 0, why
}

func dedupe(reqs []Requirement) []Requirement {
	var out []Requirement
	for _, r := range reqs {
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
