package splice

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stacksolve/pkg/facts"
	"github.com/matzehuels/stacksolve/pkg/observability"
	"github.com/matzehuels/stacksolve/pkg/repo"
	"github.com/matzehuels/stacksolve/pkg/solver"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

// Options configures a splice pass.
type Options struct {
	// Enabled turns splicing on. A disabled pass returns a copy of the
	// solution with no decisions.
	Enabled bool
	// Candidates are concrete, hashed specs that may be spliced in. Every node
	// of their graphs is a candidate.
	Candidates []*spec.Spec
	// Policy holds explicit splices, applied before can_splice rules.
	Policy *repo.SplicePolicy
	Logger *log.Logger
}

// Decision records what happened to one solution node that a splice rule
// applied to.
type Decision struct {
	Node            string `json:"node"`
	Package         string `json:"package"`
	Replacement     string `json:"replacement,omitempty"`
	ReplacementHash string `json:"replacement_hash,omitempty"`
	// Rule is the can_splice declaration or splice.yaml entry that licensed
	// the splice.
	Rule       string `json:"rule"`
	Match      string `json:"match_variants"`
	Transitive bool   `json:"transitive"`
	Applied    bool   `json:"applied"`
	Reason     string `json:"reason,omitempty"`
}

func (d Decision) String() string {
	if d.Applied {
		return fmt.Sprintf("spliced %s into %s (%s)", d.Replacement, d.Node, d.Rule)
	}
	return fmt.Sprintf("kept %s: %s", d.Node, d.Reason)
}

// Result is a spliced solution with the decisions that produced it.
type Result struct {
	Solution  *solver.Solution
	Decisions []Decision
}

// Applied returns the decisions that changed the solution.
func (r *Result) Applied() []Decision {
	var out []Decision
	for _, d := range r.Decisions {
		if d.Applied {
			out = append(out, d)
		}
	}
	return out
}

// Resolve splices candidates into a copy of sol. sol itself is never
// modified, so a caller can fall back to it when Resolve fails.
func Resolve(ctx context.Context, sol *solver.Solution, table *facts.Table, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	res := &Result{Solution: sol.Clone()}
	if !opts.Enabled {
		return res, nil
	}
	r := &resolver{
		ctx:        ctx,
		table:      table,
		candidates: indexCandidates(opts.Candidates),
		spliced:    make(map[*spec.Spec]bool),
		res:        res,
		logger:     logger,
	}
	if opts.Policy != nil {
		for i, e := range opts.Policy.Splice {
			if err := r.explicit(i, e); err != nil {
				return nil, err
			}
		}
	}
	for _, n := range slices.Clone(res.Solution.Nodes) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !slices.Contains(res.Solution.Nodes, n) || r.spliced[n] || res.Solution.Reused[n] {
			continue
		}
		if err := r.rules(n); err != nil {
			return nil, err
		}
	}
	logger.Debug("splice pass complete", "decisions", len(res.Decisions), "applied", len(res.Applied()))
	return res, nil
}

type resolver struct {
	ctx        context.Context
	table      *facts.Table
	candidates map[string][]*spec.Spec
	spliced    map[*spec.Spec]bool
	res        *Result
	logger     *log.Logger
}

func (r *resolver) explicit(i int, e repo.SpliceEntry) error {
	target, repl := e.TargetSpec, e.ReplacementSpec
	if target == nil || repl == nil {
		var err error
		if target, err = spec.Parse(e.Target); err != nil {
			return err
		}
		if repl, err = spec.Parse(e.Replacement); err != nil {
			return err
		}
	}
	rule := fmt.Sprintf("splice.yaml[%d]", i)
	for _, n := range slices.Clone(r.res.Solution.Nodes) {
		if !slices.Contains(r.res.Solution.Nodes, n) || r.spliced[n] || !n.Satisfies(target) {
			continue
		}
		d := Decision{
			Node:       n.NodeString(),
			Package:    n.Name,
			Rule:       rule,
			Match:      "none",
			Transitive: e.Transitive,
		}
		var reason string
		for _, c := range r.matching(repl) {
			a, why := r.try(n, c, e.Transitive)
			if a == nil {
				reason = why
				continue
			}
			r.commit(&d, n, c, a)
			break
		}
		if !d.Applied {
			if reason == "" {
				reason = "no installed spec satisfies " + repl.String()
			}
			d.Reason = reason
			r.res.Decisions = append(r.res.Decisions, d)
		}
	}
	return nil
}

type match struct {
	rule        facts.SpliceFact
	candidate   *spec.Spec
	attempt     *attempt
	specificity int
}

// rules applies the package's can_splice declarations to n.
func (r *resolver) rules(n *spec.Spec) error {
	pkg, ok := r.table.Package(n.Name)
	if !ok || len(pkg.Splices) == 0 {
		return nil
	}
	var (
		matches    []match
		considered bool
		reason     string
	)
	for _, rule := range pkg.Splices {
		if !n.SatisfiesNode(rule.When) {
			continue
		}
		considered = true
		found := false
		for _, c := range r.matching(rule.Source) {
			if c.Hash == n.Hash {
				continue
			}
			if why := variantsAgree(n, c, rule.MatchVariants); why != "" {
				reason = why
				continue
			}
			a, why := r.try(n, c, false)
			if a == nil {
				reason = why
				continue
			}
			matches = append(matches, match{rule: rule, candidate: c, attempt: a, specificity: specificity(rule)})
			found = true
			break
		}
		if !found && reason == "" {
			reason = "no installed spec satisfies " + rule.Source.String()
		}
	}
	if !considered {
		return nil
	}
	if len(matches) == 0 {
		r.res.Decisions = append(r.res.Decisions, Decision{
			Node:    n.NodeString(),
			Package: n.Name,
			Rule:    "can_splice",
			Match:   "none",
			Reason:  reason,
		})
		return nil
	}

	slices.SortStableFunc(matches, func(a, b match) int { return b.specificity - a.specificity })
	if len(matches) > 1 && matches[0].specificity == matches[1].specificity {
		var rules []string
		for _, m := range matches {
			if m.specificity == matches[0].specificity {
				rules = append(rules, ruleString(m.rule))
			}
		}
		return &AmbiguousSpliceError{Node: n.NodeString(), Rules: rules}
	}
	best := matches[0]
	d := Decision{
		Node:    n.NodeString(),
		Package: n.Name,
		Rule:    ruleString(best.rule),
		Match:   best.rule.MatchVariants.String(),
	}
	r.commit(&d, n, best.candidate, best.attempt)
	return nil
}

func (r *resolver) commit(d *Decision, target, c *spec.Spec, a *attempt) {
	d.Applied = true
	d.Replacement = c.NodeString()
	d.ReplacementHash = c.Hash
	r.commitGraph(a)
	r.res.Solution = a.sol
	r.spliced[a.node] = true
	for _, n := range a.imported {
		r.spliced[n] = true
	}
	r.res.Decisions = append(r.res.Decisions, *d)
	observability.Concretize().OnSplice(r.ctx, target.Name, d.Transitive)
	r.logger.Debug("spliced", "node", d.Node, "replacement", d.Replacement, "rule", d.Rule)
}

// matching returns the candidates satisfying c, newest first.
func (r *resolver) matching(c *spec.Spec) []*spec.Spec {
	var out []*spec.Spec
	names := []string{c.Name}
	if c.Name == "" {
		names = nil
		for name := range r.candidates {
			names = append(names, name)
		}
		slices.Sort(names)
	}
	for _, name := range names {
		for _, cand := range r.candidates[name] {
			if cand.Satisfies(c) {
				out = append(out, cand)
			}
		}
	}
	return out
}

// variantsAgree checks the match_variants policy between the node being
// replaced and its replacement. It returns why they disagree.
func variantsAgree(n, c *spec.Spec, mv repo.MatchVariants) string {
	var names []string
	switch {
	case mv.All:
		for _, name := range n.VariantNames() {
			if _, ok := c.Variants[name]; ok {
				names = append(names, name)
			}
		}
	case len(mv.Names) > 0:
		names = mv.Names
	}
	var differ []string
	for _, name := range names {
		a, okA := n.Variant(name)
		b, okB := c.Variant(name)
		if !okA || !okB || !a.Equal(b) {
			differ = append(differ, name)
		}
	}
	if len(differ) == 0 {
		return ""
	}
	return "variants " + strings.Join(differ, ",") + " differ from " + c.NodeString()
}

// specificity counts the attributes a rule constrains.
func specificity(rule facts.SpliceFact) int {
	count := func(s *spec.Spec) int {
		n := len(s.Variants)
		if !s.Versions.IsAny() {
			n++
		}
		if s.Compiler != nil {
			n++
		}
		if s.Arch != "" {
			n++
		}
		return n
	}
	return count(rule.Source) + count(rule.When)
}

func ruleString(rule facts.SpliceFact) string {
	s := fmt.Sprintf("can_splice(%q", rule.Source.String())
	if w := rule.When.String(); w != "" {
		s += fmt.Sprintf(", when=%q", w)
	}
	if !rule.MatchVariants.IsZero() {
		s += ", match_variants=" + rule.MatchVariants.String()
	}
	return s + ")"
}

func indexCandidates(roots []*spec.Spec) map[string][]*spec.Spec {
	out := make(map[string][]*spec.Spec)
	seen := make(map[string]bool)
	for _, root := range roots {
		root.Traverse(func(n *spec.Spec) bool {
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
