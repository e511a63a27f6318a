package solver

import (
	"fmt"
	"slices"

	"github.com/matzehuels/stacksolve/pkg/facts"
	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/version"
)

// versionClass orders versions before the configured newest/oldest
// preference applies.
func versionClass(v facts.VersionFact) int {
	switch {
	case v.Deprecated:
		return 3
	case v.Version.IsDevelop():
		return 2
	case v.Preferred:
		return 0
	}
	return 1
}

// versions returns pkg's versions, most preferred first. A version's index
// in the result is its Versions penalty.
func (s *search) versions(pkg *facts.PackageFacts) []facts.VersionFact {
	if vs, ok := s.orders[pkg.Name]; ok {
		return vs
	}
	vs := slices.Clone(pkg.Versions)
	slices.SortStableFunc(vs, func(a, b facts.VersionFact) int {
		if ca, cb := versionClass(a), versionClass(b); ca != cb {
			return ca - cb
		}
		if s.policy.VersionOrder == Oldest {
			return a.Version.Compare(b.Version)
		}
		return b.Version.Compare(a.Version)
	})
	s.orders[pkg.Name] = vs
	return vs
}

type compilerChoice struct {
	compiler *spec.CompilerSpec
	rank     int
}

func (s *search) compilers(cons *spec.Spec) []compilerChoice {
	if len(s.policy.Compilers) == 0 {
		var c *spec.CompilerSpec
		if cons.Compiler != nil {
			cc := *cons.Compiler
			c = &cc
		}
		return []compilerChoice{{compiler: c}}
	}
	var out []compilerChoice
	for i, c := range s.policy.Compilers {
		if cons.Compiler == nil || c.Satisfies(cons.Compiler) {
			cc := *c
			out = append(out, compilerChoice{compiler: &cc, rank: i})
		}
	}
	return out
}

// variantChoices lists the assignments tried for one variant, default
// first. A constrained variant has exactly one choice.
func variantChoices(vf *facts.VariantFact, cons *spec.Spec) ([][]string, string) {
	if want, ok := cons.Variants[vf.Name]; ok {
		if !vf.Allows(want.Values) {
			return nil, fmt.Sprintf("variant %s does not allow %s", vf.Name, want)
		}
		return [][]string{want.Values}, ""
	}
	out := [][]string{vf.Default}
	for _, v := range vf.Domain() {
		if !slices.Equal(vf.Default, []string{v}) {
			out = append(out, []string{v})
		}
	}
	return out, ""
}

// configs enumerates the build configurations of pkg that satisfy cons, in
// preference order. When there are none it returns the reason.
func (s *search) configs(pkg *facts.PackageFacts, cons *spec.Spec) ([]config, string) {
	for _, name := range cons.VariantNames() {
		if _, ok := pkg.Variant(name); !ok {
			return nil, fmt.Sprintf("%s has no variant %q", pkg.Name, name)
		}
	}

	type rankedVersion struct {
		v    version.Version
		rank int
	}
	var versions []rankedVersion
	for i, vf := range s.versions(pkg) {
		if cons.Versions.Contains(vf.Version) {
			versions = append(versions, rankedVersion{vf.Version, i})
		}
	}
	if len(versions) == 0 {
		return nil, fmt.Sprintf("no declared version satisfies @%s", cons.Versions)
	}
	compilers := s.compilers(cons)
	if len(compilers) == 0 {
		return nil, fmt.Sprintf("no available compiler satisfies %%%s", cons.Compiler)
	}
	arch := cons.Arch
	if arch == "" {
		arch = s.policy.DefaultArch
	}

	choices := make([][][]string, len(pkg.Variants))
	for i := range pkg.Variants {
		c, reason := variantChoices(&pkg.Variants[i], cons)
		if c == nil {
			return nil, reason
		}
		choices[i] = c
	}

	var out []config
	seen := make(map[string]bool)
	reason := "no configuration satisfies the constraints"
	pick := make([]int, len(choices))
	for _, rv := range versions {
		for _, cc := range compilers {
			for {
				cfg, why := s.assemble(pkg, cons, rv.v, cc.compiler, arch, choices, pick)
				switch {
				case cfg != nil && !seen[cfg.node.NodeString()]:
					seen[cfg.node.NodeString()] = true
					cfg.cost = Cost{Builds: 1, Packages: 1, Versions: rv.rank, Compilers: cc.rank, Variants: cfg.cost.Variants}
					out = append(out, *cfg)
				case cfg == nil && why != "":
					reason = why
				}
				if !advance(pick, choices) {
					break
				}
			}
		}
	}
	return out, reason
}

// advance steps the odometer pick over choices, reporting false after the
// last combination.
func advance(pick []int, choices [][][]string) bool {
	for i := len(pick) - 1; i >= 0; i-- {
		pick[i]++
		if pick[i] < len(choices[i]) {
			return true
		}
		pick[i] = 0
	}
	return false
}

// assemble builds one candidate node. Variants whose guard does not hold for
// the candidate are dropped; requesting such a variant rejects it, as does a
// conflict that holds on the node alone.
func (s *search) assemble(pkg *facts.PackageFacts, cons *spec.Spec, v version.Version, c *spec.CompilerSpec, arch string, choices [][][]string, pick []int) (*config, string) {
	n := spec.New(pkg.Name)
	n.Versions = version.Exactly(v)
	n.Compiler = c
	n.Arch = arch
	for i, vf := range pkg.Variants {
		n.SetVariant(spec.NewVariant(vf.Name, choices[i][pick[i]]...))
	}
	penalty := 0
	var drop []string
	for i, vf := range pkg.Variants {
		if vf.When.IsAlways() || vf.When.Eval(nodeOnly{n}) == facts.True {
			if _, requested := cons.Variants[vf.Name]; !requested && !slices.Equal(choices[i][pick[i]], vf.Default) {
				penalty++
			}
			continue
		}
		if _, ok := cons.Variants[vf.Name]; ok {
			return nil, fmt.Sprintf("variant %s of %s requires %s", vf.Name, pkg.Name, vf.When.String())
		}
		if pick[i] != 0 {
			// Same node as the default choice with the variant dropped.
			return nil, ""
		}
		drop = append(drop, vf.Name)
	}
	for _, name := range drop {
		delete(n.Variants, name)
	}
	for _, cf := range pkg.Conflicts {
		if cf.Spec.Eval(nodeOnly{n}) == facts.True && cf.When.Eval(nodeOnly{n}) == facts.True {
			return nil, cf.Msg
		}
	}
	return &config{node: n, cost: Cost{Variants: penalty}}, ""
}
