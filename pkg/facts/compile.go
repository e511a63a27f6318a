package facts

import (
	"fmt"
	"slices"

	"github.com/matzehuels/stacksolve/pkg/repo"
	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/version"
)

// CompilePackage compiles one recipe. It checks everything that can be
// checked without looking at other packages: version syntax, duplicate
// versions, variant domains and defaults, guard syntax and guards that test
// undeclared variants of the package itself.
func CompilePackage(def *repo.PackageDef, digest string) (*PackageFacts, error) {
	c := &compiler{def: def}
	p := &PackageFacts{
		Name:          def.Name,
		Description:   def.Description,
		MultiInstance: def.MultiInstance,
		Digest:        digest,
	}
	if len(def.Versions) == 0 {
		return nil, c.fail("version", "no versions declared", nil)
	}
	for i, vd := range def.Versions {
		v, err := version.Parse(vd.Version)
		if err != nil {
			return nil, c.fail(fmt.Sprintf("version(%q)", vd.Version), "unparseable version", err)
		}
		if slices.ContainsFunc(p.Versions, func(f VersionFact) bool { return f.Version.Equal(v) }) {
			return nil, c.fail(fmt.Sprintf("version(%q)", vd.Version), "version declared twice", nil)
		}
		p.Versions = append(p.Versions, VersionFact{
			Version:    v,
			Checksum:   vd.Digest(),
			Preferred:  vd.Preferred,
			Deprecated: vd.Deprecated,
			Index:      i,
		})
	}

	for _, vd := range def.Variants {
		vf, err := c.variant(vd)
		if err != nil {
			return nil, err
		}
		if _, dup := p.Variant(vf.Name); dup {
			return nil, c.fail(fmt.Sprintf("variant(%q)", vd.Name), "variant declared twice", nil)
		}
		p.Variants = append(p.Variants, *vf)
	}
	// Variant guards may only mention variants declared by this package.
	for _, vf := range p.Variants {
		if err := c.checkOwnVariants(p, vf.When, fmt.Sprintf("variant(%q, when=%q)", vf.Name, vf.When.Source)); err != nil {
			return nil, err
		}
	}

	for i, dd := range def.DependsOn {
		directive := fmt.Sprintf("depends_on(%q)", dd.Spec)
		ds, err := spec.Parse(dd.Spec)
		if err != nil {
			return nil, c.fail(directive, "unparseable spec", err)
		}
		if ds.IsAnonymous() {
			return nil, c.fail(directive, "dependency needs a package name", nil)
		}
		if ds.Name == def.Name {
			return nil, c.fail(directive, "package depends on itself", nil)
		}
		if len(ds.Dependencies()) > 0 {
			return nil, c.fail(directive, "dependency constraints cannot contain '^'", nil)
		}
		types, err := spec.ParseDepTypes(dd.Type)
		if err != nil {
			return nil, c.fail(directive, "invalid type", err)
		}
		when, err := c.guard(p, directive, dd.When)
		if err != nil {
			return nil, err
		}
		p.Dependencies = append(p.Dependencies, DependencyFact{
			Spec: ds, Types: types, When: when, Index: i, Source: dd.Spec,
		})
	}

	for _, pd := range def.Provides {
		directive := fmt.Sprintf("provides(%q)", pd.Spec)
		ps, err := spec.Parse(pd.Spec)
		if err != nil {
			return nil, c.fail(directive, "unparseable spec", err)
		}
		if ps.IsAnonymous() || ps.Name == def.Name {
			return nil, c.fail(directive, "provided virtual needs a distinct name", nil)
		}
		when, err := c.guard(p, directive, pd.When)
		if err != nil {
			return nil, err
		}
		p.Provides = append(p.Provides, ProvidesFact{Virtual: ps.Name, Versions: ps.Versions, When: when})
	}

	for _, cd := range def.Conflicts {
		directive := fmt.Sprintf("conflicts(%q)", cd.Spec)
		cs, err := spec.Parse(cd.Spec)
		if err != nil {
			return nil, c.fail(directive, "unparseable spec", err)
		}
		if !cs.IsAnonymous() && cs.Name != def.Name {
			return nil, c.fail(directive, "conflict must describe this package", nil)
		}
		cond := Compile(cs)
		if err := c.checkOwnVariants(p, cond, directive); err != nil {
			return nil, err
		}
		when, err := c.guard(p, directive, cd.When)
		if err != nil {
			return nil, err
		}
		msg := cd.Msg
		if msg == "" {
			msg = fmt.Sprintf("%s conflicts with %s", def.Name, cd.Spec)
		}
		p.Conflicts = append(p.Conflicts, ConflictFact{Spec: cond, When: when, Msg: msg, Source: cd.Spec})
	}

	for i, sd := range def.CanSplice {
		directive := fmt.Sprintf("can_splice(%q)", sd.Source)
		src, err := spec.Parse(sd.Source)
		if err != nil {
			return nil, c.fail(directive, "unparseable spec", err)
		}
		if src.IsAnonymous() {
			return nil, c.fail(directive, "splice source needs a package name", nil)
		}
		when := &spec.Spec{}
		if sd.When != "" {
			if when, err = spec.Parse(sd.When); err != nil {
				return nil, c.fail(directive, "unparseable when", err)
			}
		}
		if !when.IsAnonymous() && when.Name != def.Name {
			return nil, c.fail(directive, "when must describe this package", nil)
		}
		for _, name := range sd.MatchVariants.Names {
			if _, ok := p.Variant(name); !ok {
				return nil, c.fail(directive, fmt.Sprintf("match_variants names undeclared variant %q", name), nil)
			}
		}
		if err := c.checkOwnVariants(p, Compile(when), directive); err != nil {
			return nil, err
		}
		p.Splices = append(p.Splices, SpliceFact{Source: src, When: when, MatchVariants: sd.MatchVariants, Index: i})
	}
	return p, nil
}

type compiler struct {
	def *repo.PackageDef
}

func (c *compiler) fail(directive, reason string, cause error) error {
	return &MalformedPackageError{Package: c.def.Name, Directive: directive, Reason: reason, Cause: cause}
}

func (c *compiler) variant(vd repo.VariantDef) (*VariantFact, error) {
	directive := fmt.Sprintf("variant(%q)", vd.Name)
	if vd.Name == "" {
		return nil, c.fail("variant", "variant needs a name", nil)
	}
	if vd.Name == "arch" || vd.Name == "deptypes" || vd.Name == "virtuals" {
		return nil, c.fail(directive, "reserved variant name", nil)
	}
	defaults, err := vd.DefaultValues()
	if err != nil {
		return nil, c.fail(directive, "invalid default", err)
	}
	vf := &VariantFact{Name: vd.Name, Multi: vd.Multi, Description: vd.Description}
	if len(vd.Values) > 0 {
		vf.Values = slices.Clone(vd.Values)
	}
	if len(defaults) == 0 {
		if vf.IsBool() {
			defaults = []string{spec.False}
		} else {
			defaults = []string{vf.Values[0]}
		}
	}
	slices.Sort(defaults)
	vf.Default = slices.Compact(defaults)
	if !vf.Allows(vf.Default) {
		return nil, c.fail(directive, fmt.Sprintf("default %v is not among the allowed values %v", vf.Default, vf.Domain()), nil)
	}
	when, s, err := CompileString(vd.When)
	if err != nil {
		return nil, c.fail(directive, "unparseable when", err)
	}
	if s != nil && len(when.Deps()) > 0 {
		return nil, c.fail(directive, "variant guards cannot test dependencies", nil)
	}
	vf.When = when
	return vf, nil
}

// guard compiles a when= string and checks its own-package references.
func (c *compiler) guard(p *PackageFacts, directive, when string) (*Condition, error) {
	cond, s, err := CompileString(when)
	if err != nil {
		return nil, c.fail(directive, "unparseable when", err)
	}
	if s != nil && !s.IsAnonymous() && s.Name != c.def.Name {
		return nil, c.fail(directive, fmt.Sprintf("when=%q names another package", when), nil)
	}
	if err := c.checkOwnVariants(p, cond, directive); err != nil {
		return nil, err
	}
	return cond, nil
}

func (c *compiler) checkOwnVariants(p *PackageFacts, cond *Condition, directive string) error {
	for _, name := range cond.Variants() {
		if _, ok := p.Variant(name); !ok {
			return c.fail(directive, fmt.Sprintf("references undeclared variant %q", name), nil)
		}
	}
	return nil
}
