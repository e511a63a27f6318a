package facts

import (
	"fmt"
	"maps"
	"slices"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/repo"
	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/version"
)

// VersionFact is one available version. Index is the declaration position.
type VersionFact struct {
	Version    version.Version
	Checksum   string
	Preferred  bool
	Deprecated bool
	Index      int
}

// VariantFact is a variant definition. Values is nil for boolean variants.
type VariantFact struct {
	Name        string
	Default     []string
	Values      []string
	Multi       bool
	When        *Condition
	Description string
}

// IsBool reports whether the variant is boolean.
func (v *VariantFact) IsBool() bool { return v.Values == nil }

// Domain returns every legal single value.
func (v *VariantFact) Domain() []string {
	if v.IsBool() {
		return []string{spec.True, spec.False}
	}
	return v.Values
}

// Allows reports whether values is a legal assignment of the variant.
func (v *VariantFact) Allows(values []string) bool {
	if len(values) == 0 || (!v.Multi && len(values) != 1) {
		return false
	}
	for _, x := range values {
		if !slices.Contains(v.Domain(), x) {
			return false
		}
	}
	return true
}

// DependencyFact is a depends_on declaration.
type DependencyFact struct {
	Spec   *spec.Spec
	Types  spec.DepType
	When   *Condition
	Index  int
	Source string
}

// Name returns the dependency's package or virtual name.
func (d *DependencyFact) Name() string { return d.Spec.Name }

// ProvidesFact is a provides declaration.
type ProvidesFact struct {
	Virtual  string
	Versions version.List
	When     *Condition
}

// ConflictFact is a conflicts declaration. The package cannot be built in a
// configuration where both Spec and When hold.
type ConflictFact struct {
	Spec   *Condition
	When   *Condition
	Msg    string
	Source string
}

// SpliceFact is a can_splice declaration. A node satisfying When may be
// replaced by a built spec satisfying Source, subject to MatchVariants.
type SpliceFact struct {
	Source        *spec.Spec
	When          *spec.Spec
	MatchVariants repo.MatchVariants
	Index         int
}

// PackageFacts are the compiled, read-only rules of one package.
type PackageFacts struct {
	Name          string
	Description   string
	Versions      []VersionFact
	Variants      []VariantFact
	Dependencies  []DependencyFact
	Provides      []ProvidesFact
	Conflicts     []ConflictFact
	Splices       []SpliceFact
	MultiInstance bool
	Digest        string
}

// Variant returns the named variant definition.
func (p *PackageFacts) Variant(name string) (*VariantFact, bool) {
	for i := range p.Variants {
		if p.Variants[i].Name == name {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// Version returns the fact for v.
func (p *PackageFacts) Version(v version.Version) (*VersionFact, bool) {
	for i := range p.Versions {
		if p.Versions[i].Version.Equal(v) {
			return &p.Versions[i], true
		}
	}
	return nil, false
}

// Virtuals returns the virtual names the package can provide.
func (p *PackageFacts) Virtuals() []string {
	var out []string
	for _, pr := range p.Provides {
		if !slices.Contains(out, pr.Virtual) {
			out = append(out, pr.Virtual)
		}
	}
	return out
}

// MalformedPackageError reports a recipe whose declarations are invalid. The
// package is excluded from solving.
type MalformedPackageError struct {
	Package   string
	Directive string
	Reason    string
	Cause     error
}

func (e *MalformedPackageError) Error() string {
	msg := fmt.Sprintf("package %s: %s", e.Package, e.Reason)
	if e.Directive != "" {
		msg = fmt.Sprintf("package %s: %s: %s", e.Package, e.Directive, e.Reason)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *MalformedPackageError) Unwrap() error { return e.Cause }

// ErrorCode maps the error onto MALFORMED_PACKAGE.
func (e *MalformedPackageError) ErrorCode() errors.Code { return errors.ErrCodeMalformedPackage }

// Table is the fact table of a whole repository. It is immutable once
// Extract returns and safe for concurrent readers.
type Table struct {
	packages  map[string]*PackageFacts
	providers map[string][]string
	excluded  map[string]*MalformedPackageError
}

// Package returns the facts of a non-excluded package.
func (t *Table) Package(name string) (*PackageFacts, bool) {
	p, ok := t.packages[name]
	return p, ok
}

// Names returns the usable package names in sorted order.
func (t *Table) Names() []string { return slices.Sorted(maps.Keys(t.packages)) }

// IsVirtual reports whether name is only ever provided, never defined.
func (t *Table) IsVirtual(name string) bool {
	_, isPkg := t.packages[name]
	_, provided := t.providers[name]
	return provided && !isPkg
}

// Providers returns the packages that can provide virtual, ordered by name.
func (t *Table) Providers(virtual string) []string { return slices.Clone(t.providers[virtual]) }

// Virtuals returns every virtual name in sorted order.
func (t *Table) Virtuals() []string { return slices.Sorted(maps.Keys(t.providers)) }

// Excluded returns the malformed packages, keyed by name.
func (t *Table) Excluded() map[string]*MalformedPackageError { return maps.Clone(t.excluded) }

// ExcludedError returns the reason name was excluded, if it was.
func (t *Table) ExcludedError(name string) (*MalformedPackageError, bool) {
	e, ok := t.excluded[name]
	return e, ok
}

// Known reports whether name is a usable package or a virtual.
func (t *Table) Known(name string) bool {
	_, isPkg := t.packages[name]
	return isPkg || t.IsVirtual(name)
}

// ProvidesVirtual reports whether the concrete node n provides virtual,
// evaluating each provides guard against n.
func (t *Table) ProvidesVirtual(n *spec.Spec, virtual string) bool {
	_, ok := t.ProvidedVersions(n, virtual)
	return ok
}

// ProvidedVersions returns the virtual versions n provides, if any.
func (t *Table) ProvidedVersions(n *spec.Spec, virtual string) (version.List, bool) {
	p, ok := t.packages[n.Name]
	if !ok {
		return nil, false
	}
	var out version.List
	found := false
	for _, pr := range p.Provides {
		if pr.Virtual != virtual {
			continue
		}
		if pr.When.Eval(ForSpec(n, t)) == True {
			if pr.Versions.IsAny() {
				return nil, true
			}
			out = append(out, pr.Versions...)
			found = true
		}
	}
	return out, found
}
