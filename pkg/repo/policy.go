package repo

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/version"
)

// =============================================================================
// splice.yaml
// =============================================================================

// SpliceEntry is one explicit splice: nodes satisfying Target are replaced
// by the installed spec satisfying Replacement.
type SpliceEntry struct {
	Target      string `yaml:"target" json:"target"`
	Replacement string `yaml:"replacement" json:"replacement"`
	Transitive  bool   `yaml:"transitive" json:"transitive"`

	TargetSpec      *spec.Spec `yaml:"-" json:"-"`
	ReplacementSpec *spec.Spec `yaml:"-" json:"-"`
}

// SplicePolicy is the decoded splice.yaml file.
type SplicePolicy struct {
	Splice []SpliceEntry `yaml:"splice" json:"splice"`
}

// ParseSplicePolicy decodes and validates splice.yaml content. Both target
// and replacement are required and must parse as specs.
func ParseSplicePolicy(data []byte) (*SplicePolicy, error) {
	var p SplicePolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPolicy, err, "decode splice policy")
	}
	for i := range p.Splice {
		e := &p.Splice[i]
		if e.Target == "" {
			return nil, errors.New(errors.ErrCodeInvalidPolicy, "splice[%d]: target is required", i)
		}
		if e.Replacement == "" {
			return nil, errors.New(errors.ErrCodeInvalidPolicy, "splice[%d]: replacement is required", i)
		}
		t, err := spec.Parse(e.Target)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPolicy, err, "splice[%d]: target", i)
		}
		r, err := spec.Parse(e.Replacement)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPolicy, err, "splice[%d]: replacement", i)
		}
		e.TargetSpec, e.ReplacementSpec = t, r
	}
	return &p, nil
}

// LoadSplicePolicy reads a splice.yaml file.
func LoadSplicePolicy(path string) (*SplicePolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", path)
	}
	return ParseSplicePolicy(data)
}

// =============================================================================
// versions.yaml
// =============================================================================

// VersionOverride is one entry of versions.yaml. Checksum is required; any
// other keys are kept as opaque extra properties.
type VersionOverride struct {
	Checksum string
	Extra    map[string]any
}

// VersionOverrides maps package name to version string to override.
type VersionOverrides map[string]map[string]VersionOverride

// ParseVersionOverrides decodes and validates versions.yaml content.
func ParseVersionOverrides(data []byte) (VersionOverrides, error) {
	var raw map[string]map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPolicy, err, "decode version overrides")
	}
	out := make(VersionOverrides, len(raw))
	for pkg, versions := range raw {
		out[pkg] = make(map[string]VersionOverride, len(versions))
		for v, props := range versions {
			if _, err := version.Parse(v); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidPolicy, err, "%s: version %q", pkg, v)
			}
			sum, _ := props["checksum"].(string)
			if sum == "" {
				return nil, errors.New(errors.ErrCodeInvalidPolicy, "%s@%s: checksum is required", pkg, v)
			}
			extra := make(map[string]any)
			for k, x := range props {
				if k != "checksum" {
					extra[k] = x
				}
			}
			out[pkg][v] = VersionOverride{Checksum: sum, Extra: extra}
		}
	}
	return out, nil
}

// LoadVersionOverrides reads a versions.yaml file.
func LoadVersionOverrides(path string) (VersionOverrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", path)
	}
	return ParseVersionOverrides(data)
}

// WithVersionOverrides returns a new repository in which the overrides
// replace the checksums of declared versions and add undeclared ones. The
// receiver is left untouched. Overrides for unknown packages are an error.
func (r *Repository) WithVersionOverrides(o VersionOverrides) (*Repository, error) {
	out := &Repository{
		packages: make(map[string]*PackageDef, len(r.packages)),
		digests:  make(map[string]string, len(r.packages)),
		broken:   r.Broken(),
	}
	for name, def := range r.packages {
		versions, ok := o[name]
		if !ok {
			out.packages[name] = def
			out.digests[name] = r.digests[name]
			continue
		}
		cp := *def
		cp.Versions = slices.Clone(def.Versions)
		for _, v := range sortedKeys(versions) {
			ov := versions[v]
			idx := slices.IndexFunc(cp.Versions, func(d VersionDef) bool { return d.Version == v })
			if idx < 0 {
				cp.Versions = append(cp.Versions, VersionDef{Version: v})
				idx = len(cp.Versions) - 1
			}
			cp.Versions[idx].SHA256 = ""
			cp.Versions[idx].Checksum = ov.Checksum
			cp.Versions[idx].Extra = ov.Extra
		}
		out.add(&cp)
	}
	for name := range o {
		if _, ok := r.packages[name]; !ok {
			return nil, errors.New(errors.ErrCodeInvalidPolicy, "version overrides for unknown package %s", name)
		}
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// String summarizes the policy for logs.
func (p *SplicePolicy) String() string {
	return fmt.Sprintf("%d explicit splices", len(p.Splice))
}
