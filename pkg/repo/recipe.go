package repo

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// PackageDef is the structured metadata of one package recipe, exactly as
// decoded from its TOML or YAML file. It is validated and compiled by package
// facts; repo only decodes it.
type PackageDef struct {
	Name          string         `toml:"name" yaml:"name" json:"name"`
	Description   string         `toml:"description" yaml:"description" json:"description,omitempty"`
	MultiInstance bool           `toml:"multi_instance" yaml:"multi_instance" json:"multi_instance,omitempty"`
	Versions      []VersionDef   `toml:"versions" yaml:"versions" json:"versions"`
	Variants      []VariantDef   `toml:"variants" yaml:"variants" json:"variants,omitempty"`
	DependsOn     []DependsOnDef `toml:"depends_on" yaml:"depends_on" json:"depends_on,omitempty"`
	Provides      []ProvidesDef  `toml:"provides" yaml:"provides" json:"provides,omitempty"`
	Conflicts     []ConflictDef  `toml:"conflicts" yaml:"conflicts" json:"conflicts,omitempty"`
	CanSplice     []CanSpliceDef `toml:"can_splice" yaml:"can_splice" json:"can_splice,omitempty"`
}

// VersionDef declares one available version. A version is fetched either by
// checksum or from a VCS reference.
type VersionDef struct {
	Version    string         `toml:"version" yaml:"version" json:"version"`
	SHA256     string         `toml:"sha256" yaml:"sha256" json:"sha256,omitempty"`
	Checksum   string         `toml:"checksum" yaml:"checksum" json:"checksum,omitempty"`
	Git        string         `toml:"git" yaml:"git" json:"git,omitempty"`
	Commit     string         `toml:"commit" yaml:"commit" json:"commit,omitempty"`
	Branch     string         `toml:"branch" yaml:"branch" json:"branch,omitempty"`
	Preferred  bool           `toml:"preferred" yaml:"preferred" json:"preferred,omitempty"`
	Deprecated bool           `toml:"deprecated" yaml:"deprecated" json:"deprecated,omitempty"`
	Extra      map[string]any `toml:"-" yaml:"-" json:"extra,omitempty"`
}

// Digest returns the checksum of the version, whichever field carries it.
func (v VersionDef) Digest() string {
	if v.SHA256 != "" {
		return v.SHA256
	}
	return v.Checksum
}

// VariantDef declares a build option. Default holds a bool for boolean
// variants and a string (or list of strings, for multi-valued variants)
// otherwise.
type VariantDef struct {
	Name        string   `toml:"name" yaml:"name" json:"name"`
	Default     any      `toml:"default" yaml:"default" json:"default,omitempty"`
	Values      []string `toml:"values" yaml:"values" json:"values,omitempty"`
	Multi       bool     `toml:"multi" yaml:"multi" json:"multi,omitempty"`
	When        string   `toml:"when" yaml:"when" json:"when,omitempty"`
	Description string   `toml:"description" yaml:"description" json:"description,omitempty"`
}

// DefaultValues normalizes Default into a list of strings. Booleans become
// "true" / "false"; a comma-separated string becomes several values.
func (v VariantDef) DefaultValues() ([]string, error) {
	switch d := v.Default.(type) {
	case nil:
		return nil, nil
	case bool:
		return []string{fmt.Sprint(d)}, nil
	case string:
		if d == "" {
			return nil, nil
		}
		return strings.Split(d, ","), nil
	case int64, int, float64:
		return []string{fmt.Sprint(d)}, nil
	case []any:
		out := make([]string, 0, len(d))
		for _, x := range d {
			out = append(out, fmt.Sprint(x))
		}
		return out, nil
	case []string:
		return slices.Clone(d), nil
	}
	return nil, fmt.Errorf("unsupported default %v (%T)", v.Default, v.Default)
}

// DependsOnDef declares a dependency, active when When holds.
type DependsOnDef struct {
	Spec string   `toml:"spec" yaml:"spec" json:"spec"`
	When string   `toml:"when" yaml:"when" json:"when,omitempty"`
	Type []string `toml:"type" yaml:"type" json:"type,omitempty"`
}

// ProvidesDef declares that the package implements a virtual package.
type ProvidesDef struct {
	Spec string `toml:"spec" yaml:"spec" json:"spec"`
	When string `toml:"when" yaml:"when" json:"when,omitempty"`
}

// ConflictDef declares a configuration the package cannot be built in.
type ConflictDef struct {
	Spec string `toml:"spec" yaml:"spec" json:"spec"`
	When string `toml:"when" yaml:"when" json:"when,omitempty"`
	Msg  string `toml:"msg" yaml:"msg" json:"msg,omitempty"`
}

// CanSpliceDef declares that a node of this package satisfying When may be
// replaced by an already-built spec satisfying Source.
type CanSpliceDef struct {
	Source        string        `toml:"source" yaml:"source" json:"source"`
	When          string        `toml:"when" yaml:"when" json:"when,omitempty"`
	MatchVariants MatchVariants `toml:"match_variants" yaml:"match_variants" json:"match_variants"`
}

// MatchVariants is the variant policy of a splice rule: "*" (all shared
// variants must agree), an explicit list, or absent (no requirement).
type MatchVariants struct {
	All   bool
	Names []string
}

// IsZero reports whether the policy places no requirement on variants.
func (m MatchVariants) IsZero() bool { return !m.All && len(m.Names) == 0 }

func (m MatchVariants) String() string {
	switch {
	case m.All:
		return "*"
	case len(m.Names) > 0:
		return "[" + strings.Join(m.Names, ",") + "]"
	}
	return "none"
}

func (m *MatchVariants) set(v any) error {
	switch x := v.(type) {
	case nil:
		*m = MatchVariants{}
	case string:
		if x == "*" {
			*m = MatchVariants{All: true}
			return nil
		}
		*m = MatchVariants{Names: []string{x}}
	case []any:
		names := make([]string, 0, len(x))
		for _, n := range x {
			s, ok := n.(string)
			if !ok {
				return fmt.Errorf("match_variants: expected string, got %T", n)
			}
			names = append(names, s)
		}
		*m = MatchVariants{Names: names}
	case []string:
		*m = MatchVariants{Names: slices.Clone(x)}
	default:
		return fmt.Errorf("match_variants: expected \"*\" or a list, got %T", v)
	}
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (m *MatchVariants) UnmarshalTOML(v any) error { return m.set(v) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *MatchVariants) UnmarshalYAML(n *yaml.Node) error {
	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	return m.set(v)
}

// MarshalJSON encodes the policy the way recipes write it.
func (m MatchVariants) MarshalJSON() ([]byte, error) {
	switch {
	case m.All:
		return []byte(`"*"`), nil
	case len(m.Names) == 0:
		return []byte("null"), nil
	}
	var b strings.Builder
	b.WriteString("[")
	for i, n := range m.Names {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%q", n)
	}
	b.WriteString("]")
	return []byte(b.String()), nil
}

// UnmarshalJSON decodes "*", a list of names or null.
func (m *MatchVariants) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return m.set(v)
}
