// Package repo loads package recipes and the policy files that accompany
// them.
//
// A [Repository] is the package universe handed to fact extraction. It is
// built once, never modified, and passed explicitly to every stage so that
// independent concretization requests cannot interfere with each other.
//
// Recipes are structured metadata. Each package lives in one of
//
//	<dir>/<name>.toml
//	<dir>/<name>.yaml
//	<dir>/<name>/package.toml
//	<dir>/<name>/package.yaml
//
// A recipe that cannot be decoded does not abort loading. It is recorded in
// [Repository.Broken] so that fact extraction can report it as a malformed
// package and exclude it from solving.
package repo

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/stacksolve/pkg/cache"
	"github.com/matzehuels/stacksolve/pkg/errors"
)

// Repository is an immutable set of package recipes keyed by name.
type Repository struct {
	packages map[string]*PackageDef
	digests  map[string]string
	broken   map[string]error
}

// New builds a repository from in-memory definitions. Duplicate names are an
// error.
func New(defs ...*PackageDef) (*Repository, error) {
	r := &Repository{
		packages: make(map[string]*PackageDef, len(defs)),
		digests:  make(map[string]string, len(defs)),
		broken:   make(map[string]error),
	}
	for _, d := range defs {
		if err := errors.ValidatePackageName(d.Name); err != nil {
			return nil, err
		}
		if _, dup := r.packages[d.Name]; dup {
			return nil, errors.New(errors.ErrCodeInvalidPackage, "package %s defined twice", d.Name)
		}
		r.add(d)
	}
	return r, nil
}

// MustNew is like New but panics on error.
func MustNew(defs ...*PackageDef) *Repository {
	r, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Repository) add(d *PackageDef) {
	r.packages[d.Name] = d
	data, _ := json.Marshal(d)
	r.digests[d.Name] = cache.Hash(data)
}

// Load reads every recipe under the given directories. When the same package
// appears in several directories the first one wins.
func Load(dirs ...string) (*Repository, error) {
	r := &Repository{
		packages: make(map[string]*PackageDef),
		digests:  make(map[string]string),
		broken:   make(map[string]error),
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read repository %s", dir)
		}
		for _, e := range entries {
			name, path := recipePath(dir, e)
			if path == "" {
				continue
			}
			if _, seen := r.packages[name]; seen {
				continue
			}
			if _, seen := r.broken[name]; seen {
				continue
			}
			def, err := ReadRecipe(path)
			if err != nil {
				r.broken[name] = err
				continue
			}
			if def.Name == "" {
				def.Name = name
			}
			if def.Name != name {
				r.broken[name] = errors.New(errors.ErrCodeMalformedPackage, "%s declares name %q", path, def.Name)
				continue
			}
			r.add(def)
		}
	}
	return r, nil
}

// recipePath maps a directory entry to its package name and recipe file.
func recipePath(dir string, e os.DirEntry) (name, path string) {
	if e.IsDir() {
		for _, f := range []string{"package.toml", "package.yaml", "package.yml"} {
			p := filepath.Join(dir, e.Name(), f)
			if _, err := os.Stat(p); err == nil {
				return e.Name(), p
			}
		}
		return "", ""
	}
	ext := filepath.Ext(e.Name())
	switch ext {
	case ".toml", ".yaml", ".yml":
		return strings.TrimSuffix(e.Name(), ext), filepath.Join(dir, e.Name())
	}
	return "", ""
}

// ReadRecipe decodes a single recipe file, choosing the format by extension.
func ReadRecipe(path string) (*PackageDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeRecipe(data, filepath.Ext(path))
}

// DecodeRecipe decodes recipe bytes in the format named by ext (".toml",
// ".yaml" or ".yml").
func DecodeRecipe(data []byte, ext string) (*PackageDef, error) {
	var def PackageDef
	switch ext {
	case ".toml":
		if err := toml.Unmarshal(data, &def); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMalformedPackage, err, "decode recipe")
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMalformedPackage, err, "decode recipe")
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported recipe format %q", ext)
	}
	return &def, nil
}

// Get returns the named recipe.
func (r *Repository) Get(name string) (*PackageDef, bool) {
	d, ok := r.packages[name]
	return d, ok
}

// Has reports whether the repository has a decodable recipe for name.
func (r *Repository) Has(name string) bool {
	_, ok := r.packages[name]
	return ok
}

// Names returns the package names in sorted order.
func (r *Repository) Names() []string {
	return slices.Sorted(maps.Keys(r.packages))
}

// Len returns the number of decodable recipes.
func (r *Repository) Len() int { return len(r.packages) }

// Digest returns a content hash of the named recipe, used to key compiled
// facts.
func (r *Repository) Digest(name string) string { return r.digests[name] }

// Broken returns the recipes that failed to decode, keyed by package name.
func (r *Repository) Broken() map[string]error { return maps.Clone(r.broken) }
