package facts

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stacksolve/pkg/observability"
	"github.com/matzehuels/stacksolve/pkg/repo"
)

// Cache holds compiled package facts keyed by recipe digest. PackageFacts are
// never modified after compilation, so cached entries are shared freely
// between concurrent extractions.
type Cache struct {
	entries *lru.Cache[string, *PackageFacts]
}

// DefaultCacheSize is the number of compiled packages a Cache keeps.
const DefaultCacheSize = 4096

// NewCache creates a cache holding up to size compiled packages.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *PackageFacts](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Len returns the number of cached packages.
func (c *Cache) Len() int { return c.entries.Len() }

func (c *Cache) get(digest string) (*PackageFacts, bool) {
	if c == nil || digest == "" {
		return nil, false
	}
	return c.entries.Get(digest)
}

func (c *Cache) add(p *PackageFacts) {
	if c == nil || p.Digest == "" {
		return
	}
	c.entries.Add(p.Digest, p)
}

// Options configures Extract.
type Options struct {
	// Workers bounds the number of packages compiled concurrently. Zero means
	// GOMAXPROCS.
	Workers int
	// Cache, when set, is consulted before compiling a package.
	Cache *Cache
	// Logger receives per-package exclusion warnings.
	Logger *log.Logger
}

// Extract compiles every recipe of r into a fact table.
//
// Packages are compiled concurrently, then merged, then validated against
// each other in a single sequential pass: dependencies must name a known
// package or virtual and may only test variants their target declares.
// Packages failing either step are excluded and reported in Table.Excluded;
// extraction itself fails only on context cancellation.
func Extract(ctx context.Context, r *repo.Repository, opts Options) (*Table, error) {
	start := time.Now()
	hooks := observability.Concretize()
	hooks.OnExtractStart(ctx, r.Len())

	names := r.Names()
	compiled := make([]*PackageFacts, len(names))
	failures := make([]error, len(names))
	hits := make([]bool, len(names))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			def, _ := r.Get(name)
			digest := r.Digest(name)
			if p, ok := opts.Cache.get(digest); ok {
				compiled[i], hits[i] = p, true
				return nil
			}
			p, err := CompilePackage(def, digest)
			if err != nil {
				failures[i] = err
				return nil
			}
			opts.Cache.add(p)
			compiled[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		hooks.OnExtractComplete(ctx, 0, 0, time.Since(start), err)
		return nil, err
	}

	t := &Table{
		packages:  make(map[string]*PackageFacts, len(names)),
		providers: make(map[string][]string),
		excluded:  make(map[string]*MalformedPackageError),
	}
	for name, err := range r.Broken() {
		t.excluded[name] = &MalformedPackageError{Package: name, Reason: "recipe cannot be decoded", Cause: err}
	}
	for i, name := range names {
		if failures[i] != nil {
			var mpe *MalformedPackageError
			if !errors.As(failures[i], &mpe) {
				mpe = &MalformedPackageError{Package: name, Reason: "compile", Cause: failures[i]}
			}
			t.excluded[name] = mpe
			continue
		}
		t.packages[name] = compiled[i]
	}
	t.validate()
	t.indexProviders()

	cached := 0
	for _, h := range hits {
		if h {
			cached++
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	for _, name := range slices.Sorted(maps.Keys(t.excluded)) {
		logger.Warn("excluding malformed package", "package", name, "reason", t.excluded[name].Error())
	}
	logger.Debug("extracted package facts",
		"packages", len(t.packages),
		"excluded", len(t.excluded),
		"cached", cached,
		"duration", time.Since(start).Round(time.Millisecond))
	hooks.OnExtractComplete(ctx, len(t.packages), len(t.excluded), time.Since(start), nil)
	return t, nil
}

// validate checks cross-package references. Excluding a package can make a
// dependency on it unknown, so the pass runs to a fixpoint.
func (t *Table) validate() {
	for {
		t.indexProviders()
		changed := false
		for _, name := range slices.Sorted(maps.Keys(t.packages)) {
			if err := t.checkReferences(t.packages[name]); err != nil {
				t.excluded[name] = err
				delete(t.packages, name)
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func (t *Table) checkReferences(p *PackageFacts) *MalformedPackageError {
	for _, d := range p.Dependencies {
		directive := fmt.Sprintf("depends_on(%q)", d.Source)
		if !t.Known(d.Name()) {
			if _, excluded := t.excluded[d.Name()]; !excluded {
				return &MalformedPackageError{Package: p.Name, Directive: directive, Reason: fmt.Sprintf("unknown dependency %q", d.Name())}
			}
			// Depending on an excluded package is legal; solving fails
			// only if the dependency is actually needed.
			continue
		}
		if err := t.checkVariants(p.Name, directive, d.Name(), d.Spec.VariantNames()); err != nil {
			return err
		}
		for _, dep := range d.When.Deps() {
			if !t.Known(dep) {
				if _, excluded := t.excluded[dep]; !excluded {
					return &MalformedPackageError{Package: p.Name, Directive: directive, Reason: fmt.Sprintf("when= references unknown package %q", dep)}
				}
			}
		}
		if err := t.checkGuardVariants(p.Name, directive, d.When); err != nil {
			return err
		}
	}
	for _, c := range p.Conflicts {
		directive := fmt.Sprintf("conflicts(%q)", c.Source)
		if err := t.checkGuardVariants(p.Name, directive, c.Spec); err != nil {
			return err
		}
		if err := t.checkGuardVariants(p.Name, directive, c.When); err != nil {
			return err
		}
	}
	return nil
}

// checkGuardVariants checks variant tests on dependencies inside a guard.
func (t *Table) checkGuardVariants(pkg, directive string, c *Condition) *MalformedPackageError {
	if c == nil {
		return nil
	}
	switch c.Kind {
	case CondDependsOn:
		if err := t.checkVariants(pkg, directive, c.Dep, c.Node.Variants()); err != nil {
			return err
		}
	case CondAll:
		for _, ch := range c.Children {
			if err := t.checkGuardVariants(pkg, directive, ch); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Table) checkVariants(pkg, directive, target string, variants []string) *MalformedPackageError {
	tp, ok := t.packages[target]
	if !ok {
		return nil
	}
	for _, v := range variants {
		if _, ok := tp.Variant(v); !ok {
			return &MalformedPackageError{
				Package:   pkg,
				Directive: directive,
				Reason:    fmt.Sprintf("references undeclared variant %q of %s", v, target),
			}
		}
	}
	return nil
}

func (t *Table) indexProviders() {
	t.providers = make(map[string][]string)
	for _, name := range slices.Sorted(maps.Keys(t.packages)) {
		for _, v := range t.packages[name].Virtuals() {
			t.providers[v] = append(t.providers[v], name)
		}
	}
}

// NewTable builds a table from already compiled packages. It runs the same
// cross-package validation as Extract.
func NewTable(pkgs ...*PackageFacts) *Table {
	t := &Table{
		packages: make(map[string]*PackageFacts, len(pkgs)),
		excluded: make(map[string]*MalformedPackageError),
	}
	for _, p := range pkgs {
		t.packages[p.Name] = p
	}
	t.validate()
	t.indexProviders()
	return t
}
