package facts

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/stacksolve/internal/testrepo"
	"github.com/matzehuels/stacksolve/pkg/repo"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

func quietOptions() Options {
	return Options{Logger: log.New(io.Discard)}
}

func TestExtract(t *testing.T) {
	table, err := Extract(context.Background(), testrepo.Repository(), quietOptions())
	if err != nil {
		t.Fatal(err)
	}

	excluded := table.Excluded()
	var names []string
	for name := range excluded {
		names = append(names, name)
	}
	if _, ok := excluded["broken-variant"]; !ok {
		t.Errorf("broken-variant not excluded; excluded = %v", names)
	}
	if _, ok := excluded["broken-version"]; !ok {
		t.Errorf("broken-version not excluded; excluded = %v", names)
	}
	if len(excluded) != 2 {
		t.Errorf("excluded = %v, want exactly the two broken fixtures", names)
	}
	if _, ok := table.Package("needs-broken"); !ok {
		t.Error("needs-broken should stay usable; it fails only when solved")
	}

	if diff := cmp.Diff([]string{"mpich", "openmpi"}, table.Providers("mpi")); diff != "" {
		t.Errorf("Providers(mpi) mismatch (-want +got):\n%s", diff)
	}
	if !table.IsVirtual("mpi") || table.IsVirtual("zlib") {
		t.Error("IsVirtual misclassifies mpi or zlib")
	}
	if !table.Known("mpi") || table.Known("nonexistent") {
		t.Error("Known misclassifies mpi or nonexistent")
	}
	if got := table.Virtuals(); len(got) != 1 || got[0] != "mpi" {
		t.Errorf("Virtuals() = %v", got)
	}
}

func TestExtractProvidedVersions(t *testing.T) {
	table, err := Extract(context.Background(), testrepo.Repository(), quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		node string
		want string
		ok   bool
	}{
		{"mpich@=3.0.4", ":3", true},
		{"mpich@=1.0", ":1", true},
		{"openmpi@=4.1.6", ":3", true},
		{"zlib@=1.3", "", false},
	}
	for _, tt := range tests {
		got, ok := table.ProvidedVersions(spec.MustParse(tt.node), "mpi")
		if ok != tt.ok {
			t.Errorf("ProvidedVersions(%s) ok = %v, want %v", tt.node, ok, tt.ok)
			continue
		}
		if ok && got.String() != tt.want {
			t.Errorf("ProvidedVersions(%s) = %s, want %s", tt.node, got, tt.want)
		}
	}
}

func TestExtractBrokenRecipeFile(t *testing.T) {
	r, err := repo.Load("../repo/testdata/packages")
	if err != nil {
		t.Fatal(err)
	}
	table, err := Extract(context.Background(), r, quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	mpe, ok := table.ExcludedError("broken")
	if !ok {
		t.Fatal("broken.toml should be excluded")
	}
	if mpe.Cause == nil {
		t.Error("decode failure should be kept as the cause")
	}
	if _, ok := table.Package("zlib"); !ok {
		t.Error("zlib should be usable")
	}
	// libxml2 needs cmake, which this directory does not define.
	if _, ok := table.ExcludedError("libxml2"); !ok {
		t.Error("libxml2 should be excluded for its unknown dependency")
	}
	// manyvariants matches on variant d, which it never declares.
	if _, ok := table.ExcludedError("manyvariants"); !ok {
		t.Error("manyvariants should be excluded")
	}
}

func TestExtractCascadesUnknownDependencies(t *testing.T) {
	defs := []*repo.PackageDef{
		{Name: "a", Versions: []repo.VersionDef{{Version: "1"}}, DependsOn: []repo.DependsOnDef{{Spec: "b"}}},
		{Name: "b", Versions: []repo.VersionDef{{Version: "1"}}, DependsOn: []repo.DependsOnDef{{Spec: "missing"}}},
		{Name: "c", Versions: []repo.VersionDef{{Version: "1"}}, DependsOn: []repo.DependsOnDef{{Spec: "a", When: "^nowhere"}}},
	}
	table, err := Extract(context.Background(), repo.MustNew(defs...), quietOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := table.ExcludedError("b"); !ok {
		t.Error("b depends on an unknown package and should be excluded")
	}
	if _, ok := table.Package("a"); !ok {
		t.Error("a depends on excluded b and should stay usable")
	}
	if _, ok := table.ExcludedError("c"); !ok {
		t.Error("c guards on an unknown package and should be excluded")
	}
}

func TestExtractCache(t *testing.T) {
	cache, err := NewCache(0)
	if err != nil {
		t.Fatal(err)
	}
	r := testrepo.Repository()
	opts := quietOptions()
	opts.Cache = cache
	opts.Workers = 2

	first, err := Extract(context.Background(), r, opts)
	if err != nil {
		t.Fatal(err)
	}
	if cache.Len() < len(first.Names()) {
		t.Errorf("cache holds %d packages, want at least %d", cache.Len(), len(first.Names()))
	}
	second, err := Extract(context.Background(), r, opts)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := first.Package("hdf5")
	b, _ := second.Package("hdf5")
	if a != b {
		t.Error("second extraction should reuse cached facts")
	}
}

func TestExtractCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Extract(ctx, testrepo.Repository(), quietOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
