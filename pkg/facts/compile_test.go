package facts

import (
	"strings"
	"testing"

	"github.com/matzehuels/stacksolve/internal/testrepo"
	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/repo"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

func fixture(t *testing.T, name string) *repo.PackageDef {
	t.Helper()
	for _, d := range testrepo.Defs() {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("no fixture %q", name)
	return nil
}

func mustCompile(t *testing.T, name string) *PackageFacts {
	t.Helper()
	p, err := CompilePackage(fixture(t, name), "")
	if err != nil {
		t.Fatalf("CompilePackage(%s): %v", name, err)
	}
	return p
}

func TestCompilePackage(t *testing.T) {
	p := mustCompile(t, "hdf5")

	if len(p.Versions) != 2 || p.Versions[0].Version.String() != "1.14.3" {
		t.Errorf("versions = %v", p.Versions)
	}
	mpi, ok := p.Variant("mpi")
	if !ok || !mpi.IsBool() || mpi.Default[0] != spec.True {
		t.Errorf("mpi variant = %+v", mpi)
	}
	api, ok := p.Variant("api")
	if !ok || api.IsBool() || api.Default[0] != "default" || len(api.Domain()) != 4 {
		t.Errorf("api variant = %+v", api)
	}
	if len(p.Dependencies) != 3 {
		t.Fatalf("dependencies = %d, want 3", len(p.Dependencies))
	}
	cmake := p.Dependencies[0]
	if cmake.Name() != "cmake" || cmake.Types != spec.DepBuild || !cmake.When.IsAlways() {
		t.Errorf("cmake dependency = %+v", cmake)
	}
	if zlib := p.Dependencies[1]; zlib.Types != spec.DefaultDepTypes {
		t.Errorf("zlib types = %v, want %v", zlib.Types, spec.DefaultDepTypes)
	}
	if mpiDep := p.Dependencies[2]; mpiDep.When.String() != "+mpi" {
		t.Errorf("mpi guard = %q", mpiDep.When)
	}
	if len(p.Conflicts) != 1 || p.Conflicts[0].Msg != "szip does not build with clang" {
		t.Errorf("conflicts = %+v", p.Conflicts)
	}
}

func TestCompileProvidesAndSplices(t *testing.T) {
	mpich := mustCompile(t, "mpich")
	if got := mpich.Virtuals(); len(got) != 1 || got[0] != "mpi" {
		t.Errorf("Virtuals() = %v", got)
	}
	if mpich.Provides[1].Versions.String() != ":1" {
		t.Errorf("provides versions = %s", mpich.Provides[1].Versions)
	}

	mv := mustCompile(t, "manyvariants")
	if len(mv.Splices) != 3 {
		t.Fatalf("splices = %d, want 3", len(mv.Splices))
	}
	if !mv.Splices[0].MatchVariants.All {
		t.Error("first splice should match all variants")
	}
	if got := mv.Splices[1].MatchVariants.Names; len(got) != 2 {
		t.Errorf("second splice match_variants = %v", got)
	}
	if !mv.Splices[2].MatchVariants.IsZero() {
		t.Error("third splice should not match variants")
	}
}

func TestCompileDefaults(t *testing.T) {
	def := &repo.PackageDef{
		Name:     "defaults",
		Versions: []repo.VersionDef{{Version: "1.0"}},
		Variants: []repo.VariantDef{
			{Name: "bare"},
			{Name: "mode", Values: []string{"fast", "safe"}},
			{Name: "langs", Values: []string{"c", "cxx", "fortran"}, Multi: true, Default: "cxx,c"},
		},
	}
	p, err := CompilePackage(def, "")
	if err != nil {
		t.Fatal(err)
	}
	bare, _ := p.Variant("bare")
	mode, _ := p.Variant("mode")
	langs, _ := p.Variant("langs")
	if bare.Default[0] != spec.False {
		t.Errorf("bare default = %v", bare.Default)
	}
	if mode.Default[0] != "fast" {
		t.Errorf("mode default = %v", mode.Default)
	}
	if strings.Join(langs.Default, ",") != "c,cxx" {
		t.Errorf("langs default = %v", langs.Default)
	}
}

func TestCompileMalformed(t *testing.T) {
	tests := []struct {
		name   string
		def    repo.PackageDef
		reason string
	}{
		{
			name:   "no versions",
			def:    repo.PackageDef{Name: "x"},
			reason: "no versions declared",
		},
		{
			name:   "bad version",
			def:    repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1.0$"}}},
			reason: "unparseable version",
		},
		{
			name:   "duplicate version",
			def:    repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1.0"}, {Version: "1.0"}}},
			reason: "version declared twice",
		},
		{
			name: "default outside values",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				Variants: []repo.VariantDef{{Name: "v", Values: []string{"a", "b"}, Default: "c"}}},
			reason: "not among the allowed values",
		},
		{
			name: "two defaults on single-valued variant",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				Variants: []repo.VariantDef{{Name: "v", Values: []string{"a", "b"}, Default: "a,b"}}},
			reason: "not among the allowed values",
		},
		{
			name: "reserved variant",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				Variants: []repo.VariantDef{{Name: "arch"}}},
			reason: "reserved variant name",
		},
		{
			name: "duplicate variant",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				Variants: []repo.VariantDef{{Name: "v"}, {Name: "v"}}},
			reason: "variant declared twice",
		},
		{
			name: "variant guard tests dependency",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				Variants: []repo.VariantDef{{Name: "v", When: "^zlib"}}},
			reason: "cannot test dependencies",
		},
		{
			name: "undeclared variant in guard",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				DependsOn: []repo.DependsOnDef{{Spec: "zlib", When: "+nope"}}},
			reason: `undeclared variant "nope"`,
		},
		{
			name: "anonymous dependency",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				DependsOn: []repo.DependsOnDef{{Spec: "@1.0"}}},
			reason: "needs a package name",
		},
		{
			name: "self dependency",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				DependsOn: []repo.DependsOnDef{{Spec: "x@1"}}},
			reason: "depends on itself",
		},
		{
			name: "nested dependency",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				DependsOn: []repo.DependsOnDef{{Spec: "hdf5 ^zlib"}}},
			reason: "cannot contain '^'",
		},
		{
			name: "bad dependency type",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				DependsOn: []repo.DependsOnDef{{Spec: "zlib", Type: []string{"install"}}}},
			reason: "invalid type",
		},
		{
			name: "guard names another package",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				DependsOn: []repo.DependsOnDef{{Spec: "zlib", When: "hdf5@1:"}}},
			reason: "names another package",
		},
		{
			name: "provides itself",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				Provides: []repo.ProvidesDef{{Spec: "x"}}},
			reason: "distinct name",
		},
		{
			name: "conflict on another package",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				Conflicts: []repo.ConflictDef{{Spec: "zlib@1"}}},
			reason: "must describe this package",
		},
		{
			name: "splice without source name",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				CanSplice: []repo.CanSpliceDef{{Source: "@1"}}},
			reason: "needs a package name",
		},
		{
			name: "splice match_variants undeclared",
			def: repo.PackageDef{Name: "x", Versions: []repo.VersionDef{{Version: "1"}},
				CanSplice: []repo.CanSpliceDef{{Source: "x@1", MatchVariants: repo.MatchVariants{Names: []string{"q"}}}}},
			reason: `undeclared variant "q"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompilePackage(&tt.def, "")
			if err == nil {
				t.Fatal("expected error")
			}
			mpe, ok := err.(*MalformedPackageError)
			if !ok {
				t.Fatalf("error %T is not a MalformedPackageError", err)
			}
			if mpe.Package != tt.def.Name {
				t.Errorf("Package = %q, want %q", mpe.Package, tt.def.Name)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("error %q does not mention %q", err, tt.reason)
			}
			if !errors.Is(err, errors.ErrCodeMalformedPackage) {
				t.Errorf("code = %q, want MALFORMED_PACKAGE", errors.GetCode(err))
			}
		})
	}
}
