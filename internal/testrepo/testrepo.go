// Package testrepo provides the package universe shared by tests.
//
// It mirrors the mock packages a concretizer is usually exercised against:
// mpi providers, packages with optional and guard-triggered dependencies, a
// package with splice rules, version conflicts and a few malformed recipes.
package testrepo

import (
	"github.com/matzehuels/stacksolve/pkg/repo"
)

// Defs returns fresh copies of every fixture recipe, sorted by name.
func Defs() []*repo.PackageDef {
	return []*repo.PackageDef{
		{
			Name: "broken-variant",
			Versions: []repo.VersionDef{
				{Version: "1.0", SHA256: sum("broken-variant-1.0")},
			},
			DependsOn: []repo.DependsOnDef{{Spec: "zlib+nonexistent"}},
		},
		{
			Name: "broken-version",
			Versions: []repo.VersionDef{
				{Version: "1.0$", SHA256: sum("broken-version-1.0")},
			},
		},
		{
			Name:          "build-tool",
			MultiInstance: true,
			Versions: []repo.VersionDef{
				{Version: "2.0", SHA256: sum("build-tool-2.0")},
				{Version: "1.0", SHA256: sum("build-tool-1.0")},
			},
		},
		{
			Name: "cmake",
			Versions: []repo.VersionDef{
				{Version: "3.27.9", SHA256: sum("cmake-3.27.9")},
				{Version: "3.20.6", SHA256: sum("cmake-3.20.6")},
			},
		},
		{
			Name: "hdf5",
			Versions: []repo.VersionDef{
				{Version: "1.14.3", SHA256: sum("hdf5-1.14.3")},
				{Version: "1.12.2", SHA256: sum("hdf5-1.12.2")},
			},
			Variants: []repo.VariantDef{
				{Name: "mpi", Default: true, Description: "Enable parallel I/O"},
				{Name: "szip", Default: false},
				{Name: "api", Default: "default", Values: []string{"default", "v110", "v112", "v114"}},
			},
			DependsOn: []repo.DependsOnDef{
				{Spec: "cmake@3.18:", Type: []string{"build"}},
				{Spec: "zlib@1.2:"},
				{Spec: "mpi", When: "+mpi"},
			},
			Conflicts: []repo.ConflictDef{
				{Spec: "%clang", When: "+szip", Msg: "szip does not build with clang"},
			},
		},
		{
			Name: "manyvariants",
			Versions: []repo.VersionDef{
				{Version: "2.0.1", SHA256: sum("manyvariants-2.0.1")},
				{Version: "2.0.0", SHA256: sum("manyvariants-2.0.0")},
				{Version: "1.0.1", SHA256: sum("manyvariants-1.0.1")},
				{Version: "1.0.0", SHA256: sum("manyvariants-1.0.0")},
			},
			Variants: []repo.VariantDef{
				{Name: "a", Default: true},
				{Name: "b", Default: false},
				{Name: "c", Default: "v1", Values: []string{"v1", "v2", "v3"}},
				{Name: "d", Default: "v1", Values: []string{"v1", "v2", "v3"}},
			},
			CanSplice: []repo.CanSpliceDef{
				{Source: "manyvariants@1.0.0", When: "@1.0.1", MatchVariants: repo.MatchVariants{All: true}},
				{Source: "manyvariants@2.0.0+a~b", When: "@2.0.1~a+b", MatchVariants: repo.MatchVariants{Names: []string{"c", "d"}}},
				{Source: "manyvariants@2.0.0 c=v1 d=v1", When: "@2.0.1+a+b"},
			},
		},
		{
			Name: "mpich",
			Versions: []repo.VersionDef{
				{Version: "3.0.4", SHA256: sum("mpich-3.0.4")},
				{Version: "3.0.3", SHA256: sum("mpich-3.0.3")},
				{Version: "1.0", SHA256: sum("mpich-1.0")},
			},
			Provides: []repo.ProvidesDef{
				{Spec: "mpi@:3", When: "@3:"},
				{Spec: "mpi@:1", When: "@:1"},
			},
		},
		{
			Name: "needs-broken",
			Versions: []repo.VersionDef{
				{Version: "1.0", SHA256: sum("needs-broken-1.0")},
			},
			DependsOn: []repo.DependsOnDef{{Spec: "broken-variant"}},
		},
		{
			Name: "needs-new-mpich",
			Versions: []repo.VersionDef{
				{Version: "1.0", SHA256: sum("needs-new-mpich-1.0")},
			},
			DependsOn: []repo.DependsOnDef{{Spec: "mpich@3:"}},
		},
		{
			Name: "needs-old-mpich",
			Versions: []repo.VersionDef{
				{Version: "1.0", SHA256: sum("needs-old-mpich-1.0")},
			},
			DependsOn: []repo.DependsOnDef{{Spec: "mpich@:1"}},
		},
		{
			Name: "new-app",
			Versions: []repo.VersionDef{
				{Version: "1.0", SHA256: sum("new-app-1.0")},
			},
			DependsOn: []repo.DependsOnDef{{Spec: "build-tool@2:", Type: []string{"build"}}},
		},
		{
			Name: "old-app",
			Versions: []repo.VersionDef{
				{Version: "1.0", SHA256: sum("old-app-1.0")},
			},
			DependsOn: []repo.DependsOnDef{{Spec: "build-tool@:1", Type: []string{"build"}}},
		},
		{
			Name: "openmpi",
			Versions: []repo.VersionDef{
				{Version: "4.1.6", SHA256: sum("openmpi-4.1.6")},
			},
			Provides:  []repo.ProvidesDef{{Spec: "mpi@:3"}},
			DependsOn: []repo.DependsOnDef{{Spec: "zlib"}},
		},
		{
			Name: "openssl",
			Versions: []repo.VersionDef{
				{Version: "3.2.0", SHA256: sum("openssl-3.2.0"), Deprecated: true},
				{Version: "3.1.4", SHA256: sum("openssl-3.1.4")},
				{Version: "1.1.1w", SHA256: sum("openssl-1.1.1w")},
			},
		},
		{
			Name: "optional-dep-test",
			Versions: []repo.VersionDef{
				{Version: "1.1", SHA256: sum("optional-dep-test-1.1")},
				{Version: "1.0", SHA256: sum("optional-dep-test-1.0")},
			},
			Variants: []repo.VariantDef{
				{Name: "a", Default: false},
				{Name: "f", Default: false},
			},
			DependsOn: []repo.DependsOnDef{
				{Spec: "pkg-a", When: "+a"},
				{Spec: "pkg-f", When: "+f"},
				{Spec: "pkg-g", When: "^pkg-f"},
				{Spec: "mpi", When: "^pkg-g"},
			},
		},
		simple("pkg-a"),
		simple("pkg-f"),
		simple("pkg-g"),
		{
			Name: "zlib",
			Versions: []repo.VersionDef{
				{Version: "1.3", SHA256: sum("zlib-1.3")},
				{Version: "1.2.13", SHA256: sum("zlib-1.2.13")},
			},
			Variants: []repo.VariantDef{
				{Name: "shared", Default: true},
				{Name: "pic", Default: true, When: "~shared"},
			},
		},
	}
}

// Repository returns the fixture universe.
func Repository() *repo.Repository {
	return repo.MustNew(Defs()...)
}

func simple(name string) *repo.PackageDef {
	return &repo.PackageDef{
		Name:     name,
		Versions: []repo.VersionDef{{Version: "1.0", SHA256: sum(name + "-1.0")}},
	}
}

// sum fabricates a stable 64-character checksum for a fixture tarball.
func sum(s string) string {
	const hex = "0123456789abcdef"
	out := make([]byte, 64)
	h := uint32(2166136261)
	for i := range out {
		for j := 0; j < len(s); j++ {
			h ^= uint32(s[j]) + uint32(i)
			h *= 16777619
		}
		out[i] = hex[h%16]
	}
	return string(out)
}
