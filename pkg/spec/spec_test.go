package spec

import (
	"testing"

	"github.com/matzehuels/stacksolve/pkg/version"
)

func TestSatisfies(t *testing.T) {
	tests := []struct {
		spec, constraint string
		want             bool
	}{
		{"mpich@=3.0.4+a", "mpich@:3", true},
		{"mpich@=3.0.4+a", "mpich@3.0.4", true},
		{"mpich@=3.0.4+a", "mpich@:2", false},
		{"mpich@=3.0.4+a", "+a", true},
		{"mpich@=3.0.4+a", "~a", false},
		{"mpich@=3.0.4+a", "openmpi", false},
		{"mpich@=3.0.4", "mpich+a", false},
		{"foo c=x,y", "foo c=x", true},
		{"foo c=x", "foo c=x,y", false},
		{"foo%gcc@=12.1", "foo%gcc@12:", true},
		{"foo%gcc@=12.1", "foo%clang", false},
		{"foo", "foo%gcc", false},
		{"foo arch=linux", "foo arch=darwin", false},
		{"hdf5+mpi ^mpich@=3.0.4", "hdf5 ^mpich@3:", true},
		{"hdf5+mpi ^mpich@=3.0.4", "hdf5 ^mpich@:2", false},
		{"hdf5+mpi ^mpich@=3.0.4", "hdf5 ^openmpi", false},
	}

	for _, tt := range tests {
		t.Run(tt.spec+" sat "+tt.constraint, func(t *testing.T) {
			got := MustParse(tt.spec).Satisfies(MustParse(tt.constraint))
			if got != tt.want {
				t.Errorf("Satisfies() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSatisfiesHashPrefix(t *testing.T) {
	s := MustParse("zlib")
	s.Hash = "abcdefgh"
	if !s.Satisfies(MustParse("zlib/abc")) {
		t.Error("hash prefix should satisfy")
	}
	if s.Satisfies(MustParse("zlib/abd")) {
		t.Error("different hash should not satisfy")
	}
}

func TestIntersects(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"foo@1:3", "foo@2:", true},
		{"foo@:1", "foo@3:", false},
		{"foo+a", "foo~a", false},
		{"foo", "bar", false},
		{"+a", "foo+a", true},
		{"foo c=x", "foo c=y", true},
		{"foo%gcc", "foo%clang", false},
		{"foo ^zlib@:1", "foo ^zlib@2:", false},
		{"foo ^zlib@:1", "foo ^bzip2", true},
	}

	for _, tt := range tests {
		t.Run(tt.a+" & "+tt.b, func(t *testing.T) {
			got := MustParse(tt.a).Intersects(MustParse(tt.b))
			if got != tt.want {
				t.Errorf("Intersects() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConstrain(t *testing.T) {
	s := MustParse("foo@1: ^zlib@1:")
	if err := s.Constrain(MustParse("foo@:3 +a %gcc ^zlib@:2 ^bzip2")); err != nil {
		t.Fatalf("Constrain error = %v", err)
	}
	if got, want := s.String(), "foo@1:3%gcc+a ^bzip2 ^zlib@1:2"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	if err := MustParse("foo+a").Constrain(MustParse("foo~a")); err == nil {
		t.Error("Constrain(+a, ~a) should fail")
	}
	if err := MustParse("foo").Constrain(MustParse("bar")); err == nil {
		t.Error("Constrain(foo, bar) should fail")
	}

	frozen := MustParse("foo")
	frozen.Freeze()
	if err := frozen.Constrain(MustParse("foo+a")); err == nil {
		t.Error("Constrain on frozen spec should fail")
	}
}

func TestCloneIsDeep(t *testing.T) {
	root := New("app")
	shared := New("zlib")
	a := New("a")
	b := New("b")
	root.AddDependency(a, DefaultDepTypes)
	root.AddDependency(b, DefaultDepTypes)
	a.AddDependency(shared, DepLink)
	b.AddDependency(shared, DepLink)

	c := root.Clone()
	ca := c.Dependency("a").Spec
	cb := c.Dependency("b").Spec
	if ca.Dependency("zlib").Spec != cb.Dependency("zlib").Spec {
		t.Error("shared node should stay shared in the clone")
	}
	if ca.Dependency("zlib").Spec == shared {
		t.Error("clone should not alias the original")
	}
	ca.SetVariant(BoolVariant("x", true))
	if _, ok := a.Variant("x"); ok {
		t.Error("mutating the clone changed the original")
	}
}

func TestTraverseOrder(t *testing.T) {
	root := New("app")
	for _, n := range []string{"zlib", "cmake", "mpich"} {
		root.AddDependency(New(n), DefaultDepTypes)
	}
	root.Dependency("mpich").Spec.AddDependency(root.Dependency("zlib").Spec, DepLink)

	var got []string
	root.Traverse(func(s *Spec) bool {
		got = append(got, s.Name)
		return true
	})
	want := []string{"app", "cmake", "mpich", "zlib"}
	if len(got) != len(want) {
		t.Fatalf("Traverse = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Traverse = %v, want %v", got, want)
			break
		}
	}
}

func TestDepTypes(t *testing.T) {
	d, err := ParseDepTypes([]string{"run", "build"})
	if err != nil {
		t.Fatal(err)
	}
	if d.String() != "build,run" {
		t.Errorf("String() = %q, want build,run", d.String())
	}
	if !d.Has(DepBuild) || d.Has(DepLink) {
		t.Errorf("Has mismatch for %v", d)
	}
	if def, _ := ParseDepTypes(nil); def != DefaultDepTypes {
		t.Errorf("default = %v, want %v", def, DefaultDepTypes)
	}
	if _, err := ParseDepTypes([]string{"install"}); err == nil {
		t.Error("unknown type should fail")
	}
}

func TestVersionAccessor(t *testing.T) {
	s := New("zlib")
	s.Versions = version.Exactly(version.MustParse("1.3"))
	if v, ok := s.Version(); !ok || v.String() != "1.3" {
		t.Errorf("Version() = %v, %v", v, ok)
	}
}
