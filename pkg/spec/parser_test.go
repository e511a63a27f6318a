package spec

import (
	"testing"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"zlib", "zlib"},
		{"hdf5@1.12: +mpi ^mpich@3:", "hdf5@1.12:+mpi ^mpich@3:"},
		{"foo@1.2: +mpi ^bar@:3.0", "foo@1.2:+mpi ^bar@:3.0"},
		{"mpich@3.0.4%gcc@9 arch=linux-x86_64", "mpich@3.0.4%gcc@9 arch=linux-x86_64"},
		{"mpich %gcc @3", "mpich@3%gcc"},
		{"foo -shared +pic", "foo+pic~shared"},
		{"foo c=y,x shared=true", "foo+shared c=x,y"},
		{"foo ^zlib@1: ^zlib@:2", "foo ^zlib@1:2"},
		{"foo ^[deptypes=build,run] cmake@3:", "foo ^[deptypes=build,run] cmake@3:"},
		{"foo@=1.2", "foo@=1.2"},
		{"foo@:", "foo"},
		{"foo/abcdef", "foo /abcdef"},
		{`foo cflags="-O2"`, "foo cflags=-O2"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got := s.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			again, err := Parse(s.String())
			if err != nil {
				t.Fatalf("reparse %q: %v", s.String(), err)
			}
			if again.String() != s.String() {
				t.Errorf("reparse = %q, want %q", again.String(), s.String())
			}
		})
	}
}

func TestParseAnonymous(t *testing.T) {
	s := MustParse("@2.0.1~a+b")
	if !s.IsAnonymous() {
		t.Fatalf("Name = %q, want anonymous", s.Name)
	}
	if got := s.NodeString(); got != "@2.0.1~a+b" {
		t.Errorf("NodeString() = %q", got)
	}

	dep := MustParse("^pkg-f")
	if !dep.IsAnonymous() || dep.Dependency("pkg-f") == nil {
		t.Errorf("^pkg-f should parse to an anonymous spec with one dependency, got %q", dep)
	}
}

func TestParseEdgeAttributes(t *testing.T) {
	s := MustParse("hdf5 ^[deptypes=link virtuals=mpi] mpich")
	e := s.Dependency("mpich")
	if e == nil {
		t.Fatal("missing mpich edge")
	}
	if e.Types != DepLink {
		t.Errorf("Types = %v, want link", e.Types)
	}
	if e.Virtual != "mpi" {
		t.Errorf("Virtual = %q, want mpi", e.Virtual)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"dangling at", "foo@"},
		{"version twice", "foo@1 @2"},
		{"compiler twice", "foo%gcc %clang"},
		{"compiler without name", "foo %"},
		{"conflicting variant", "foo+a~a"},
		{"conflicting valued variant", "foo c=x c=y"},
		{"dangling caret", "foo ^"},
		{"anonymous dependency", "foo ^@1"},
		{"unclosed edge", "foo ^[deptypes=build"},
		{"unknown deptype", "foo ^[deptypes=install] bar"},
		{"stray bracket", "foo ]"},
		{"unexpected character", "foo $"},
		{"propagation", "foo ++a"},
		{"propagated value", "foo c==x"},
		{"deptypes outside edge", "foo deptypes=build"},
		{"bad version", "foo@1.2:0.1"},
		{"unterminated quote", `foo c="x`},
		{"empty value list", "foo x=,"},
		{"anonymous empty value list", "1=,"},
		{"empty value in list", "foo c=a,,b"},
		{"empty quoted value", `foo c=""`},
		{"conflicting dependency", "foo ^zlib@:1 ^zlib@2:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.input)
			}
			if !errors.Is(err, errors.ErrCodeInvalidSpec) {
				t.Errorf("Parse(%q) error code = %v, want %v", tt.input, errors.GetCode(err), errors.ErrCodeInvalidSpec)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("foo@1.2 $bar")
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("error = %T, want *ParseError", err)
	}
	if pe.Pos != 8 {
		t.Errorf("Pos = %d, want 8", pe.Pos)
	}
}

func TestParseAmbiguous(t *testing.T) {
	_, err := Parse("hdf5 zlib")
	if !errors.Is(err, errors.ErrCodeAmbiguousSpec) {
		t.Fatalf("Parse error = %v, want AMBIGUOUS_SPEC", err)
	}
	ae, ok := err.(*AmbiguousSpecError)
	if !ok || ae.Token != "zlib" {
		t.Errorf("error = %#v, want token zlib", err)
	}
}

func TestParseAll(t *testing.T) {
	specs, err := ParseAll("hdf5+mpi ^mpich@3: zlib@1.2 %gcc")
	if err != nil {
		t.Fatalf("ParseAll error = %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("len = %d, want 2", len(specs))
	}
	if specs[0].String() != "hdf5+mpi ^mpich@3:" {
		t.Errorf("specs[0] = %q", specs[0])
	}
	if specs[1].String() != "zlib@1.2%gcc" {
		t.Errorf("specs[1] = %q", specs[1])
	}

	if _, err := ParseAll("hdf5 +mpi"); err != nil {
		t.Errorf("ParseAll(hdf5 +mpi) error = %v", err)
	}
}
