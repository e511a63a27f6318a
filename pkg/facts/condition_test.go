package facts

import (
	"testing"

	"github.com/matzehuels/stacksolve/pkg/spec"
)

func TestConditionEval(t *testing.T) {
	node := spec.MustParse("hdf5@=1.14.3%gcc@=13.2.0+mpi~szip api=v112 arch=linux-x86_64 ^zlib@=1.3+shared ^mpich@=3.0.4")

	tests := []struct {
		when string
		want Truth
	}{
		{"", True},
		{"@1.14:", True},
		{"@:1.12", False},
		{"@1.14.3", True},
		{"+mpi", True},
		{"~mpi", False},
		{"~szip", True},
		{"api=v112", True},
		{"api=v110", False},
		{"%gcc", True},
		{"%gcc@13:", True},
		{"%clang", False},
		{"arch=linux-x86_64", True},
		{"arch=darwin-aarch64", False},
		{"+mpi ^zlib", True},
		{"^zlib@1.3", True},
		{"^zlib@:1.2", False},
		{"^zlib~shared", False},
		{"^openssl", False},
		{"@1.14: +mpi ^mpich@3:", True},
		{"+mpi ^openssl", False},
	}
	for _, tt := range tests {
		t.Run(tt.when, func(t *testing.T) {
			c, _, err := CompileString(tt.when)
			if err != nil {
				t.Fatalf("CompileString(%q): %v", tt.when, err)
			}
			if got := c.Eval(ForSpec(node, nil)); got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.when, got, tt.want)
			}
		})
	}
}

func TestConditionEvalVirtual(t *testing.T) {
	table := NewTable(mustCompile(t, "mpich"), mustCompile(t, "hdf5"), mustCompile(t, "zlib"), mustCompile(t, "cmake"))
	node := spec.MustParse("hdf5@=1.14.3+mpi ^mpich@=3.0.4")

	c, _, err := CompileString("^mpi")
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Eval(ForSpec(node, table)); got != True {
		t.Errorf("^mpi via mpich = %v, want true", got)
	}
	if got := c.Eval(ForSpec(node, nil)); got != False {
		t.Errorf("^mpi without table = %v, want false", got)
	}
}

func TestKleeneConjunction(t *testing.T) {
	tests := []struct {
		a, b, want Truth
	}{
		{True, True, True},
		{True, Unknown, Unknown},
		{Unknown, False, False},
		{False, True, False},
		{Unknown, Unknown, Unknown},
	}
	for _, tt := range tests {
		if got := and(tt.a, tt.b); got != tt.want {
			t.Errorf("and(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

type unknownDeps struct{ n *spec.Spec }

func (u unknownDeps) Node() *spec.Spec                  { return u.n }
func (u unknownDeps) Reaches(string) (Subject, Truth) { return nil, Unknown }

func TestConditionUnknownWhileUndecided(t *testing.T) {
	c, _, err := CompileString("+mpi ^pkg-f")
	if err != nil {
		t.Fatal(err)
	}
	s := unknownDeps{n: spec.MustParse("x+mpi")}
	if got := c.Eval(s); got != Unknown {
		t.Errorf("Eval = %v, want unknown", got)
	}
	s = unknownDeps{n: spec.MustParse("x~mpi")}
	if got := c.Eval(s); got != False {
		t.Errorf("Eval with failing node test = %v, want false", got)
	}
}

func TestConditionIntrospection(t *testing.T) {
	c, s, err := CompileString("@2: +a c=v1 ^zlib+shared ^cmake")
	if err != nil {
		t.Fatal(err)
	}
	if s == nil || !s.IsAnonymous() {
		t.Fatalf("guard spec = %v, want anonymous", s)
	}
	if got := c.Deps(); len(got) != 2 || got[0] != "cmake" || got[1] != "zlib" {
		t.Errorf("Deps() = %v, want [cmake zlib]", got)
	}
	if got := c.Variants(); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("Variants() = %v, want [a c]", got)
	}
	if c.String() != "@2: +a c=v1 ^zlib+shared ^cmake" {
		t.Errorf("String() = %q", c.String())
	}
	if !Always.IsAlways() || Always.String() != "always" {
		t.Error("Always should be trivially true")
	}
}
