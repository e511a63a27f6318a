package solver

import (
	"context"
	stderrors "errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/stacksolve/internal/testrepo"
	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/facts"
	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/version"
)

func fixtureTable(t *testing.T) *facts.Table {
	t.Helper()
	table, err := facts.Extract(context.Background(), testrepo.Repository(), facts.Options{Logger: log.New(io.Discard)})
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func problem(t *testing.T, roots ...string) *Problem {
	t.Helper()
	p := &Problem{Facts: fixtureTable(t)}
	for _, r := range roots {
		p.Roots = append(p.Roots, spec.MustParse(r))
	}
	return p
}

func solve(t *testing.T, p *Problem) *Solution {
	t.Helper()
	sol, err := (&Search{Logger: log.New(io.Discard)}).Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve(%v): %v", p.Roots, err)
	}
	checkSound(t, p.Facts, sol)
	return sol
}

func solveErr(t *testing.T, p *Problem) error {
	t.Helper()
	sol, err := (&Search{Logger: log.New(io.Discard)}).Solve(context.Background(), p)
	if err == nil {
		t.Fatalf("Solve(%v) = %s, want error", p.Roots, sol)
	}
	return err
}

// checkSound verifies that exactly the dependencies whose guards hold on the
// final graph are present, and that uniqueness holds.
func checkSound(t *testing.T, table *facts.Table, sol *Solution) {
	t.Helper()
	for _, n := range sol.Nodes {
		pkg, ok := table.Package(n.Name)
		if !ok {
			t.Errorf("%s: not in the fact table", n.Name)
			continue
		}
		if !pkg.MultiInstance && len(sol.NodesNamed(n.Name)) > 1 {
			t.Errorf("%s appears %d times", n.Name, len(sol.NodesNamed(n.Name)))
		}
		if _, ok := n.Version(); !ok {
			t.Errorf("%s: version %s is not concrete", n.Name, n.Versions)
		}
		if sol.Reused[n] {
			continue
		}
		sub := facts.ForSpec(n, table)
		for _, d := range pkg.Dependencies {
			if d.Types == spec.DepTest {
				continue
			}
			holds := d.When.Eval(sub) == facts.True
			present := slices.ContainsFunc(sol.EdgesFrom(n), func(e Edge) bool {
				return e.Child.Name == d.Name() || e.Virtual == d.Name()
			})
			if holds != present {
				t.Errorf("%s: dependency %s (when %s) holds=%v present=%v", n.Name, d.Source, d.When, holds, present)
			}
		}
	}
	for virtual, p := range sol.Providers {
		if !table.ProvidesVirtual(p, virtual) {
			t.Errorf("%s does not provide %s", p.NodeString(), virtual)
		}
	}
}

func versionOf(t *testing.T, n *spec.Spec) string {
	t.Helper()
	if n == nil {
		t.Fatal("node missing")
	}
	v, ok := n.Version()
	if !ok {
		t.Fatalf("%s has no concrete version", n.NodeString())
	}
	return v.String()
}

func TestSolveSingleNode(t *testing.T) {
	sol := solve(t, problem(t, "mpich@3.0.4"))
	if len(sol.Nodes) != 1 || len(sol.Edges) != 0 {
		t.Fatalf("solution = %s, want a single node", sol)
	}
	if got := versionOf(t, sol.Roots[0]); got != "3.0.4" {
		t.Errorf("version = %s, want 3.0.4", got)
	}
	if !sol.Optimal {
		t.Error("Optimal = false")
	}
}

func TestSolveConditionalDependencies(t *testing.T) {
	tests := []struct {
		root string
		want []string
	}{
		{"optional-dep-test", []string{"optional-dep-test"}},
		{"optional-dep-test+a", []string{"optional-dep-test", "pkg-a"}},
		{"optional-dep-test~a", []string{"optional-dep-test"}},
		{"optional-dep-test+f", []string{"mpich", "optional-dep-test", "pkg-f", "pkg-g"}},
		{"optional-dep-test+a+f", []string{"mpich", "optional-dep-test", "pkg-a", "pkg-f", "pkg-g"}},
	}
	for _, tt := range tests {
		t.Run(tt.root, func(t *testing.T) {
			sol := solve(t, problem(t, tt.root))
			if diff := cmp.Diff(tt.want, sol.Names()); diff != "" {
				t.Errorf("names mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSolveDefaults(t *testing.T) {
	sol := solve(t, problem(t, "hdf5"))
	if diff := cmp.Diff([]string{"cmake", "hdf5", "mpich", "zlib"}, sol.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	hdf5 := sol.Roots[0]
	if got := versionOf(t, hdf5); got != "1.14.3" {
		t.Errorf("hdf5 version = %s, want 1.14.3", got)
	}
	if v, _ := hdf5.Variant("mpi"); !v.Equal(spec.BoolVariant("mpi", true)) {
		t.Errorf("hdf5 mpi = %v, want +mpi", v)
	}
	if v, _ := hdf5.Variant("api"); !v.Equal(spec.NewVariant("api", "default")) {
		t.Errorf("hdf5 api = %v, want api=default", v)
	}
	if e := hdf5.Dependency("cmake"); e == nil || e.Types != spec.DepBuild {
		t.Errorf("hdf5 -> cmake edge = %+v, want build only", e)
	}
	if e := hdf5.Dependency("mpich"); e == nil || e.Virtual != "mpi" {
		t.Errorf("hdf5 -> mpich edge = %+v, want virtual mpi", e)
	}
	if p := sol.Providers["mpi"]; p == nil || p.Name != "mpich" {
		t.Errorf("mpi provider = %v, want mpich", p)
	}
	zlib := sol.Node("zlib")
	if _, ok := zlib.Variant("pic"); ok {
		t.Error("zlib+shared should not carry the pic variant")
	}
	if want := (Cost{Packages: 4}); sol.Cost != want {
		t.Errorf("cost = %+v, want %+v", sol.Cost, want)
	}
}

func TestSolveProviders(t *testing.T) {
	tests := []struct {
		name      string
		roots     []string
		providers map[string][]string
		want      string
		cost      int
	}{
		{"default", []string{"hdf5"}, nil, "mpich", 0},
		{"requested below root", []string{"hdf5 ^openmpi"}, nil, "openmpi", 1},
		{"explicit virtual edge", []string{"hdf5 ^[virtuals=mpi] openmpi"}, nil, "openmpi", 1},
		{"policy", []string{"hdf5"}, map[string][]string{"mpi": {"openmpi", "mpich"}}, "openmpi", 0},
		{"virtual root", []string{"mpi"}, nil, "mpich", 0},
		{"versioned virtual", []string{"hdf5 ^mpi@2:"}, nil, "mpich", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := problem(t, tt.roots...)
			p.Policy.Providers = tt.providers
			sol := solve(t, p)
			got := sol.Providers["mpi"]
			if got == nil || got.Name != tt.want {
				t.Fatalf("mpi provider = %v, want %s", got, tt.want)
			}
			if sol.Cost.Providers != tt.cost {
				t.Errorf("provider cost = %d, want %d", sol.Cost.Providers, tt.cost)
			}
		})
	}
}

func TestSolveDisabledVariantDropsDependency(t *testing.T) {
	sol := solve(t, problem(t, "hdf5~mpi"))
	if diff := cmp.Diff([]string{"cmake", "hdf5", "zlib"}, sol.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if len(sol.Providers) != 0 {
		t.Errorf("providers = %v, want none", sol.Providers)
	}
	if sol.Cost.Variants != 0 {
		t.Errorf("variant cost = %d, want 0 for a requested value", sol.Cost.Variants)
	}
}

func TestSolveSharedDependency(t *testing.T) {
	sol := solve(t, problem(t, "hdf5 ^openmpi", "zlib@1.2"))
	if n := len(sol.NodesNamed("zlib")); n != 1 {
		t.Fatalf("zlib appears %d times", n)
	}
	if got := versionOf(t, sol.Node("zlib")); got != "1.2.13" {
		t.Errorf("zlib version = %s, want 1.2.13", got)
	}
	if len(sol.Roots) != 2 {
		t.Errorf("roots = %d, want 2", len(sol.Roots))
	}
}

func TestSolveVersionPreference(t *testing.T) {
	tests := []struct {
		root  string
		order VersionOrder
		want  string
	}{
		{"openssl", Newest, "3.1.4"},
		{"openssl@3.2.0", Newest, "3.2.0"},
		{"openssl@:3.0", Newest, "1.1.1w"},
		{"zlib", Newest, "1.3"},
		{"zlib", Oldest, "1.2.13"},
	}
	for _, tt := range tests {
		t.Run(tt.root+"/"+string(tt.order), func(t *testing.T) {
			p := problem(t, tt.root)
			p.Policy.VersionOrder = tt.order
			sol := solve(t, p)
			if got := versionOf(t, sol.Roots[0]); got != tt.want {
				t.Errorf("version = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSolveCompilers(t *testing.T) {
	gcc := &spec.CompilerSpec{Name: "gcc", Versions: version.MustParseList("=13.2.0")}
	clang := &spec.CompilerSpec{Name: "clang", Versions: version.MustParseList("=17.0.6")}

	p := problem(t, "hdf5%clang~mpi")
	p.Policy.Compilers = []*spec.CompilerSpec{gcc, clang}
	sol := solve(t, p)
	if c := sol.Roots[0].Compiler; c == nil || c.Name != "clang" {
		t.Errorf("hdf5 compiler = %v, want clang", c)
	}
	if c := sol.Node("zlib").Compiler; c == nil || c.Name != "gcc" {
		t.Errorf("zlib compiler = %v, want gcc", c)
	}
	if sol.Cost.Compilers != 1 {
		t.Errorf("compiler cost = %d, want 1", sol.Cost.Compilers)
	}

	p = problem(t, "hdf5+szip~mpi")
	p.Policy.Compilers = []*spec.CompilerSpec{clang, gcc}
	sol = solve(t, p)
	if c := sol.Roots[0].Compiler; c == nil || c.Name != "gcc" {
		t.Errorf("hdf5+szip compiler = %v, want gcc to avoid the conflict", c)
	}
}

func TestSolveMultiInstance(t *testing.T) {
	sol := solve(t, problem(t, "old-app", "new-app"))
	tools := sol.NodesNamed("build-tool")
	if len(tools) != 2 {
		t.Fatalf("build-tool instances = %d, want 2", len(tools))
	}
	var got []string
	for _, n := range tools {
		got = append(got, versionOf(t, n))
	}
	slices.Sort(got)
	if diff := cmp.Diff([]string{"1.0", "2.0"}, got); diff != "" {
		t.Errorf("build-tool versions mismatch (-want +got):\n%s", diff)
	}
}

func TestSolveUnsatisfiable(t *testing.T) {
	tests := []struct {
		name   string
		roots  []string
		pkg    string
		reason string
		reqs   []Requirement
	}{
		{
			name:   "incompatible version ranges",
			roots:  []string{"needs-old-mpich", "needs-new-mpich"},
			pkg:    "mpich",
			reason: "do not overlap",
			reqs: []Requirement{
				{Requirer: "needs-old-mpich", Constraint: "mpich@:1"},
				{Requirer: "needs-new-mpich", Constraint: "mpich@3:"},
			},
		},
		{
			name:   "conflict declaration",
			roots:  []string{"hdf5+szip%clang"},
			pkg:    "hdf5",
			reason: "szip does not build with clang",
		},
		{
			name:   "malformed dependency",
			roots:  []string{"needs-broken"},
			pkg:    "broken-variant",
			reason: "malformed",
			reqs:   []Requirement{{Requirer: "needs-broken", Constraint: "broken-variant"}},
		},
		{
			name:   "unknown version",
			roots:  []string{"zlib@9"},
			pkg:    "zlib",
			reason: "no declared version",
		},
		{
			name:   "undeclared variant",
			roots:  []string{"zlib+lto"},
			pkg:    "zlib",
			reason: "no variant",
		},
		{
			name:   "inactive variant",
			roots:  []string{"zlib+shared+pic"},
			pkg:    "zlib",
			reason: "requires",
		},
		{
			name:   "no provider offers the virtual version",
			roots:  []string{"hdf5 ^mpi@4:"},
			pkg:    "mpi",
			reason: "provides only",
		},
		{
			name:   "missing dependency below root",
			roots:  []string{"hdf5~mpi ^mpich"},
			pkg:    "mpich",
			reason: "does not depend on",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := solveErr(t, problem(t, tt.roots...))
			var ue *UnsatisfiableError
			if !stderrors.As(err, &ue) {
				t.Fatalf("error = %v (%T), want *UnsatisfiableError", err, err)
			}
			if !errors.Is(err, errors.ErrCodeUnsatisfiable) {
				t.Error("error code is not UNSATISFIABLE")
			}
			if ue.Package != tt.pkg {
				t.Errorf("package = %q, want %q", ue.Package, tt.pkg)
			}
			if !strings.Contains(ue.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to mention %q", ue.Reason, tt.reason)
			}
			if tt.reqs != nil {
				if diff := cmp.Diff(tt.reqs, ue.Requirements); diff != "" {
					t.Errorf("requirements mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestSolveMinimalExplanation(t *testing.T) {
	// zlib@1.3 is satisfiable on its own; only the two mpich requirements
	// clash.
	err := solveErr(t, problem(t, "zlib@1.3", "needs-old-mpich", "needs-new-mpich"))
	var ue *UnsatisfiableError
	if !stderrors.As(err, &ue) {
		t.Fatalf("error = %v, want *UnsatisfiableError", err)
	}
	if len(ue.Requirements) != 2 {
		t.Errorf("requirements = %v, want the two mpich constraints", ue.Requirements)
	}
	for _, r := range ue.Requirements {
		if !strings.HasPrefix(r.Constraint, "mpich") {
			t.Errorf("unexpected requirement %s", r)
		}
	}
	if !strings.Contains(err.Error(), "needs-old-mpich requires mpich@:1") {
		t.Errorf("message does not list the requirer:\n%s", err)
	}
}

func TestSolveInputErrors(t *testing.T) {
	tests := []struct {
		name  string
		roots []*spec.Spec
		code  errors.Code
	}{
		{"unknown package", []*spec.Spec{spec.MustParse("nonexistent")}, errors.ErrCodePackageNotFound},
		{"malformed root", []*spec.Spec{spec.MustParse("broken-version")}, errors.ErrCodeMalformedPackage},
		{"unknown dependency", []*spec.Spec{spec.MustParse("hdf5 ^nonexistent")}, errors.ErrCodePackageNotFound},
		{"anonymous root", []*spec.Spec{spec.New("")}, errors.ErrCodeInvalidSpec},
		{"no roots", nil, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Problem{Roots: tt.roots, Facts: fixtureTable(t)}
			err := solveErr(t, p)
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}

	var mpe *facts.MalformedPackageError
	err := solveErr(t, problem(t, "broken-variant"))
	if !stderrors.As(err, &mpe) || mpe.Package != "broken-variant" {
		t.Errorf("error = %v, want MalformedPackageError for broken-variant", err)
	}
}

func TestSolveReuse(t *testing.T) {
	installed := spec.MustParse("zlib@=1.3+shared")
	installed.Hash = "abcdefghijklmnopqrstuvwxyz234567"

	p := problem(t, "hdf5~mpi")
	p.Reusable = []*spec.Spec{installed}
	p.Policy.Reuse = true
	sol := solve(t, p)
	zlib := sol.Node("zlib")
	if !sol.Reused[zlib] {
		t.Fatal("zlib was not reused")
	}
	if zlib.Hash != installed.Hash {
		t.Errorf("zlib hash = %q, want %q", zlib.Hash, installed.Hash)
	}
	if want := (Cost{Packages: 3}); sol.Cost != want {
		t.Errorf("cost = %+v, want %+v", sol.Cost, want)
	}

	// Without reuse the installed spec is ignored unless a hash names it.
	p.Policy.Reuse = false
	sol = solve(t, p)
	if sol.Reused[sol.Node("zlib")] {
		t.Error("zlib reused although reuse is off")
	}

	p = problem(t, "hdf5~mpi ^zlib/abcdef")
	p.Reusable = []*spec.Spec{installed}
	sol = solve(t, p)
	if !sol.Reused[sol.Node("zlib")] {
		t.Error("hash-pinned zlib was not reused")
	}

	p = problem(t, "hdf5~mpi ^zlib/zzzz")
	p.Reusable = []*spec.Spec{installed}
	var ue *UnsatisfiableError
	if err := solveErr(t, p); !stderrors.As(err, &ue) || !strings.Contains(ue.Reason, "/zzzz") {
		t.Errorf("error = %v, want unsatisfiable hash", err)
	}
}

func TestSolveReuseKeepsDefaults(t *testing.T) {
	installed := spec.MustParse("zlib@=1.3~shared")
	installed.Hash = "bcdefghijklmnopqrstuvwxyz2345672"

	p := problem(t, "hdf5")
	p.Reusable = []*spec.Spec{installed}
	p.Policy.Reuse = true
	sol := solve(t, p)

	if v, _ := sol.Roots[0].Variant("mpi"); !v.Equal(spec.BoolVariant("mpi", true)) {
		t.Errorf("hdf5 mpi = %v, want the default +mpi", v)
	}
	if p := sol.Providers["mpi"]; p == nil || p.Name != "mpich" {
		t.Errorf("mpi provider = %v, want mpich", p)
	}
	if !sol.Reused[sol.Node("zlib")] {
		t.Error("installed zlib was not preferred over a default build")
	}
	if want := (Cost{Packages: 4}); sol.Cost != want {
		t.Errorf("cost = %+v, want %+v", sol.Cost, want)
	}
}

func TestSolveDeterministic(t *testing.T) {
	first := solve(t, problem(t, "hdf5", "optional-dep-test+f"))
	for range 5 {
		again := solve(t, problem(t, "hdf5", "optional-dep-test+f"))
		if again.String() != first.String() {
			t.Fatalf("solutions differ:\n%s\n%s", first, again)
		}
	}
}

func TestSolveIdempotent(t *testing.T) {
	for _, root := range []string{"hdf5", "hdf5~mpi ^zlib@1.2", "optional-dep-test+f", "hdf5 ^openmpi"} {
		t.Run(root, func(t *testing.T) {
			first := solve(t, problem(t, root))
			out := first.Roots[0].String()
			second := solve(t, problem(t, out))
			if got := second.Roots[0].String(); got != out {
				t.Errorf("re-solving changed the result:\n first: %s\nsecond: %s", out, got)
			}
		})
	}
}

func TestSolveStepBudget(t *testing.T) {
	p := problem(t, "hdf5")
	p.Policy.MaxSteps = 1
	_, err := (&Search{Logger: log.New(io.Discard)}).Solve(context.Background(), p)
	var te *ConcretizationTimeoutError
	if !stderrors.As(err, &te) {
		t.Fatalf("error = %v, want *ConcretizationTimeoutError", err)
	}
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Error("error code is not TIMEOUT")
	}

	// A budget that allows one solution but not the proof of optimality.
	p = problem(t, "optional-dep-test")
	p.Policy.MaxSteps = 2
	sol, err := (&Search{Logger: log.New(io.Discard)}).Solve(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Optimal {
		t.Error("Optimal = true for an interrupted search")
	}
}

func TestSolveCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Search{Logger: log.New(io.Discard)}).Solve(ctx, problem(t, "hdf5"))
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestSolutionClone(t *testing.T) {
	sol := solve(t, problem(t, "hdf5"))
	c := sol.Clone()
	if c.String() != sol.String() {
		t.Fatalf("clone differs:\n%s\n%s", sol, c)
	}
	if c.Roots[0] == sol.Roots[0] {
		t.Error("clone shares root pointer")
	}
	if c.Providers["mpi"] != c.Node("mpich") {
		t.Error("cloned provider does not point into the cloned graph")
	}
	for _, e := range c.Edges {
		if !slices.Contains(c.Nodes, e.Parent) || !slices.Contains(c.Nodes, e.Child) {
			t.Fatalf("cloned edge %s -> %s escapes the clone", e.Parent.Name, e.Child.Name)
		}
	}
}
