package splice

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stacksolve/internal/testrepo"
	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/facts"
	"github.com/matzehuels/stacksolve/pkg/repo"
	"github.com/matzehuels/stacksolve/pkg/solver"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

var quiet = log.New(io.Discard)

func solveIn(t *testing.T, r *repo.Repository, root string) (*solver.Solution, *facts.Table) {
	t.Helper()
	table, err := facts.Extract(context.Background(), r, facts.Options{Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	sol, err := (&solver.Search{Logger: quiet}).Solve(context.Background(), &solver.Problem{
		Roots: []*spec.Spec{spec.MustParse(root)},
		Facts: table,
	})
	if err != nil {
		t.Fatal(err)
	}
	return sol, table
}

func installed(s, hash string) *spec.Spec {
	n := spec.MustParse(s)
	n.Hash = hash
	return n
}

func versionOf(n *spec.Spec) string {
	if n == nil {
		return "<missing>"
	}
	v, _ := n.Version()
	return v.String()
}

func TestResolveCanSplice(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		applied   bool
		version   string
		reason    string
	}{
		{"matching variants", "manyvariants@=2.0.0+a~b c=v1 d=v1", true, "2.0.0", ""},
		{"variant c differs", "manyvariants@=2.0.0+a~b c=v2 d=v1", false, "2.0.1", "variants c differ"},
		{"source not satisfied", "manyvariants@=2.0.0~a~b c=v1 d=v1", false, "2.0.1", "no installed spec satisfies"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sol, table := solveIn(t, testrepo.Repository(), "manyvariants@2.0.1~a+b")
			cand := installed(tt.candidate, "mv200aaaaaaaaaaaaaaaaaaaaaaaaaaa")
			res, err := Resolve(context.Background(), sol, table, Options{
				Enabled:    true,
				Candidates: []*spec.Spec{cand},
				Logger:     quiet,
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Decisions) != 1 {
				t.Fatalf("decisions = %v, want one", res.Decisions)
			}
			d := res.Decisions[0]
			if d.Applied != tt.applied {
				t.Fatalf("applied = %v, want %v (%s)", d.Applied, tt.applied, d)
			}
			root := res.Solution.Roots[0]
			if got := versionOf(root); got != tt.version {
				t.Errorf("root version = %s, want %s", got, tt.version)
			}
			if tt.applied {
				if d.Match != "[c,d]" {
					t.Errorf("match = %q, want [c,d]", d.Match)
				}
				if root.Hash != cand.Hash || !res.Solution.Reused[root] {
					t.Errorf("spliced root %s is not the installed build", root.NodeString())
				}
			} else if !strings.Contains(d.Reason, tt.reason) {
				t.Errorf("reason = %q, want it to mention %q", d.Reason, tt.reason)
			}
			if got := versionOf(sol.Roots[0]); got != "2.0.1" {
				t.Errorf("input solution modified: root version %s", got)
			}
		})
	}
}

func TestResolveAmbiguous(t *testing.T) {
	r := repo.MustNew(&repo.PackageDef{
		Name:     "lib",
		Versions: []repo.VersionDef{{Version: "2.0"}, {Version: "1.0"}},
		Variants: []repo.VariantDef{{Name: "x", Default: true}},
		CanSplice: []repo.CanSpliceDef{
			{Source: "lib@1.0+x", When: "@2.0"},
			{Source: "lib@1.0", When: "@2.0+x"},
		},
	})
	sol, table := solveIn(t, r, "lib")
	_, err := Resolve(context.Background(), sol, table, Options{
		Enabled:    true,
		Candidates: []*spec.Spec{installed("lib@=1.0+x", "lib10aaaaaaaaaaaaaaaaaaaaaaaaaaa")},
		Logger:     quiet,
	})
	ae, ok := err.(*AmbiguousSpliceError)
	if !ok {
		t.Fatalf("error = %v, want *AmbiguousSpliceError", err)
	}
	if len(ae.Rules) != 2 {
		t.Errorf("rules = %v, want both", ae.Rules)
	}
	if !errors.Is(err, errors.ErrCodeAmbiguousSplice) {
		t.Error("error code is not AMBIGUOUS_SPLICE")
	}
}

func TestResolveExplicitPolicy(t *testing.T) {
	policy, err := repo.ParseSplicePolicy([]byte("splice:\n  - target: zlib\n    replacement: zlib@1.2.13\n"))
	if err != nil {
		t.Fatal(err)
	}
	sol, table := solveIn(t, testrepo.Repository(), "hdf5~mpi")
	zlib := installed("zlib@=1.2.13+shared", "zlib12aaaaaaaaaaaaaaaaaaaaaaaaaa")
	res, err := Resolve(context.Background(), sol, table, Options{
		Enabled:    true,
		Candidates: []*spec.Spec{zlib},
		Policy:     policy,
		Logger:     quiet,
	})
	if err != nil {
		t.Fatal(err)
	}
	applied := res.Applied()
	if len(applied) != 1 || applied[0].Rule != "splice.yaml[0]" {
		t.Fatalf("applied = %v", applied)
	}
	hdf5 := res.Solution.Roots[0]
	e := hdf5.Dependency("zlib")
	if e == nil || versionOf(e.Spec) != "1.2.13" {
		t.Fatalf("hdf5 -> zlib = %v, want the spliced 1.2.13", e)
	}
	if len(res.Solution.NodesNamed("zlib")) != 1 {
		t.Error("old zlib still in the graph")
	}
	if got := versionOf(sol.Node("zlib")); got != "1.3" {
		t.Errorf("input solution modified: zlib %s", got)
	}
}

func TestResolveTransitive(t *testing.T) {
	policy := &repo.SplicePolicy{Splice: []repo.SpliceEntry{{
		Target:      "openmpi",
		Replacement: "openmpi",
		Transitive:  true,
	}}}
	cand := installed("openmpi@=4.1.6 ^[deptypes=build,link] zlib@=1.2.13+shared", "ompiaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	cand.Dependency("zlib").Spec.Hash = "zlib12aaaaaaaaaaaaaaaaaaaaaaaaaa"

	sol, table := solveIn(t, testrepo.Repository(), "hdf5 ^openmpi")
	res, err := Resolve(context.Background(), sol, table, Options{
		Enabled:    true,
		Candidates: []*spec.Spec{cand},
		Policy:     policy,
		Logger:     quiet,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Applied()) != 1 {
		t.Fatalf("decisions = %v", res.Decisions)
	}
	out := res.Solution
	zlibs := out.NodesNamed("zlib")
	if len(zlibs) != 1 || versionOf(zlibs[0]) != "1.2.13" {
		t.Fatalf("zlib nodes = %v, want only the imported 1.2.13", zlibs)
	}
	if e := out.Roots[0].Dependency("zlib"); e == nil || e.Spec != zlibs[0] {
		t.Error("hdf5 was not rewired onto the imported zlib")
	}
	ompi := out.Node("openmpi")
	if !out.Reused[ompi] || !out.Reused[zlibs[0]] {
		t.Error("transitively spliced nodes should keep their installed identity")
	}
	if out.Providers["mpi"] != ompi {
		t.Errorf("mpi provider = %v, want the spliced openmpi", out.Providers["mpi"])
	}
}

func TestResolveRejectsIdentityMismatch(t *testing.T) {
	policy, err := repo.ParseSplicePolicy([]byte("splice:\n  - target: zlib\n    replacement: openssl\n"))
	if err != nil {
		t.Fatal(err)
	}
	sol, table := solveIn(t, testrepo.Repository(), "hdf5~mpi")
	res, err := Resolve(context.Background(), sol, table, Options{
		Enabled:    true,
		Candidates: []*spec.Spec{installed("openssl@=3.1.4", "sslaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")},
		Policy:     policy,
		Logger:     quiet,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Decisions) != 1 || res.Decisions[0].Applied {
		t.Fatalf("decisions = %v, want one rejected", res.Decisions)
	}
	if !strings.Contains(res.Decisions[0].Reason, "cannot stand in") {
		t.Errorf("reason = %q", res.Decisions[0].Reason)
	}
	if res.Solution.String() != sol.String() {
		t.Error("rejected splice changed the solution")
	}
}

func TestResolveKeepsDependentConstraints(t *testing.T) {
	mpich := &repo.PackageDef{
		Name:     "mpich",
		Versions: []repo.VersionDef{{Version: "3.0.4"}, {Version: "1.0"}},
		Provides: []repo.ProvidesDef{
			{Spec: "mpi@:3", When: "@3:"},
			{Spec: "mpi@:1", When: "@:1"},
		},
	}
	zlib := &repo.PackageDef{
		Name:      "zlib",
		Versions:  []repo.VersionDef{{Version: "1.3"}, {Version: "1.0"}},
		CanSplice: []repo.CanSpliceDef{{Source: "zlib@1.0", When: "@1.3"}},
	}
	tests := []struct {
		name      string
		app       repo.DependsOnDef
		policy    *repo.SplicePolicy
		candidate *spec.Spec
		reason    string
	}{
		{
			name:      "version range",
			app:       repo.DependsOnDef{Spec: "zlib@1.2:"},
			candidate: installed("zlib@=1.0", "zlib10aaaaaaaaaaaaaaaaaaaaaaaaaa"),
			reason:    "app requirement zlib@1.2:",
		},
		{
			name:      "virtual range",
			app:       repo.DependsOnDef{Spec: "mpi@2:"},
			policy:    &repo.SplicePolicy{Splice: []repo.SpliceEntry{{Target: "mpich", Replacement: "mpich@1.0"}}},
			candidate: installed("mpich@=1.0", "mpich10aaaaaaaaaaaaaaaaaaaaaaaaa"),
			reason:    "app requires mpi@2:",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := repo.MustNew(
				&repo.PackageDef{Name: "app", Versions: []repo.VersionDef{{Version: "1.0"}}, DependsOn: []repo.DependsOnDef{tt.app}},
				mpich, zlib,
			)
			sol, table := solveIn(t, r, "app")
			res, err := Resolve(context.Background(), sol, table, Options{
				Enabled:    true,
				Candidates: []*spec.Spec{tt.candidate},
				Policy:     tt.policy,
				Logger:     quiet,
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Applied()) != 0 {
				t.Fatalf("applied = %v, want none", res.Applied())
			}
			if len(res.Decisions) != 1 || !strings.Contains(res.Decisions[0].Reason, tt.reason) {
				t.Errorf("decisions = %v, want a reason mentioning %q", res.Decisions, tt.reason)
			}
			if res.Solution.String() != sol.String() {
				t.Error("rejected splice changed the solution")
			}
		})
	}
}

func TestResolveDisabled(t *testing.T) {
	sol, table := solveIn(t, testrepo.Repository(), "manyvariants@2.0.1~a+b")
	res, err := Resolve(context.Background(), sol, table, Options{
		Candidates: []*spec.Spec{installed("manyvariants@=2.0.0+a~b c=v1 d=v1", "mv200aaaaaaaaaaaaaaaaaaaaaaaaaaa")},
		Logger:     quiet,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Decisions) != 0 || res.Solution.String() != sol.String() {
		t.Errorf("disabled pass changed something: %v", res.Decisions)
	}
	if res.Solution == sol {
		t.Error("disabled pass must still return a copy")
	}
}
