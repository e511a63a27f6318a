package nodelink

import (
	"strings"
	"testing"

	"github.com/matzehuels/stacksolve/pkg/dag"
)

func sample() *dag.DAG {
	g := dag.New(nil)
	g.AddNode(dag.Node{ID: "aaaaaaaaaaaa", Label: "app@=1.0", Meta: dag.Metadata{"package": "app", "version": "1.0", "reused": false}})
	g.AddNode(dag.Node{ID: "bbbbbbbbbbbb", Label: "zlib@=1.3+shared", Meta: dag.Metadata{"package": "zlib", "version": "1.3", "reused": true}})
	g.AddNode(dag.Node{ID: "cccccccccccc", Label: "openmpi@=4.1.5", Meta: dag.Metadata{"package": "openmpi", "reused": false}})
	g.AddEdge(dag.Edge{From: "aaaaaaaaaaaa", To: "bbbbbbbbbbbb", Meta: dag.Metadata{"types": "build,link"}})
	g.AddEdge(dag.Edge{From: "aaaaaaaaaaaa", To: "cccccccccccc", Meta: dag.Metadata{"types": "build,link", "virtual": "mpi"}})
	g.AssignRows()
	return g
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(sample(), Options{})

	for _, want := range []string{
		"digraph G",
		`"aaaaaaaaaaaa" [label="app@=1.0"]`,
		`"bbbbbbbbbbbb" [label="zlib@=1.3+shared", fillcolor="#d9f2d9"]`,
		`"aaaaaaaaaaaa" -> "bbbbbbbbbbbb";`,
		`"aaaaaaaaaaaa" -> "cccccccccccc" [style=dashed, tooltip="mpi"];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %q in:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "build,link") {
		t.Error("edge types should only appear in detailed mode")
	}
}

func TestToDOT_Detailed(t *testing.T) {
	dot := ToDOT(sample(), Options{Detailed: true})

	for _, want := range []string{
		"/aaaaaaa",
		"row: 1",
		"reused: true",
		`label="build,link"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() detailed missing %q", want)
		}
	}
	if strings.Contains(dot, "package: ") {
		t.Error("package is already part of the label")
	}
}

func TestFmtLabel(t *testing.T) {
	n := dag.Node{ID: "abc", Row: 2, Meta: dag.Metadata{"arch": "linux-x86_64"}}

	if got := fmtLabel(n, false); got != "abc" {
		t.Errorf("fmtLabel() simple = %q, want %q", got, "abc")
	}
	want := "abc\n/abc\nrow: 2\narch: linux-x86_64"
	if got := fmtLabel(n, true); got != want {
		t.Errorf("fmtLabel() detailed = %q, want %q", got, want)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="10pt" height="20pt" viewBox="0.00 0.00 100.00 50.00" xmlns="x"><g/></svg>`)
	got := string(normalizeViewBox(in))
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.00 50.00" width="100" height="50"><g/></svg>`
	if got != want {
		t.Errorf("normalizeViewBox() = %q, want %q", got, want)
	}
	if got := normalizeViewBox([]byte("<svg>")); string(got) != "<svg>" {
		t.Errorf("normalizeViewBox() without viewBox = %q", got)
	}
}
