package io

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/materialize"
	"github.com/matzehuels/stacksolve/pkg/solver"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

func materialized(t *testing.T) *materialize.Result {
	t.Helper()
	app := spec.MustParse("app@=1.0%gcc@=12.3.0+ssl arch=x86_64")
	ssl := spec.MustParse("openssl@=3.1.4 certs=mozilla,system")
	zlib := spec.MustParse("zlib@=1.3+shared")
	app.AddDependency(ssl, spec.DefaultDepTypes)
	app.AddDependency(zlib, spec.DepLink)
	ssl.AddDependency(zlib, spec.DefaultDepTypes)
	res, err := materialize.Materialize(context.Background(), &solver.Solution{
		Roots:  []*spec.Spec{app},
		Nodes:  []*spec.Spec{app, ssl, zlib},
		Reused: map[*spec.Spec]bool{},
	})
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestLockRoundTrip(t *testing.T) {
	res := materialized(t)
	var buf bytes.Buffer
	if err := WriteLock(res, &buf); err != nil {
		t.Fatal(err)
	}
	roots, err := ReadLock(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 {
		t.Fatalf("roots = %d, want 1", len(roots))
	}
	got, want := roots[0], res.Roots[0]
	if got.Hash != want.Hash {
		t.Errorf("root hash = %s, want %s", got.Hash, want.Hash)
	}
	if got.String() != want.String() {
		t.Errorf("root = %s, want %s", got, want)
	}
	if !got.Frozen() || !got.Concrete {
		t.Error("decoded root is not frozen")
	}
	// zlib is shared, not duplicated.
	if got.Dependency("zlib").Spec != got.Dependency("openssl").Spec.Dependency("zlib").Spec {
		t.Error("shared dependency decoded twice")
	}
}

func TestReadLockRejects(t *testing.T) {
	res := materialized(t)
	l, err := Encode(res.Roots)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(l *Lock)
	}{
		{"edited version", func(l *Lock) { l.Nodes[0].Version = "1.2.13" }},
		{"missing record", func(l *Lock) { l.Nodes = l.Nodes[1:] }},
		{"bad types", func(l *Lock) { l.Nodes[len(l.Nodes)-1].Dependencies[0].Types = "sideways" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, _ := json.Marshal(l)
			var c Lock
			_ = json.Unmarshal(data, &c)
			tt.mutate(&c)
			data, _ = json.Marshal(c)
			_, err := ReadLock(bytes.NewReader(data))
			if !errors.Is(err, errors.ErrCodeInvalidFormat) {
				t.Errorf("err = %v, want INVALID_FORMAT", err)
			}
		})
	}
	if _, err := ReadLock(strings.NewReader("{")); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("malformed JSON: err = %v", err)
	}
}

func TestEncodeRequiresHashes(t *testing.T) {
	if _, err := Encode([]*spec.Spec{spec.MustParse("zlib@=1.3")}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestWriteGraph(t *testing.T) {
	res := materialized(t)
	var buf bytes.Buffer
	if err := WriteGraph(res.Graph, &buf); err != nil {
		t.Fatal(err)
	}
	var out struct {
		Roots []string `json:"roots"`
		Nodes []struct {
			ID  string `json:"id"`
			Row int    `json:"row"`
		} `json:"nodes"`
		Edges []struct{ From, To string } `json:"edges"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Nodes) != 3 || len(out.Edges) != 3 {
		t.Errorf("nodes = %d, edges = %d, want 3, 3", len(out.Nodes), len(out.Edges))
	}
	if len(out.Roots) != 1 || out.Roots[0] != res.Roots[0].Hash {
		t.Errorf("roots = %v", out.Roots)
	}
}
