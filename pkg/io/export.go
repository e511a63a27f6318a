package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/stacksolve/pkg/dag"
	"github.com/matzehuels/stacksolve/pkg/materialize"
)

type graph struct {
	Roots any    `json:"roots,omitempty"`
	Nodes []node `json:"nodes"`
	Edges []edge `json:"edges"`
}

type node struct {
	ID    string       `json:"id"`
	Label string       `json:"label,omitempty"`
	Row   int          `json:"row"`
	Meta  dag.Metadata `json:"meta,omitempty"`
}

type edge struct {
	From string       `json:"from"`
	To   string       `json:"to"`
	Meta dag.Metadata `json:"meta,omitempty"`
}

// WriteLock encodes a materialized result as a lock file and writes it to w.
// The output can be read back with [ReadLock].
func WriteLock(res *materialize.Result, w io.Writer) error {
	l, err := Encode(res.Roots)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportLock writes a lock file at path.
// This is a convenience wrapper around [WriteLock] for file-based output.
func ExportLock(res *materialize.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteLock(res, f)
}

// WriteGraph encodes a DAG view as JSON nodes and edges, with rows and
// metadata, for tools that draw graphs rather than install them.
func WriteGraph(g *dag.DAG, w io.Writer) error {
	out := graph{
		Roots: g.Meta()["roots"],
		Nodes: make([]node, 0, g.NodeCount()),
		Edges: make([]edge, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		out.Nodes = append(out.Nodes, node{ID: n.ID, Label: n.Label, Row: n.Row, Meta: n.Meta})
	}
	for _, e := range g.Edges() {
		out.Edges = append(out.Edges, edge{From: e.From, To: e.To, Meta: e.Meta})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
