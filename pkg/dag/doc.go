// Package dag provides the directed acyclic graph used to present a
// concretized solution.
//
// # Overview
//
// Every node of a materialized solution becomes a [Node] whose ID is the
// node's content hash and whose [Metadata] carries the package name,
// version and variants. Edges point from a dependent to its dependency:
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "abc...", Label: "hdf5@=1.14.3"})
//	g.AddNode(dag.Node{ID: "def...", Label: "zlib@=1.3"})
//	g.AddEdge(dag.Edge{From: "abc...", To: "def..."})
//
// [DAG.AssignRows] computes the depth of each node below the roots, which
// renderers use for top-to-bottom layout. [DAG.TopoSort] returns a
// deterministic dependencies-first order, the order in which nodes would be
// built.
//
// # Concurrency
//
// DAG instances are not safe for concurrent use. A materialized graph is
// never modified after construction, so concurrent readers are fine.
package dag
