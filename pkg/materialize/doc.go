// Package materialize turns a solved dependency graph into its final,
// content-addressed form.
//
// Every node is hashed bottom-up over its name, version, compiler, variants,
// arch and its dependency edges (name, types and dependency hash, sorted),
// so two nodes share a hash exactly when their whole subgraphs agree. The
// hash is the SHA-256 of the [Canonical] form, base32-encoded, lower case
// and cut to [HashLength] characters.
//
// [Materialize] works on a copy of the solution: it sets each node's hash,
// marks it concrete and freezes it, and returns the nodes by hash in build
// order together with a [dag.DAG] view for rendering.
//
// [dag.DAG]: github.com/matzehuels/stacksolve/pkg/dag.DAG
package materialize
