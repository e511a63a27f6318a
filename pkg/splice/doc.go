// Package splice swaps pre-built subgraphs into a solved graph.
//
// After the solver has produced a [solver.Solution], [Resolve] looks for
// nodes that an already built spec may replace without solving again. Two
// sources license a replacement:
//
//   - explicit entries of a splice.yaml policy ([repo.SplicePolicy]),
//     applied first
//   - can_splice declarations of the replaced package, which name the
//     acceptable replacement, the nodes it applies to and which variants must
//     agree between the two ("*" for all shared variants, or a list)
//
// A replacement must stand in for every incoming edge (same package, or a
// provider of each virtual the edges were requested through) and must not
// leave two nodes of one package in the graph. When several rules apply, the
// most specific wins; a tie is an [*AmbiguousSpliceError].
//
// Intransitive splices wire the replacement onto the nodes already in the
// graph; transitive ones bring its whole dependency graph along. The input
// solution is never modified: [Resolve] works on a copy and reports each
// outcome as a [Decision].
package splice
