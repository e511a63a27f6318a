// Package solver turns abstract specs into a concrete dependency graph.
//
// # Overview
//
// A [Problem] bundles the requested root specs, the [facts.Table] extracted
// from a package repository, optional reusable (already built) specs and a
// [Policy]. [Solve] returns a [Solution] in which every node has a single
// version, compiler, variant assignment and arch, and in which:
//
//   - every dependency whose guard holds is present, and no other
//   - every virtual in the graph has exactly one provider
//   - each non multi-instance package appears at most once
//   - no conflict declaration holds
//
// # Search
//
// The built-in backend, [Search], decides nodes depth-first in the order
// they were created. After every decision the guards of all decided nodes
// are re-evaluated with three-valued logic against the partial graph:
// guards that hold fire their dependency, guards that can no longer hold are
// dropped, and the rest wait. When nothing is left to decide, waiting
// guards are evaluated once more against the closed graph.
//
// Among all solutions the one with the lowest [Cost] wins, compared
// lexicographically in [Policy.Criteria] order; ties keep the first found.
// Branches whose cost bound cannot beat the best solution are pruned.
//
// # Failures
//
// A request without a solution yields an [*UnsatisfiableError] naming a
// minimal set of conflicting [Requirement] values. A search that runs out of
// steps or hits a context deadline returns the best solution so far with
// Optimal unset, or a [*ConcretizationTimeoutError] when it has none.
package solver
