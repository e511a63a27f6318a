// Package spec models package specs and parses the spec syntax.
//
// A [Spec] describes one package instance: name, versions, compiler, variants,
// architecture and typed dependency edges. Abstract specs, written by users
// or found in recipe guards, leave some of these open; the solver turns them
// into concrete specs where every attribute holds a single value.
//
// # Syntax
//
//	hdf5@1.12: %gcc@12 +mpi ~szip api=v18 arch=linux-x86_64 ^mpich@3: ^[deptypes=build] cmake
//
//   - @versions   version list, see package version
//   - %compiler   compiler with optional @versions (no space before '@')
//   - +v ~v -v    enable or disable a boolean variant
//   - key=value   set a valued variant; comma-separated values form a set
//   - arch=a      target architecture
//   - ^dep        constraint on a dependency anywhere below the spec
//   - ^[deptypes=build,link virtuals=mpi] dep
//   - /hash       reference to a concrete spec by (abbreviated) hash
//
// Parsing is a pure function of the input string. Malformed input yields a
// [*ParseError] pointing at the offending column.
//
// # Matching
//
// [Spec.Satisfies] checks that a spec meets a constraint, [Spec.Intersects]
// checks that two constraints could describe the same node, and
// [Spec.Constrain] merges one constraint into another.
package spec
