// Package facts compiles package recipes into the read-only rule set the
// solver consumes.
//
// Each recipe becomes a [PackageFacts] value: parsed versions in preference
// order, variant domains with their defaults, and dependency, provides,
// conflict and splice declarations whose when= guards are compiled into
// [Condition] trees. [Extract] compiles a whole repository in parallel and
// then validates references between packages, producing a [Table].
//
// # Guards
//
// A guard is written in spec syntax and tested against a candidate node:
//
//	"@2.12:"          the node's version is 2.12 or newer
//	"+mpi ~szip"      boolean variants
//	"api=v112"        valued variant
//	"%gcc@13:"        compiler
//	"^zlib@1.3"       some dependency below the node is zlib at 1.3
//
// Node attributes are always decided when a guard is evaluated. Dependency
// tests can be [Unknown] while the solver has not yet decided the subgraph,
// which is why evaluation uses three-valued logic.
//
// # Malformed packages
//
// A recipe with invalid declarations is not fatal. It is reported as a
// [*MalformedPackageError] in [Table.Excluded] and left out of the table;
// solving fails only if a request actually needs it.
package facts
