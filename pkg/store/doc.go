// Package store records installed (already built) concrete specs.
//
// Installed specs are what the solver may reuse and what the splice
// resolver may splice in. A [Store] keeps whole DAGs: [Store.Add] records
// every node below the given roots as an [io.Record] keyed by hash, and
// [Store.Lookup] resolves a "/hash" prefix back to a spec with its
// dependencies wired. Records are re-hashed when read, so a tampered
// record fails loudly.
//
// Backends:
//   - [FileBackend]: one JSON file per node, for the CLI
//   - [MongoBackend]: a MongoDB collection, for shared sites and the server
//   - [MemoryBackend]: process-local, for tests and ephemeral servers
//
// [io.Record]: github.com/matzehuels/stacksolve/pkg/io.Record
package store
