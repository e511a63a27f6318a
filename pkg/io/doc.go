// Package io reads and writes concretized DAGs as JSON.
//
// # Lock files
//
// A lock file records one or more concrete DAGs so they can be installed,
// reused or spliced later without solving again:
//
//	{
//	  "roots": ["nbufixn66f5amk5hdlpxezctx2c2t2ab"],
//	  "nodes": [
//	    {"hash": "4hvxfn7jdcitihmg4wduj45d3n3jwcfl", "name": "zlib", "version": "1.3",
//	     "variants": {"shared": ["true"]}},
//	    {"hash": "nbufixn66f5amk5hdlpxezctx2c2t2ab", "name": "app", "version": "1.0",
//	     "dependencies": [{"hash": "4hvxfn7jdcitihmg4wduj45d3n3jwcfl", "name": "zlib", "types": "build,link"}]}
//	  ]
//	}
//
// Nodes appear once each, dependencies first. [ReadLock] recomputes every
// hash while decoding, so an edited or truncated lock file is rejected
// rather than silently producing specs whose hash lies about their content.
//
// [Record] is also the document shape of the installed-spec store.
//
// # Graph export
//
// [WriteGraph] writes the [dag.DAG] view of a solution (node labels, rows,
// metadata) for external visualization tools. It is write-only; lock files
// are the round-trip format.
//
// [dag.DAG]: github.com/matzehuels/stacksolve/pkg/dag.DAG
package io
