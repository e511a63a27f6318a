// Package pkg provides the libraries behind stacksolve, a concretizer that
// turns abstract package specs into fully determined dependency graphs.
//
// # Overview
//
// The pkg directory is organized by pipeline stage:
//
//  1. [spec] and [version] - the spec model and its parser
//  2. [repo] and [facts] - package recipes and the facts compiled from them
//  3. [solver] - the constraint solver
//  4. [splice] - replacing solved nodes with compatible installed builds
//  5. [materialize] - hashing and freezing the final graph
//
// Supporting packages hold what the stages share: [dag] (graph view),
// [io] (lock files), [store] (installed specs), [cache], [render],
// [observability], [errors] and [pipeline], which runs the stages in order.
//
// # Data Flow
//
//	abstract specs + recipes
//	         ↓
//	    [facts] (compile recipes)
//	         ↓
//	    [solver] (search for the best concrete graph)
//	         ↓
//	    [splice] (reuse compatible installed builds)
//	         ↓
//	    [materialize] (hash, freeze)
//	         ↓
//	    lock JSON / DOT / SVG
//
// # Quick Start
//
//	r, _ := repo.Load("./packages")
//	runner := pipeline.NewRunner(r, nil, nil, nil, nil)
//	res, err := runner.Execute(ctx, pipeline.Options{Specs: []string{"hdf5+mpi"}})
//	for _, n := range res.Solution.Specs() {
//	    fmt.Println(n.Hash[:7], n)
//	}
//
// [spec]: github.com/matzehuels/stacksolve/pkg/spec
// [version]: github.com/matzehuels/stacksolve/pkg/version
// [repo]: github.com/matzehuels/stacksolve/pkg/repo
// [facts]: github.com/matzehuels/stacksolve/pkg/facts
// [solver]: github.com/matzehuels/stacksolve/pkg/solver
// [splice]: github.com/matzehuels/stacksolve/pkg/splice
// [materialize]: github.com/matzehuels/stacksolve/pkg/materialize
// [dag]: github.com/matzehuels/stacksolve/pkg/dag
// [io]: github.com/matzehuels/stacksolve/pkg/io
// [store]: github.com/matzehuels/stacksolve/pkg/store
// [cache]: github.com/matzehuels/stacksolve/pkg/cache
// [render]: github.com/matzehuels/stacksolve/pkg/render
// [observability]: github.com/matzehuels/stacksolve/pkg/observability
// [errors]: github.com/matzehuels/stacksolve/pkg/errors
// [pipeline]: github.com/matzehuels/stacksolve/pkg/pipeline
package pkg
