package facts_test

import (
	"fmt"

	"github.com/matzehuels/stacksolve/pkg/facts"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

func ExampleCompileString() {
	when, _, err := facts.CompileString("@2.12: +mpi ^zlib@1.3")
	if err != nil {
		panic(err)
	}
	node := spec.MustParse("hdf5@=2.12.1 +mpi ^zlib@=1.3")
	fmt.Println(when.Eval(facts.ForSpec(node, nil)))
	fmt.Println(when.Deps())
	// Output:
	// true
	// [zlib]
}
