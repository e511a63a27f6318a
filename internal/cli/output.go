package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/materialize"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

// Output formats for solved specs.
const (
	outputText = "text"
	outputTree = "tree"
	outputJSON = "json"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputTree, outputJSON:
		return nil
	}
	return errors.New(errors.ErrCodeInvalidInput, "invalid format: %q (must be one of: text, tree, json)", format)
}

// shortHash is the hash prefix shown in listings.
func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}

// writeText prints each root as an indented listing, one node per line,
// marking nodes taken from the installed store. Nodes already shown are not
// expanded again.
func writeText(w io.Writer, res *materialize.Result) error {
	seen := make(map[*spec.Spec]bool)
	var walk func(n *spec.Spec, depth int) error
	walk = func(n *spec.Spec, depth int) error {
		status := iconBuild
		if res.Reused[n.Hash] {
			status = styleReused.Render(iconReused)
		}
		line := fmt.Sprintf("%s  %s  %s", status, styleHash.Render(shortHash(n.Hash)), strings.Repeat("    ", depth))
		if depth > 0 {
			line += "^"
		}
		if _, err := fmt.Fprintln(w, line+n.NodeString()); err != nil {
			return err
		}
		if seen[n] {
			return nil
		}
		seen[n] = true
		for _, e := range n.Dependencies() {
			if err := walk(e.Spec, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for i, root := range res.Roots {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := walk(root, 0); err != nil {
			return err
		}
	}
	return nil
}

// writeTree prints each root as a box-drawn tree. Edges are annotated with
// their dependency types, and the virtual they satisfy if any.
func writeTree(w io.Writer, res *materialize.Result) error {
	for _, root := range res.Roots {
		tree := treeprint.NewWithRoot(nodeLabel(root, res))
		seen := map[*spec.Spec]bool{root: true}
		addDeps(tree, root, res, seen)
		if _, err := io.WriteString(w, tree.String()); err != nil {
			return err
		}
	}
	return nil
}

func addDeps(branch treeprint.Tree, n *spec.Spec, res *materialize.Result, seen map[*spec.Spec]bool) {
	for _, e := range n.Dependencies() {
		meta := e.Types.String()
		if e.Virtual != "" {
			meta += " " + e.Virtual
		}
		if seen[e.Spec] {
			branch.AddMetaNode(meta, nodeLabel(e.Spec, res)+" ...")
			continue
		}
		seen[e.Spec] = true
		if len(e.Spec.Dependencies()) == 0 {
			branch.AddMetaNode(meta, nodeLabel(e.Spec, res))
			continue
		}
		addDeps(branch.AddMetaBranch(meta, nodeLabel(e.Spec, res)), e.Spec, res, seen)
	}
}

func nodeLabel(n *spec.Spec, res *materialize.Result) string {
	label := n.NodeString() + " /" + shortHash(n.Hash)
	if res.Reused[n.Hash] {
		label += " " + iconReused
	}
	return label
}
