package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stacksolve/pkg/spec"
)

// specCommand creates the spec command, which parses without solving.
func (c *CLI) specCommand() *cobra.Command {
	var (
		tree   bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "spec <spec>...",
		Short: "Parse and normalize specs without solving",
		Long: `Parse specs and print them in canonical form: variants sorted, each
dependency constraint attached once, in name order.

Use "concretize" to solve them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := spec.ParseAll(strings.Join(args, " "))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				out := make([]specView, len(roots))
				for i, r := range roots {
					out[i] = newSpecView(r)
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			for _, r := range roots {
				if tree {
					fmt.Fprint(w, r.Tree())
					continue
				}
				fmt.Fprintln(w, r.String())
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&tree, "tree", "t", false, "print each spec as an indented tree")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parsed attributes as JSON")

	return cmd
}

// specView is the JSON form of an abstract spec node and its constraints.
type specView struct {
	Name         string            `json:"name"`
	Versions     string            `json:"versions,omitempty"`
	Compiler     string            `json:"compiler,omitempty"`
	Variants     map[string]string `json:"variants,omitempty"`
	Arch         string            `json:"arch,omitempty"`
	Hash         string            `json:"hash,omitempty"`
	Dependencies []edgeView        `json:"dependencies,omitempty"`
}

type edgeView struct {
	Types string   `json:"types,omitempty"`
	Spec  specView `json:"spec"`
}

func newSpecView(s *spec.Spec) specView {
	v := specView{Name: s.Name, Arch: s.Arch, Hash: s.Hash}
	if !s.Versions.IsAny() {
		v.Versions = s.Versions.String()
	}
	if s.Compiler != nil {
		v.Compiler = s.Compiler.String()
	}
	for _, name := range s.VariantNames() {
		if v.Variants == nil {
			v.Variants = make(map[string]string)
		}
		v.Variants[name] = s.Variants[name].String()
	}
	for _, e := range s.Dependencies() {
		ev := edgeView{Spec: newSpecView(e.Spec)}
		if e.Types != 0 {
			ev.Types = e.Types.String()
		}
		v.Dependencies = append(v.Dependencies, ev)
	}
	return v
}
