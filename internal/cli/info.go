package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/facts"
)

// infoCommand creates the info command.
func (c *CLI) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <package>",
		Short: "Show a package's versions, variants and dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := errors.ValidatePackageName(name); err != nil {
				return err
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			runner, err := c.newRunner(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer runner.Close()

			table, _, err := runner.Facts(cmd.Context())
			if err != nil {
				return err
			}
			if bad, ok := table.ExcludedError(name); ok {
				return bad
			}
			w := cmd.OutOrStdout()
			if pkg, ok := table.Package(name); ok {
				return writeInfo(w, pkg)
			}
			if table.IsVirtual(name) {
				fmt.Fprintf(w, "%s is a virtual package provided by:\n", StyleTitle.Render(name))
				for _, p := range table.Providers(name) {
					fmt.Fprintf(w, "    %s\n", p)
				}
				return nil
			}
			return errors.New(errors.ErrCodePackageNotFound, "unknown package %q", name)
		},
	}
}

func writeInfo(w io.Writer, p *facts.PackageFacts) error {
	var b strings.Builder
	b.WriteString(StyleTitle.Render(p.Name))
	b.WriteString("\n")
	if p.Description != "" {
		b.WriteString("    " + p.Description + "\n")
	}

	b.WriteString("\nVersions:\n")
	for _, v := range p.Versions {
		fmt.Fprintf(&b, "    %s", v.Version)
		switch {
		case v.Preferred:
			b.WriteString(" " + StyleSuccess.Render("(preferred)"))
		case v.Deprecated:
			b.WriteString(" " + StyleWarning.Render("(deprecated)"))
		}
		b.WriteString("\n")
	}

	if len(p.Variants) > 0 {
		b.WriteString("\nVariants:\n")
		for _, v := range p.Variants {
			values := "on, off"
			if !v.IsBool() {
				values = strings.Join(v.Values, ", ")
			}
			fmt.Fprintf(&b, "    %-12s [%s]  default: %s", v.Name, values, strings.Join(v.Default, ","))
			if !v.When.IsAlways() {
				b.WriteString(StyleDim.Render("  when " + v.When.String()))
			}
			b.WriteString("\n")
			if v.Description != "" {
				b.WriteString(StyleDim.Render("        "+v.Description) + "\n")
			}
		}
	}

	if len(p.Dependencies) > 0 {
		b.WriteString("\nDependencies:\n")
		for _, d := range p.Dependencies {
			fmt.Fprintf(&b, "    %-24s [%s]", d.Spec.String(), d.Types)
			if !d.When.IsAlways() {
				b.WriteString(StyleDim.Render("  when " + d.When.String()))
			}
			b.WriteString("\n")
		}
	}

	if virtuals := p.Virtuals(); len(virtuals) > 0 {
		b.WriteString("\nProvides:\n    " + strings.Join(virtuals, ", ") + "\n")
	}
	if len(p.Conflicts) > 0 {
		b.WriteString("\nConflicts:\n")
		for _, cf := range p.Conflicts {
			line := "    " + cf.Spec.String()
			if !cf.When.IsAlways() {
				line += " when " + cf.When.String()
			}
			if cf.Msg != "" {
				line += StyleDim.Render("  " + cf.Msg)
			}
			b.WriteString(line + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
