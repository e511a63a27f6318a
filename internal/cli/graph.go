package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/pipeline"
)

// graphCommand creates the graph command for rendering a solution.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		solve      solveOpts
		formatsStr string
		output     string
		detailed   bool
	)

	cmd := &cobra.Command{
		Use:   "graph <spec>...",
		Short: "Render a concrete DAG as DOT, SVG, PNG or PDF",
		Long: `Solve specs and render the concrete DAG as a node-link diagram.

Reused nodes are filled green and edges that satisfy a virtual are dashed.
With a single format and no --output the artifact is written to stdout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formats := parseFormats(formatsStr, pipeline.FormatDOT)
			if err := pipeline.ValidateFormats(formats); err != nil {
				return err
			}
			if len(formats) > 1 && output == "" {
				return errors.New(errors.ErrCodeInvalidInput, "--output is required with more than one format")
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

			opts := solve.options(cmd, cfg, []string{strings.Join(args, " ")})
			opts.Formats = formats
			opts.Detailed = detailed

			prog := newProgress(c.Logger)
			res, err := runner.Execute(cmd.Context(), opts)
			if err != nil {
				return err
			}
			prog.done("rendered", "formats", formats, "cached", res.CacheInfo.RenderHit)

			if output == "" {
				_, err := cmd.OutOrStdout().Write(res.Artifacts[formats[0]])
				return err
			}
			for _, f := range formats {
				path := outputPath(output, f, len(formats) > 1)
				if err := os.WriteFile(path, res.Artifacts[f], 0644); err != nil {
					return err
				}
				printFile(path)
			}
			return nil
		},
	}

	solve.register(cmd)
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): dot (default), svg, png, pdf, json, graph (comma-separated)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "label nodes with hash, row and metadata")

	return cmd
}

// outputPath derives the file for one format. With several formats the
// output is a base path and each format gets its own extension.
func outputPath(output, format string, multi bool) string {
	ext := "." + format
	if format == pipeline.FormatGraph {
		ext = ".graph.json"
	}
	if !multi {
		if filepath.Ext(output) == "" {
			return output + ext
		}
		return output
	}
	base := strings.TrimSuffix(output, filepath.Ext(output))
	return fmt.Sprintf("%s%s", base, ext)
}
