package cli

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stacksolve/internal/config"
	"github.com/matzehuels/stacksolve/pkg/pipeline"
)

// solveOpts holds the policy flags shared by commands that solve.
type solveOpts struct {
	reuse     bool
	tests     bool
	splice    bool
	fresh     bool
	oldest    bool
	compilers []string
	arch      string
	criteria  []string
}

func (o *solveOpts) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.reuse, "reuse", false, "prefer installed specs over new builds")
	cmd.Flags().BoolVar(&o.tests, "test", false, "include test dependencies of the roots")
	cmd.Flags().BoolVar(&o.splice, "splice", false, "splice compatible installed builds into the solution")
	cmd.Flags().BoolVar(&o.fresh, "fresh", false, "ignore cached solutions")
	cmd.Flags().BoolVar(&o.oldest, "oldest", false, "prefer the oldest allowed versions")
	cmd.Flags().StringSliceVar(&o.compilers, "compiler", nil, "allowed compilers in preference order (e.g. gcc@12:,clang)")
	cmd.Flags().StringVar(&o.arch, "arch", "", "default target architecture")
	cmd.Flags().StringSliceVar(&o.criteria, "criteria", nil, "optimization criteria in priority order")
}

// options builds request options from the settings, then applies the flags
// the user actually set.
func (o *solveOpts) options(cmd *cobra.Command, cfg *config.Config, specs []string) pipeline.Options {
	opts := cfg.Options()
	opts.Specs = specs
	flags := cmd.Flags()
	if flags.Changed("reuse") {
		opts.Reuse = o.reuse
	}
	if flags.Changed("splice") {
		opts.Splice = o.splice
	}
	if flags.Changed("oldest") && o.oldest {
		opts.VersionOrder = "oldest"
	}
	if len(o.compilers) > 0 {
		opts.Compilers = o.compilers
	}
	if o.arch != "" {
		opts.Arch = o.arch
	}
	if len(o.criteria) > 0 {
		opts.Criteria = o.criteria
	}
	opts.Tests = o.tests
	opts.Refresh = o.fresh
	return opts
}

// concretizeCommand creates the concretize command.
func (c *CLI) concretizeCommand() *cobra.Command {
	var (
		solve  solveOpts
		format string
		output string
		browse bool
	)

	cmd := &cobra.Command{
		Use:     "concretize <spec>...",
		Aliases: []string{"solve"},
		Short:   "Solve specs into a concrete DAG",
		Long: `Solve one or more abstract specs together into a single concrete DAG.

All arguments are joined and parsed as specs, so dependency constraints may be
written after their root:

  stacksolve concretize hdf5+mpi ^mpich@3: zlib@1.3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(format); err != nil {
				return err
			}
			return c.runConcretize(cmd, solve.options, strings.Join(args, " "), format, output, browse)
		},
	}

	solve.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", outputText, "output format: text, tree, json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the lock file to this path")
	cmd.Flags().BoolVar(&browse, "browse", false, "browse the solution interactively")

	return cmd
}

type optionsFunc func(*cobra.Command, *config.Config, []string) pipeline.Options

func (c *CLI) runConcretize(cmd *cobra.Command, build optionsFunc, specs, format, output string, browse bool) error {
	ctx := cmd.Context()
	res, err := c.solve(ctx, cmd, build, specs, format == outputJSON && output == "")
	if err != nil {
		return err
	}

	if output != "" {
		if err := os.WriteFile(output, res.Artifacts[pipeline.FormatJSON], 0644); err != nil {
			return err
		}
	}
	if browse {
		return runBrowser(res.Solution)
	}

	w := cmd.OutOrStdout()
	switch format {
	case outputJSON:
		if output == "" {
			_, err = w.Write(res.Artifacts[pipeline.FormatJSON])
			return err
		}
	case outputTree:
		err = writeTree(w, res.Solution)
	default:
		err = writeText(w, res.Solution)
	}
	if err != nil {
		return err
	}

	printSolveSummary(res)
	if output != "" {
		printFile(output)
		printNextStep("Record it", "stacksolve install --fake --lock "+output)
	}
	return nil
}

// solve runs the pipeline with a spinner, always rendering the lock file.
func (c *CLI) solve(ctx context.Context, cmd *cobra.Command, build optionsFunc, specs string, quiet bool) (*pipeline.Result, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	runner, err := c.newRunner(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer runner.Close()

	opts := build(cmd, cfg, []string{specs})
	opts.Formats = []string{pipeline.FormatJSON}

	var sp *Spinner
	if !quiet {
		sp = newSpinnerWithContext(ctx, "Concretizing "+specs)
		sp.Start()
	}
	res, err := runner.Execute(ctx, opts)
	switch {
	case sp == nil:
	case err != nil && !sp.Cancelled():
		sp.StopWithError("Concretization failed")
	default:
		sp.Stop()
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func printSolveSummary(res *pipeline.Result) {
	printStats(res.Stats.NodeCount, res.Stats.ReusedCount, res.Stats.Steps, res.CacheInfo.SolutionHit)
	if !res.Solution.Optimal {
		printWarning("search budget exhausted; the solution may not be optimal")
	}
	if res.Stats.Excluded > 0 {
		printWarning("%d malformed package(s) were excluded from the repository", res.Stats.Excluded)
	}
	for _, d := range res.Splices {
		if d.Applied {
			printDetail("%s", d.String())
		}
	}
}
