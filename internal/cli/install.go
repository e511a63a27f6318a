package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stacksolve/internal/config"
	"github.com/matzehuels/stacksolve/pkg/errors"
	sio "github.com/matzehuels/stacksolve/pkg/io"
	"github.com/matzehuels/stacksolve/pkg/spec"
	"github.com/matzehuels/stacksolve/pkg/store"
)

// installCommand creates the install command. Building is out of scope, so
// installs are recorded without running any build ("--fake").
func (c *CLI) installCommand() *cobra.Command {
	var (
		solve solveOpts
		fake  bool
		lock  string
	)

	cmd := &cobra.Command{
		Use:   "install [<spec>...]",
		Short: "Record concretized specs in the installed store",
		Long: `Concretize specs, or read a lock file with --lock, and record every node
in the installed store so later solves can reuse or splice them.

Only --fake installs are supported: nothing is built.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !fake {
				return errors.New(errors.ErrCodeUnsupported, "building is not supported; pass --fake to record the specs")
			}
			if (len(args) == 0) == (lock == "") {
				return errors.New(errors.ErrCodeInvalidInput, "give either specs or --lock")
			}
			ctx := cmd.Context()

			var roots []*spec.Spec
			if lock != "" {
				var err error
				if roots, err = sio.ImportLock(lock); err != nil {
					return err
				}
			} else {
				res, err := c.solve(ctx, cmd, solve.options, strings.Join(args, " "), false)
				if err != nil {
					return err
				}
				roots = res.Solution.Roots
			}

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return withStore(ctx, cfg, func(st *store.Store) error {
				prog := newProgress(c.Logger)
				if err := st.Add(ctx, roots); err != nil {
					return err
				}
				prog.done("recorded installs", "roots", len(roots))
				for _, r := range roots {
					printSuccess("%s /%s", r.NodeString(), shortHash(r.Hash))
				}
				printNextStep("Reuse installed specs", "stacksolve concretize --reuse <spec>")
				return nil
			})
		},
	}

	solve.register(cmd)
	cmd.Flags().BoolVar(&fake, "fake", false, "record the specs without building")
	cmd.Flags().StringVar(&lock, "lock", "", "install the roots of a lock file")

	return cmd
}

// uninstallCommand creates the uninstall command.
func (c *CLI) uninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall /<hash>",
		Short: "Remove an installed spec from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return withStore(ctx, cfg, func(st *store.Store) error {
				n, err := st.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				if err := st.Remove(ctx, n.Hash); err != nil {
					return err
				}
				printSuccess("Removed %s /%s", n.NodeString(), shortHash(n.Hash))
				return nil
			})
		},
	}
}

// findCommand creates the find command for querying installed specs.
func (c *CLI) findCommand() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "find [<spec>]",
		Short: "List installed specs, optionally those satisfying a spec",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return withStore(ctx, cfg, func(st *store.Store) error {
				var found []*spec.Spec
				if len(args) == 1 {
					query, err := spec.Parse(args[0])
					if err != nil {
						return err
					}
					found, err = st.Find(ctx, query)
					if err != nil {
						return err
					}
				} else {
					found, err = st.All(ctx)
					if err != nil {
						return err
					}
				}
				w := cmd.OutOrStdout()
				for _, n := range found {
					if long {
						fmt.Fprintf(w, "%s  %s\n", styleHash.Render(shortHash(n.Hash)), n.NodeString())
						continue
					}
					v, _ := n.Version()
					fmt.Fprintf(w, "%s@%s\n", n.Name, v)
				}
				printInfo("%d installed package(s)", len(found))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "show hashes and full node attributes")
	return cmd
}

// withStore opens the configured store for the duration of fn.
func withStore(ctx context.Context, cfg *config.Config, fn func(*store.Store) error) error {
	st, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.New(errors.ErrCodeInvalidInput, "no installed store configured (store backend is none)")
	}
	defer st.Close()
	return fn(st)
}
