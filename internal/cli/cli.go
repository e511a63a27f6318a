// Package cli implements the stacksolve command-line interface.
//
// The CLI is built using cobra. Every command that solves goes through a
// [pipeline.Runner] configured from a stacksolve.toml (or .yaml) file, the
// environment and the persistent flags, so results are cached and logged the
// same way as in the HTTP server.
//
// # Commands
//
//   - concretize: solve specs and print the concrete DAG
//   - spec: parse and normalize specs without solving
//   - info: show a package's versions, variants and dependencies
//   - graph: render a concrete DAG as DOT, SVG, PNG or PDF
//   - install, uninstall: manage the installed store
//   - find: query the installed store
//   - cache: manage the solution cache
//   - serve: run the HTTP API
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
//
// [pipeline.Runner]: github.com/matzehuels/stacksolve/pkg/pipeline.Runner
package cli

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stacksolve/internal/config"
	"github.com/matzehuels/stacksolve/pkg/buildinfo"
	"github.com/matzehuels/stacksolve/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "stacksolve"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	repoPaths  []string
	noCache    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Stacksolve concretizes package specs into reproducible build DAGs",
		Long:         `Stacksolve resolves abstract package specs against a repository of recipes and the installed store, producing fully concrete, hashed dependency DAGs.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "settings file (default: stacksolve.toml or stacksolve.yaml)")
	pf.StringSliceVarP(&c.repoPaths, "repo", "r", nil, "package repository directories (overrides settings)")
	pf.BoolVar(&c.noCache, "no-cache", false, "disable the solution cache")

	// Register all subcommands
	root.AddCommand(c.concretizeCommand())
	root.AddCommand(c.specCommand())
	root.AddCommand(c.infoCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.uninstallCommand())
	root.AddCommand(c.findCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Settings and Runner Factory
// =============================================================================

// loadConfig reads the settings and applies the persistent flags.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if len(c.repoPaths) > 0 {
		cfg.Repo.Paths = c.repoPaths
	}
	if cfg.File != "" {
		c.Logger.Debug("loaded settings", "file", cfg.File)
	}
	return cfg, nil
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config) (*pipeline.Runner, error) {
	return cfg.NewRunner(ctx, c.noCache, c.Logger)
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s, def string) []string {
	if s == "" {
		return []string{def}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
