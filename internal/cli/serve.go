package cli

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stacksolve/internal/server"
	"github.com/matzehuels/stacksolve/pkg/observability"
)

// shutdownTimeout bounds how long running requests may finish on exit.
const shutdownTimeout = 15 * time.Second

// serveCommand creates the serve command for the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the concretizer over HTTP",
		Long: `Serve the concretizer over HTTP.

Endpoints:
  POST /v1/concretize        solve specs, returns the lock file
  GET  /v1/packages[/name]   inspect the repository
  GET  /healthz              build information
  GET  /metrics              Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			runner, err := c.newRunner(ctx, cfg)
			if err != nil {
				return err
			}
			defer runner.Close()

			// Warm the fact table so the first request does not pay for it.
			if _, _, err := runner.Facts(ctx); err != nil {
				return err
			}

			observability.NewPrometheus(prometheus.DefaultRegisterer).Register()
			srv := server.New(runner, cfg.Options(), prometheus.DefaultGatherer, c.Logger)

			printKeyValue("Listening", cfg.Server.Addr)
			printKeyValue("Repository", strings.Join(cfg.Repo.Paths, ", "))
			printKeyValue("Metrics", "/metrics")

			errc := make(chan error, 1)
			go func() { errc <- srv.Start(cfg.Server.Addr) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				c.Logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from settings, :8080)")
	return cmd
}
