package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/blockaudit/pkg/audit"
	"github.com/Sumatoshi-tech/blockaudit/pkg/docstore"
	"github.com/Sumatoshi-tech/blockaudit/pkg/mcp"
	"github.com/Sumatoshi-tech/blockaudit/pkg/observability"
	"github.com/Sumatoshi-tech/blockaudit/pkg/scan"
	"github.com/Sumatoshi-tech/blockaudit/pkg/version"
)

type mcpRunner func(ctx context.Context, srv *mcp.Server) error

// NewMCPCommand creates the command that serves the audit over MCP stdio.
func NewMCPCommand() *cobra.Command {
	return newMCPCommandWithDeps(observability.Init, func(ctx context.Context, srv *mcp.Server) error {
		return srv.Run(ctx)
	})
}

func newMCPCommandWithDeps(initObs observabilityInit, serve mcpRunner) *cobra.Command {
	var (
		flags     storeFlags
		cursorDir string
		debug     bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the audit as MCP tools over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
blockaudit_audit and block_parse tools. Logs go to stderr as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cobraCmd)
			if err != nil {
				return err
			}

			if cobraCmd.Flags().Changed("cursor-dir") {
				cfg.Cursor.Dir = cursorDir
			}

			err = cfg.Validate()
			if err != nil {
				return err
			}

			obsCfg, err := buildObservabilityConfig(cfg, observability.ModeMCP, debug, cobraCmd.ErrOrStderr())
			if err != nil {
				return err
			}

			obsCfg.LogJSON = true

			providers, shutdown, err := startObservability(initObs, obsCfg)
			if err != nil {
				return err
			}
			defer shutdown()

			ctx := cobraCmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			store, err := docstore.Open(ctx, cfg.Store.DSN)
			if err != nil {
				return err
			}
			defer closeStore(store, providers.Logger)

			cursors, err := openCursors(ctx, cfg, store)
			if err != nil {
				return err
			}

			deps := mcp.ServerDeps{
				Audit: audit.Options{
					Docs:    store,
					Cursors: cursors,
					Scan:    scan.Config{BatchSize: cfg.Scan.BatchSize, Tracer: providers.Tracer},
					Defaults: audit.Defaults{
						Status:             cfg.Scan.DefaultStatus,
						ExcludedCategories: cfg.Scan.ExcludedCategories,
					},
				},
				Version: version.Resolved(),
				Logger:  providers.Logger,
				Tracer:  providers.Tracer,
			}

			if providers.Meter != nil {
				deps.Metrics, err = observability.NewToolMetrics(providers.Meter)
				if err != nil {
					return err
				}

				deps.Audit.Scan.Metrics, err = observability.NewScanMetrics(providers.Meter)
				if err != nil {
					return err
				}
			}

			return serve(ctx, mcp.NewServer(deps))
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&cursorDir, "cursor-dir", "", "Cursor directory for the file backend (default: ~/.blockaudit/cursors)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Sample every trace")

	return cmd
}
