package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/branchstat/pkg/config"
	"github.com/Sumatoshi-tech/branchstat/pkg/mcp"
	"github.com/Sumatoshi-tech/branchstat/pkg/observability"
	"github.com/Sumatoshi-tech/branchstat/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		debug      bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes one tool:
  - branchstat_details: per-branch commits, line counts, files and authors

Tool calls start from the loaded configuration; target and base_strategy
arguments override it per call.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			err = cfg.Validate()
			if err != nil {
				return fmt.Errorf("validate config: %w", err)
			}

			obsCfg := mcpObservabilityConfig(cfg, debug)

			providers, err := observability.Init(obsCfg)
			if err != nil {
				return err
			}

			defer shutdown(providers, obsCfg.ShutdownTimeoutSec)

			deps, err := engineDeps(providers)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:        deps.Logger,
				Metrics:       deps.RED,
				BranchMetrics: deps.Branches,
				Tracer:        deps.Tracer,
				Config:        cfg,
				Version:       version.Version,
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default: .branchstat.yaml in . or $HOME)")

	return cmd
}

// mcpObservabilityConfig logs JSON at the configured level; --debug forces
// debug logging and trace sampling.
func mcpObservabilityConfig(cfg *config.Config, debug bool) observability.Config {
	obsCfg := observability.DefaultConfig().WithEnv()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = observability.ModeMCP
	obsCfg.LogJSON = true
	obsCfg.LogLevel = cfg.LogLevel()

	if debug {
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	}

	return obsCfg
}
