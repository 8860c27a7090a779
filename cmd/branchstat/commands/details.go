// Package commands implements CLI command handlers for branchstat.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/branchstat/pkg/config"
	"github.com/Sumatoshi-tech/branchstat/pkg/engine"
	"github.com/Sumatoshi-tech/branchstat/pkg/observability"
	"github.com/Sumatoshi-tech/branchstat/pkg/render"
	"github.com/Sumatoshi-tech/branchstat/pkg/version"
)

// ErrBranchesFailed is returned when at least one requested branch could not
// be measured. The report for the rest is still written.
var ErrBranchesFailed = errors.New("some branches could not be measured")

// DetailsCommand holds the flags of the details command.
type DetailsCommand struct {
	repo         string
	configPath   string
	target       string
	baseStrategy string
	format       string
	workers      int
	virtualPath  string
	remotes      []string
	logLevel     string
	logJSON      bool
}

// NewDetailsCommand creates the details command.
func NewDetailsCommand() *cobra.Command {
	dc := &DetailsCommand{}

	cmd := &cobra.Command{
		Use:   "details [branch...]",
		Short: "Show per-branch commits, line counts, files and authors",
		Long: `Measure each branch against its base and print one record per branch.

Virtual branches are measured from their integration point. Real branches are
measured from the merge base with their upstream, or with the target branch
when they have none (see --base-strategy). With no arguments every virtual
branch and every local branch is listed.

Branches that cannot be resolved or read are reported after the table and the
command exits with status 1.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          dc.run,
	}

	flags := cmd.Flags()
	flags.StringVarP(&dc.repo, "repo", "r", ".", "path to the Git repository")
	flags.StringVarP(&dc.configPath, "config", "c", "", "config file (default: .branchstat.yaml in . or $HOME)")
	flags.StringVarP(&dc.target, "target", "t", config.DefaultTarget, "integration branch real branches fall back to")
	flags.StringVar(&dc.baseStrategy, "base-strategy", config.DefaultBaseStrategy, "merge base policy: prefer-upstream or target")
	flags.StringVarP(&dc.format, "format", "f", config.DefaultFormat, "output format: table, json or yaml")
	flags.IntVarP(&dc.workers, "workers", "w", config.DefaultWorkers, "parallel branch pipelines (0 = NumCPU)")
	flags.StringVar(&dc.virtualPath, "virtual-branches", config.DefaultVirtualPath,
		"virtual branch state file, relative to the .git directory")
	flags.StringSliceVar(&dc.remotes, "remote", []string{config.DefaultRemote}, "remotes searched for remote-tracking branches")
	flags.StringVar(&dc.logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")
	flags.BoolVar(&dc.logJSON, "log-json", config.DefaultLogJSON, "write logs as JSON")

	return cmd
}

func (dc *DetailsCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(dc.configPath)
	if err != nil {
		return err
	}

	dc.applyFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	obsCfg := observability.DefaultConfig().WithEnv()
	obsCfg.ServiceVersion = version.Version
	obsCfg.LogLevel = cfg.LogLevel()
	obsCfg.LogJSON = cfg.Log.JSON

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer shutdown(providers, obsCfg.ShutdownTimeoutSec)

	deps, err := engineDeps(providers)
	if err != nil {
		return err
	}

	return detailsReport(cmd.Context(), cmd.OutOrStdout(), dc.repo, cfg, args, deps)
}

// applyFlags overrides config values with flags the user set explicitly.
func (dc *DetailsCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("target") {
		cfg.Target = dc.target
	}

	if flags.Changed("base-strategy") {
		cfg.Base.Strategy = dc.baseStrategy
	}

	if flags.Changed("format") {
		cfg.Output.Format = dc.format
	}

	if flags.Changed("workers") {
		cfg.Workers = dc.workers
	}

	if flags.Changed("virtual-branches") {
		cfg.VirtualBranches.Path = dc.virtualPath
	}

	if flags.Changed("remote") {
		cfg.Remotes = dc.remotes
	}

	if flags.Changed("log-level") {
		cfg.Log.Level = dc.logLevel
	}

	if flags.Changed("log-json") {
		cfg.Log.JSON = dc.logJSON
	}
}

func detailsReport(
	ctx context.Context,
	out io.Writer,
	repo string,
	cfg *config.Config,
	names []string,
	deps engine.Deps,
) error {
	eng, err := engine.Open(repo, cfg, deps)
	if err != nil {
		return err
	}
	defer eng.Close()

	report, err := eng.Details(ctx, names)
	if err != nil {
		return err
	}

	err = render.Write(out, report, cfg.Output.Format)
	if err != nil {
		return err
	}

	if len(report.Failures) > 0 {
		return fmt.Errorf("%w: %d of %d", ErrBranchesFailed,
			len(report.Failures), len(report.Failures)+len(report.Details))
	}

	return nil
}

func engineDeps(providers observability.Providers) (engine.Deps, error) {
	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return engine.Deps{}, err
	}

	branchMetrics, err := observability.NewBranchMetrics(providers.Meter)
	if err != nil {
		return engine.Deps{}, err
	}

	return engine.Deps{
		Logger:   providers.Logger,
		Tracer:   providers.Tracer,
		RED:      red,
		Branches: branchMetrics,
	}, nil
}

func shutdown(providers observability.Providers, timeoutSec int) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	err := providers.Shutdown(ctx)
	if err != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}
