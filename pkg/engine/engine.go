// Package engine opens a repository with its virtual branch state and
// answers listing requests. It is shared by the CLI and the MCP server.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/branchstat/pkg/branches"
	"github.com/Sumatoshi-tech/branchstat/pkg/config"
	"github.com/Sumatoshi-tech/branchstat/pkg/gitstore"
	"github.com/Sumatoshi-tech/branchstat/pkg/observability"
	"github.com/Sumatoshi-tech/branchstat/pkg/vbranch"
)

// diffCacheName labels diff cache metrics.
const diffCacheName = "diff"

// Deps holds optional telemetry. Zero-value fields fall back to defaults.
type Deps struct {
	Logger   *slog.Logger
	Tracer   trace.Tracer
	RED      *observability.REDMetrics
	Branches *observability.BranchMetrics
}

// Engine is one open repository. Close releases its libgit2 handles.
type Engine struct {
	store     *gitstore.Store
	virtual   *vbranch.Store
	assembler *branches.Assembler
	metrics   *observability.BranchMetrics
	logger    *slog.Logger
}

// Open opens repoPath and loads the virtual branch state configured in cfg.
func Open(repoPath string, cfg *config.Config, deps Deps) (*Engine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engineCfg := cfg.Engine()
	if engineCfg.Workers <= 0 {
		engineCfg.Workers = runtime.NumCPU()
	}

	store, err := gitstore.Open(repoPath,
		gitstore.WithHandles(engineCfg.Workers),
		gitstore.WithDiffCacheSize(cfg.DiffCacheSize),
		gitstore.WithDiffCacheFileLimit(cfg.DiffCacheFiles),
		gitstore.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	statePath := vbranch.StatePath(store.GitDir(), cfg.VirtualBranches.Path)

	virtual, err := vbranch.Load(statePath)
	if err != nil {
		store.Close()

		return nil, err
	}

	logger.Debug("virtual branch state loaded", "path", statePath, "branches", virtual.Len())

	opts := []branches.Option{
		branches.WithLogger(logger),
		branches.WithMetrics(deps.RED),
		branches.WithBranchMetrics(deps.Branches),
	}

	if deps.Tracer != nil {
		opts = append(opts, branches.WithTracer(deps.Tracer))
	}

	return &Engine{
		store:     store,
		virtual:   virtual,
		assembler: branches.NewAssembler(store, store, store, virtual, engineCfg, opts...),
		metrics:   deps.Branches,
		logger:    logger,
	}, nil
}

// Names returns every virtual branch followed by every local branch.
func (e *Engine) Names(ctx context.Context) ([]string, error) {
	return branches.AllNames(ctx, e.store, e.virtual)
}

// Details measures names, or every branch when names is empty. The report
// is sorted by name.
func (e *Engine) Details(ctx context.Context, names []string) (*branches.Report, error) {
	if len(names) == 0 {
		all, err := e.Names(ctx)
		if err != nil {
			return nil, err
		}

		names = all
	}

	before := e.store.CacheStats()

	report, err := e.assembler.ListingDetails(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("branch details: %w", err)
	}

	after := e.store.CacheStats()
	e.metrics.RecordCache(ctx, diffCacheName, after.Hits-before.Hits, after.Misses-before.Misses)

	e.logger.DebugContext(ctx, "diff cache", "hits", after.Hits, "misses", after.Misses, "hit_rate", after.HitRate())

	report.SortByName()

	return report, nil
}

// Assembler exposes the underlying assembler.
func (e *Engine) Assembler() *branches.Assembler {
	return e.assembler
}

// Close frees the repository handles.
func (e *Engine) Close() {
	e.store.Close()
}
