package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricBranchesTotal    = "branchstat.branches.total"
	metricCommitsTotal     = "branchstat.commits.total"
	metricLinesTotal       = "branchstat.lines.total"
	metricCacheHitsTotal   = "branchstat.cache.hits.total"
	metricCacheMissesTotal = "branchstat.cache.misses.total"

	attrKind   = "kind"
	attrChange = "change"
	attrCache  = "cache"
)

// BranchMetrics holds OTel instruments for measured branches.
type BranchMetrics struct {
	branchesTotal metric.Int64Counter
	commitsTotal  metric.Int64Counter
	linesTotal    metric.Int64Counter
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
}

// BranchStats is what one measured branch contributes to the counters.
type BranchStats struct {
	Kind         string
	Commits      int64
	LinesAdded   int64
	LinesRemoved int64
}

// NewBranchMetrics creates branch metric instruments from the given meter.
func NewBranchMetrics(mt metric.Meter) (*BranchMetrics, error) {
	branches, err := mt.Int64Counter(metricBranchesTotal,
		metric.WithDescription("Branches measured"),
		metric.WithUnit("{branch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBranchesTotal, err)
	}

	commits, err := mt.Int64Counter(metricCommitsTotal,
		metric.WithDescription("Commits walked across measured branches"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommitsTotal, err)
	}

	lines, err := mt.Int64Counter(metricLinesTotal,
		metric.WithDescription("Lines added or removed across measured branches"),
		metric.WithUnit("{line}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLinesTotal, err)
	}

	hits, err := mt.Int64Counter(metricCacheHitsTotal,
		metric.WithDescription("Cache hits by cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHitsTotal, err)
	}

	misses, err := mt.Int64Counter(metricCacheMissesTotal,
		metric.WithDescription("Cache misses by cache"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMissesTotal, err)
	}

	return &BranchMetrics{
		branchesTotal: branches,
		commitsTotal:  commits,
		linesTotal:    lines,
		cacheHits:     hits,
		cacheMisses:   misses,
	}, nil
}

// RecordBranch adds one measured branch. Safe to call on a nil receiver (no-op).
func (bm *BranchMetrics) RecordBranch(ctx context.Context, stats BranchStats) {
	if bm == nil {
		return
	}

	kind := metric.WithAttributes(attribute.String(attrKind, stats.Kind))

	bm.branchesTotal.Add(ctx, 1, kind)
	bm.commitsTotal.Add(ctx, stats.Commits, kind)
	bm.linesTotal.Add(ctx, stats.LinesAdded, metric.WithAttributes(
		attribute.String(attrKind, stats.Kind), attribute.String(attrChange, "added")))
	bm.linesTotal.Add(ctx, stats.LinesRemoved, metric.WithAttributes(
		attribute.String(attrKind, stats.Kind), attribute.String(attrChange, "removed")))
}

// RecordCache adds cache hit and miss deltas for the named cache.
// Safe to call on a nil receiver (no-op).
func (bm *BranchMetrics) RecordCache(ctx context.Context, cache string, hits, misses int64) {
	if bm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrCache, cache))
	bm.cacheHits.Add(ctx, hits, attrs)
	bm.cacheMisses.Add(ctx, misses, attrs)
}
