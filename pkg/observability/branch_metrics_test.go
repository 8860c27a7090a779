package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sumatoshi-tech/branchstat/pkg/observability"
)

func TestBranchMetrics_RecordBranch(t *testing.T) {
	t.Parallel()

	reader, mp := newReader(t)

	bm, err := observability.NewBranchMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()

	bm.RecordBranch(ctx, observability.BranchStats{Kind: "virtual", Commits: 5, LinesAdded: 10, LinesRemoved: 3})
	bm.RecordBranch(ctx, observability.BranchStats{Kind: "real", Commits: 2, LinesAdded: 4})

	rm := collectMetrics(t, reader)

	branches := findMetric(rm, "branchstat.branches.total")
	assert.Equal(t, int64(2), sumWhere(t, branches))
	assert.Equal(t, int64(1), sumWhere(t, branches, attribute.String("kind", "virtual")))

	assert.Equal(t, int64(7), sumWhere(t, findMetric(rm, "branchstat.commits.total")))

	lines := findMetric(rm, "branchstat.lines.total")
	assert.Equal(t, int64(14), sumWhere(t, lines, attribute.String("change", "added")))
	assert.Equal(t, int64(3), sumWhere(t, lines, attribute.String("change", "removed")))
}

func TestBranchMetrics_RecordCache(t *testing.T) {
	t.Parallel()

	reader, mp := newReader(t)

	bm, err := observability.NewBranchMetrics(mp.Meter("test"))
	require.NoError(t, err)

	bm.RecordCache(context.Background(), "diff", 8, 2)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(8), sumWhere(t, findMetric(rm, "branchstat.cache.hits.total"), attribute.String("cache", "diff")))
	assert.Equal(t, int64(2), sumWhere(t, findMetric(rm, "branchstat.cache.misses.total"), attribute.String("cache", "diff")))
}

func TestBranchMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var bm *observability.BranchMetrics

	assert.NotPanics(t, func() {
		bm.RecordBranch(context.Background(), observability.BranchStats{Kind: "real", Commits: 1})
		bm.RecordCache(context.Background(), "diff", 1, 1)
	})
}
