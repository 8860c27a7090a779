package branches_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchstat/pkg/branches"
	"github.com/Sumatoshi-tech/branchstat/pkg/diffstat"
	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
	"github.com/Sumatoshi-tech/branchstat/pkg/memstore"
	"github.com/Sumatoshi-tech/branchstat/pkg/revgraph"
)

func TestListingDetails_SingleCommitVirtualBranch(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	head := r.AddCommit(memstore.CommitSpec{
		Parents: []gitlib.Hash{r.base},
		Author:  author,
		Files:   map[string]string{"a.txt": "a\n", "b.txt": "b\n"},
	})
	r.addVirtual("branch", head, r.base)

	report, err := r.assembler(t, branches.Config{}).ListingDetails(context.Background(), []string{"branch"})
	require.NoError(t, err)
	require.Empty(t, report.Failures)

	assert.Equal(t, []branches.Details{{
		Name:            "branch",
		LinesAdded:      2,
		LinesRemoved:    0,
		NumberOfFiles:   2,
		NumberOfCommits: 1,
		Authors:         []revgraph.Author{author},
	}}, report.Details)
}

// mixedRepo holds a virtual branch with 105 commits, a tracked main with 15
// local commits and an untracked feature with 55.
func mixedRepo(t *testing.T) *repo {
	t.Helper()

	r := newRepo(t)

	r.addVirtual("virtual-branch", r.Chain(r.base, 105, "virtual.txt", author), r.base)

	r.SetBranch("main", r.Chain(r.base, 15, "main.txt", author))
	r.SetUpstream("main", originMain)

	r.SetBranch("non-virtual-feature", r.Chain(r.base, 55, "feature.txt", author))

	return r
}

func TestListingDetails_MixedBranches(t *testing.T) {
	t.Parallel()

	r := mixedRepo(t)
	asm := r.assembler(t, branches.Config{Workers: 2})

	want := map[string]int{"virtual-branch": 105, "main": 15, "non-virtual-feature": 55}

	orders := [][]string{
		{"virtual-branch", "main", "non-virtual-feature"},
		{"non-virtual-feature", "virtual-branch", "main"},
		{"main", "non-virtual-feature", "virtual-branch"},
	}

	for _, names := range orders {
		report, err := asm.ListingDetails(context.Background(), names)
		require.NoError(t, err)
		require.Empty(t, report.Failures)
		require.Len(t, report.Details, 3)

		for name, count := range want {
			details, ok := report.Find(name)
			require.True(t, ok, name)

			assert.Equal(t, count, details.NumberOfCommits, name)
			assert.Equal(t, int64(count), details.LinesAdded, name)
			assert.Zero(t, details.LinesRemoved, name)
			assert.Equal(t, 1, details.NumberOfFiles, name)
			assert.Equal(t, []revgraph.Author{author}, details.Authors, name)
		}
	}
}

func TestListingDetails_UnknownNameIsSkipped(t *testing.T) {
	t.Parallel()

	r := mixedRepo(t)

	report, err := r.assembler(t, branches.Config{}).ListingDetails(context.Background(),
		[]string{"main", "does-not-exist", "virtual-branch"})
	require.NoError(t, err)

	assert.Len(t, report.Details, 2)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "does-not-exist", report.Failures[0].Name)
	require.ErrorIs(t, report.Failures[0], branches.ErrUnresolvedBranch)
	require.ErrorIs(t, report.Err(), branches.ErrUnresolvedBranch)

	_, found := report.Find("does-not-exist")
	assert.False(t, found)
}

func TestListingDetails_DuplicatesAndInvalidNames(t *testing.T) {
	t.Parallel()

	r := mixedRepo(t)

	report, err := r.assembler(t, branches.Config{}).ListingDetails(context.Background(),
		[]string{"main", " main ", "refs/heads/main", "  "})
	require.NoError(t, err)

	require.Len(t, report.Details, 1)
	assert.Equal(t, "main", report.Details[0].Name)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "  ", report.Failures[0].Name)
	require.ErrorIs(t, report.Failures[0], branches.ErrInvalidIdentity)
}

func TestListingDetails_NoNames(t *testing.T) {
	t.Parallel()

	r := newRepo(t)

	report, err := r.assembler(t, branches.Config{}).ListingDetails(context.Background(), nil)
	require.NoError(t, err)

	assert.NotNil(t, report.Details)
	assert.Empty(t, report.Details)
	assert.Empty(t, report.Failures)
	assert.NoError(t, report.Err())
}

// divergedRepo has a local feature two commits ahead of origin/feature,
// which itself is three commits ahead of origin/main.
func divergedRepo(t *testing.T) *repo {
	t.Helper()

	r := newRepo(t)

	published := r.Chain(r.base, 3, "feature.txt", author)
	r.SetRef("refs/remotes/origin/feature", published)

	r.SetBranch("feature", r.Chain(published, 2, "feature.txt", author))
	r.SetUpstream("feature", "refs/remotes/origin/feature")

	return r
}

func TestListingDetails_BaseStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		strategy branches.BaseStrategy
		commits  int
	}{
		{strategy: "", commits: 2},
		{strategy: branches.StrategyPreferUpstream, commits: 2},
		{strategy: branches.StrategyTarget, commits: 5},
	}

	for _, tc := range tests {
		t.Run(string(tc.strategy), func(t *testing.T) {
			t.Parallel()

			r := divergedRepo(t)

			details, err := r.assembler(t, branches.Config{Strategy: tc.strategy}).
				BranchDetails(context.Background(), "feature")
			require.NoError(t, err)

			assert.Equal(t, tc.commits, details.NumberOfCommits)
			assert.Equal(t, int64(tc.commits), details.LinesAdded)
		})
	}
}

func TestRange(t *testing.T) {
	t.Parallel()

	r := divergedRepo(t)
	ctx := context.Background()

	asm := r.assembler(t, branches.Config{})

	ref, err := asm.Resolve(ctx, "feature")
	require.NoError(t, err)

	rng, err := asm.Range(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, ref.Tip, rng.Tip)
	assert.Equal(t, ref.UpstreamTip, rng.Base)
	assert.Equal(t, "refs/remotes/origin/feature", rng.BaseRef)

	rng, err = r.assembler(t, branches.Config{Strategy: branches.StrategyTarget}).Range(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, r.base, rng.Base)
	assert.Equal(t, branches.DefaultTarget, rng.BaseRef)

	virtual := branches.VirtualRef("v", ref.Tip, r.base)

	rng, err = asm.Range(ctx, virtual)
	require.NoError(t, err)
	assert.Equal(t, branches.Range{Tip: ref.Tip, Base: r.base, BaseRef: "integration point"}, rng)
}

func TestListingDetails_FailureIsIsolated(t *testing.T) {
	t.Parallel()

	r := mixedRepo(t)

	ref, err := r.assembler(t, branches.Config{}).Resolve(context.Background(), "non-virtual-feature")
	require.NoError(t, err)

	tip, err := r.Commit(context.Background(), ref.Tip)
	require.NoError(t, err)

	boom := errors.New("corrupt blob")
	r.FailDiff(tip.Tree, boom)

	report, err := r.assembler(t, branches.Config{}).ListingDetails(context.Background(),
		[]string{"virtual-branch", "main", "non-virtual-feature"})
	require.NoError(t, err)

	assert.Len(t, report.Details, 2)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "non-virtual-feature", report.Failures[0].Name)
	require.ErrorIs(t, report.Failures[0], diffstat.ErrDiffComputation)
	require.ErrorIs(t, report.Failures[0], boom)
}

func TestListingDetails_UnreadableCommit(t *testing.T) {
	t.Parallel()

	r := mixedRepo(t)

	virtual, ok := r.virtualStore(t).Lookup("virtual-branch")
	require.True(t, ok)

	r.FailCommit(virtual.Head, errors.New("truncated object"))

	report, err := r.assembler(t, branches.Config{}).ListingDetails(context.Background(),
		[]string{"virtual-branch", "main"})
	require.NoError(t, err)

	assert.Len(t, report.Details, 1)
	require.Len(t, report.Failures, 1)
	require.ErrorIs(t, report.Failures[0], revgraph.ErrObjectAccess)
}

func TestListingDetails_Cancelled(t *testing.T) {
	t.Parallel()

	r := mixedRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.assembler(t, branches.Config{}).ListingDetails(ctx, []string{"main", "virtual-branch"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
}

func TestListingDetails_MissingTarget(t *testing.T) {
	t.Parallel()

	r := mixedRepo(t)

	report, err := r.assembler(t, branches.Config{Target: "origin/develop"}).ListingDetails(context.Background(),
		[]string{"non-virtual-feature", "main", "virtual-branch"})
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "non-virtual-feature", report.Failures[0].Name)
	require.ErrorIs(t, report.Failures[0], branches.ErrNoTarget)

	// main has an upstream and virtual branches never need the target.
	assert.Len(t, report.Details, 2)
}

func TestListingDetails_RemoteTrackingBranch(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	r.SetRef("refs/remotes/origin/release", r.Chain(r.base, 4, "release.txt", author))

	asm := r.assembler(t, branches.Config{Remotes: []string{"upstream", "origin"}})

	details, err := asm.BranchDetails(context.Background(), "release")
	require.NoError(t, err)
	assert.Equal(t, "release", details.Name)
	assert.Equal(t, 4, details.NumberOfCommits)

	_, err = r.assembler(t, branches.Config{}).BranchDetails(context.Background(), "release")
	require.ErrorIs(t, err, branches.ErrUnresolvedBranch)
}

func TestListingDetails_EmptyAndMergedBranches(t *testing.T) {
	t.Parallel()

	r := newRepo(t)

	feature := r.Chain(r.base, 2, "feature.txt", author)
	r.SetBranch("feature", feature)

	merge := r.AddCommit(memstore.CommitSpec{
		Parents: []gitlib.Hash{r.base, feature},
		Files:   map[string]string{"feature.txt": "merged\n"},
	})
	r.SetRef(originMain, merge)

	r.SetBranch("at-target", merge)
	r.addVirtual("fresh", gitlib.Hash{}, r.base)
	r.addVirtual("at-integration-point", r.base, r.base)

	report, err := r.assembler(t, branches.Config{}).ListingDetails(context.Background(),
		[]string{"feature", "at-target", "fresh", "at-integration-point"})
	require.NoError(t, err)
	require.Empty(t, report.Failures)
	require.Len(t, report.Details, 4)

	for _, details := range report.Details {
		assert.Zero(t, details.NumberOfCommits, details.Name)
		assert.Zero(t, details.LinesAdded, details.Name)
		assert.Zero(t, details.NumberOfFiles, details.Name)
		assert.NotNil(t, details.Authors, details.Name)
		assert.Empty(t, details.Authors, details.Name)
	}
}

func TestListingDetails_UnrelatedHistoryMeasuresEverything(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	r.SetBranch("orphan", r.Chain(gitlib.Hash{}, 3, "orphan.txt", author))

	details, err := r.assembler(t, branches.Config{}).BranchDetails(context.Background(), "orphan")
	require.NoError(t, err)
	assert.Equal(t, 3, details.NumberOfCommits)
}

func TestListingDetails_VirtualShadowsReal(t *testing.T) {
	t.Parallel()

	r := newRepo(t)

	r.SetBranch("shared", r.Chain(r.base, 7, "real.txt", author))
	r.addVirtual("shared", r.Chain(r.base, 2, "virtual.txt", author), r.base)

	details, err := r.assembler(t, branches.Config{}).BranchDetails(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, 2, details.NumberOfCommits)
}

func TestListingDetails_Idempotent(t *testing.T) {
	t.Parallel()

	r := mixedRepo(t)
	asm := r.assembler(t, branches.Config{})
	names := []string{"main", "virtual-branch", "non-virtual-feature", "missing"}

	first, err := asm.ListingDetails(context.Background(), names)
	require.NoError(t, err)

	second, err := asm.ListingDetails(context.Background(), names)
	require.NoError(t, err)

	first.SortByName()
	second.SortByName()

	assert.Equal(t, first.Details, second.Details)
	assert.Len(t, second.Failures, len(first.Failures))
}

func TestNewAssemblerDefaults(t *testing.T) {
	t.Parallel()

	asm := branches.NewAssembler(memstore.New(), memstore.New(), memstore.New(), nil, branches.Config{})

	cfg := asm.Config()
	assert.Equal(t, branches.StrategyPreferUpstream, cfg.Strategy)
	assert.Positive(t, cfg.Workers)
}
