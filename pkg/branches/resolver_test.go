package branches_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchstat/pkg/branches"
	"github.com/Sumatoshi-tech/branchstat/pkg/gitlib"
)

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	ctx := context.Background()

	virtualHead := r.Chain(r.base, 1, "v.txt", author)
	localTip := r.Chain(r.base, 2, "l.txt", author)
	remoteTip := r.Chain(r.base, 3, "r.txt", author)

	r.addVirtual("virtual", virtualHead, r.base)
	r.SetBranch("local", localTip)
	r.SetBranch("tracked", localTip)
	r.SetUpstream("tracked", originMain)
	r.SetRef("refs/remotes/origin/remote-only", remoteTip)

	resolver := branches.NewResolver(r.Store, r.virtualStore(t), []string{"origin"})

	tests := []struct {
		name string
		want branches.Ref
	}{
		{name: "virtual", want: branches.VirtualRef("virtual", virtualHead, r.base)},
		{name: "local", want: branches.RealRef("local", localTip, "", gitlib.Hash{})},
		{name: "refs/heads/local", want: branches.RealRef("local", localTip, "", gitlib.Hash{})},
		{name: "tracked", want: branches.RealRef("tracked", localTip, originMain, r.base)},
		{name: "remote-only", want: branches.RealRef("remote-only", remoteTip, "", gitlib.Hash{})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolver.Resolve(ctx, tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolver_Errors(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	resolver := branches.NewResolver(r.Store, nil, nil)

	_, err := resolver.Resolve(context.Background(), "missing")
	require.ErrorIs(t, err, branches.ErrUnresolvedBranch)

	_, err = resolver.Resolve(context.Background(), "refs/heads/")
	require.ErrorIs(t, err, branches.ErrInvalidIdentity)
}

func TestRefKinds(t *testing.T) {
	t.Parallel()

	virtual := branches.VirtualRef("v", gitlib.Hash{}, gitlib.Hash{})
	assert.Equal(t, branches.KindVirtual, virtual.Kind)
	assert.False(t, virtual.HasUpstream())

	realRef := branches.RealRef("r", gitlib.Hash{}, originMain, gitlib.Hash{})
	assert.Equal(t, branches.KindReal, realRef.Kind)
	assert.True(t, realRef.HasUpstream())

	assert.Equal(t, "virtual", branches.KindVirtual.String())
	assert.Equal(t, "real", branches.KindReal.String())
	assert.Equal(t, "Kind(7)", branches.Kind(7).String())
}

func TestAllNames(t *testing.T) {
	t.Parallel()

	r := newRepo(t)

	r.addVirtual("zeta", gitlib.Hash{}, r.base)
	r.addVirtual("main", gitlib.Hash{}, r.base)
	r.SetBranch("main", r.base)
	r.SetBranch("alpha", r.base)

	names, err := branches.AllNames(context.Background(), r.Store, r.virtualStore(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "zeta", "alpha"}, names)

	names, err = branches.AllNames(context.Background(), r.Store, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "main"}, names)
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "main", want: "main"},
		{in: "  feature/x ", want: "feature/x"},
		{in: "refs/heads/main", want: "main"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "refs/heads/", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			got, err := branches.NormalizeName(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, branches.ErrInvalidIdentity)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseBaseStrategy(t *testing.T) {
	t.Parallel()

	got, err := branches.ParseBaseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, branches.DefaultBaseStrategy, got)

	got, err = branches.ParseBaseStrategy(" Target ")
	require.NoError(t, err)
	assert.Equal(t, branches.StrategyTarget, got)

	got, err = branches.ParseBaseStrategy("prefer-upstream")
	require.NoError(t, err)
	assert.Equal(t, branches.StrategyPreferUpstream, got)

	_, err = branches.ParseBaseStrategy("closest")
	require.ErrorIs(t, err, branches.ErrUnknownStrategy)
}
